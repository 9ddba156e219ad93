// SPDX-License-Identifier: BSD-3-Clause

package elementhours

import (
	"context"
	"testing"
	"time"

	"github.com/kilnctl/kilnctl/pkg/persistence"
)

func TestTickAccumulatesOnlyWhenElementOn(t *testing.T) {
	a := New(0)
	a.Tick(time.Second, true)
	a.Tick(time.Second, false)
	a.Tick(time.Second, true)
	if got := a.Seconds(); got != 2 {
		t.Fatalf("got %d seconds, want 2", got)
	}
}

func TestTickSeedsFromInitialValue(t *testing.T) {
	a := New(100)
	a.Tick(time.Second, true)
	if got := a.Seconds(); got != 101 {
		t.Fatalf("got %d, want 101", got)
	}
}

func TestTickReportsDueForSaveAtInterval(t *testing.T) {
	a := New(0)
	due := a.Tick(SaveInterval-time.Second, true)
	if due {
		t.Fatalf("got due=true before interval elapsed")
	}
	due = a.Tick(time.Second, true)
	if !due {
		t.Fatalf("got due=false at interval boundary, want true")
	}
}

func TestSaveResetsSaveWindowAndPersists(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	a := New(0)

	a.Tick(SaveInterval, true)
	if err := a.Save(ctx, store); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.LoadElementHours(ctx)
	if err != nil {
		t.Fatalf("LoadElementHours: %v", err)
	}
	if want := uint32(SaveInterval.Seconds()); got != want {
		t.Fatalf("got %d, want %d", got, want)
	}

	if due := a.Tick(time.Second, true); due {
		t.Fatalf("got due=true immediately after Save, want false")
	}
}
