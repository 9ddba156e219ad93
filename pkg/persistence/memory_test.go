// SPDX-License-Identifier: BSD-3-Clause

package persistence

import (
	"context"
	"testing"

	"github.com/kilnctl/kilnctl/pkg/kiln"
)

func TestMemoryStoreGainsDefaultsUntilSaved(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	g, err := s.LoadGains(ctx)
	if err != nil {
		t.Fatalf("LoadGains: %v", err)
	}
	if g != DefaultGains {
		t.Fatalf("got %+v, want defaults %+v", g, DefaultGains)
	}

	want := Gains{Kp: 1, Ki: 2, Kd: 3}
	if err := s.SaveGains(ctx, want); err != nil {
		t.Fatalf("SaveGains: %v", err)
	}
	got, err := s.LoadGains(ctx)
	if err != nil {
		t.Fatalf("LoadGains: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMemoryStoreProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := kiln.FiringProfile{ID: "cone06", Name: "Cone 06 bisque", Segments: []kiln.FiringSegment{{TargetTempC: 999}}, MaxTempC: 1000}
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	got, err := s.LoadProfile(ctx, "cone06")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got.Name != p.Name {
		t.Fatalf("got %+v, want %+v", got, p)
	}

	ids, err := s.ListProfiles(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "cone06" {
		t.Fatalf("got ids=%v err=%v, want [cone06] nil", ids, err)
	}

	if err := s.DeleteProfile(ctx, "cone06"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if _, err := s.LoadProfile(ctx, "cone06"); err == nil {
		t.Fatalf("got nil error loading a deleted profile")
	}
}

func TestMemoryStoreRejectsInvalidProfileID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := kiln.FiringProfile{ID: "not a valid id!"}
	if err := s.SaveProfile(ctx, p); err != ErrInvalidProfileID {
		t.Fatalf("got %v, want ErrInvalidProfileID", err)
	}
}

func TestMemoryStoreEnforcesCapacity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < MaxProfiles; i++ {
		id := string(rune('a' + i))
		if err := s.SaveProfile(ctx, kiln.FiringProfile{ID: id}); err != nil {
			t.Fatalf("SaveProfile %s: %v", id, err)
		}
	}
	if err := s.SaveProfile(ctx, kiln.FiringProfile{ID: "overflow"}); err != ErrProfileCapacity {
		t.Fatalf("got %v, want ErrProfileCapacity", err)
	}
}
