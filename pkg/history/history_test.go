// SPDX-License-Identifier: BSD-3-Clause

package history

import (
	"context"
	"testing"
	"time"

	"github.com/kilnctl/kilnctl/pkg/kiln"
	"github.com/kilnctl/kilnctl/pkg/persistence"
)

func TestRecorderSequencesStartSampleFinish(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	r := NewRecorder(store)

	start := time.Unix(1000, 0)
	id, err := r.StartRecord(ctx, "cone06", "Cone 06 bisque", start)
	if err != nil {
		t.Fatalf("StartRecord: %v", err)
	}
	if id != 1 {
		t.Fatalf("got id %d, want 1", id)
	}

	if err := r.AppendSample(ctx, id, start.Add(time.Second), 20, 100); err != nil {
		t.Fatalf("AppendSample: %v", err)
	}
	if err := r.AppendSample(ctx, id, start.Add(2*time.Second), 25, 100); err != nil {
		t.Fatalf("AppendSample: %v", err)
	}
	if err := r.FinishRecord(ctx, id, kiln.OutcomeComplete, kiln.ErrorNone, 1000, 2*time.Second); err != nil {
		t.Fatalf("FinishRecord: %v", err)
	}

	events := store.Events()
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].Kind != persistence.HistoryEventStart || events[0].Record.ProfileID != "cone06" {
		t.Fatalf("events[0] = %+v, want a start event for cone06", events[0])
	}
	if events[1].Kind != persistence.HistoryEventSample || events[1].Sample.TempC != 20 {
		t.Fatalf("events[1] = %+v, want a sample at 20C", events[1])
	}
	if events[2].Kind != persistence.HistoryEventSample || events[2].Sample.TempC != 25 {
		t.Fatalf("events[2] = %+v, want a sample at 25C", events[2])
	}
	last := events[3]
	if last.Kind != persistence.HistoryEventFinish || last.Outcome != kiln.OutcomeComplete || last.PeakTempC != 1000 {
		t.Fatalf("events[3] = %+v, want a complete finish event peaking at 1000C", last)
	}
}

func TestRecorderAssignsDistinctIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(persistence.NewMemoryStore())

	id1, err := r.StartRecord(ctx, "a", "A", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("StartRecord: %v", err)
	}
	id2, err := r.StartRecord(ctx, "b", "B", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("StartRecord: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("got equal ids %d and %d, want distinct", id1, id2)
	}
	if id2 <= id1 {
		t.Fatalf("got id2=%d <= id1=%d, want increasing", id2, id1)
	}
}
