// SPDX-License-Identifier: BSD-3-Clause

// Package history wraps the persistence port's single append_history_event
// operation with the domain-specific start/sample/finish protocol the
// firing engine follows: a Start event always precedes the first Sample,
// and a Finish event always follows the last.
package history

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kilnctl/kilnctl/pkg/kiln"
	"github.com/kilnctl/kilnctl/pkg/persistence"
)

// Recorder issues monotonically increasing record IDs and sequences the
// start/sample/finish events for one sink.
type Recorder struct {
	store  persistence.Store
	nextID atomic.Uint64
}

// NewRecorder wraps store. IDs start at 1.
func NewRecorder(store persistence.Store) *Recorder {
	return &Recorder{store: store}
}

// StartRecord begins a new history record for a firing and returns its id.
func (r *Recorder) StartRecord(ctx context.Context, profileID, profileName string, startTime time.Time) (uint64, error) {
	id := r.nextID.Add(1)
	rec := kiln.HistoryRecord{
		ID:          id,
		StartTime:   startTime,
		ProfileID:   profileID,
		ProfileName: profileName,
	}
	err := r.store.AppendHistoryEvent(ctx, persistence.HistoryEvent{
		Kind:     persistence.HistoryEventStart,
		RecordID: id,
		Record:   rec,
	})
	if err != nil {
		return 0, fmt.Errorf("history: start record: %w", err)
	}
	return id, nil
}

// AppendSample records one temperature observation for an in-progress record.
func (r *Recorder) AppendSample(ctx context.Context, recordID uint64, now time.Time, tempC, setpointC float64) error {
	err := r.store.AppendHistoryEvent(ctx, persistence.HistoryEvent{
		Kind:     persistence.HistoryEventSample,
		RecordID: recordID,
		Sample: kiln.HistorySample{
			RecordID:  recordID,
			Timestamp: now,
			TempC:     tempC,
			SetpointC: setpointC,
		},
	})
	if err != nil {
		return fmt.Errorf("history: append sample: %w", err)
	}
	return nil
}

// FinishRecord closes out a record with its terminal outcome.
func (r *Recorder) FinishRecord(ctx context.Context, recordID uint64, outcome kiln.HistoryOutcome, errorCode kiln.ErrorCode, peakTempC float64, duration time.Duration) error {
	err := r.store.AppendHistoryEvent(ctx, persistence.HistoryEvent{
		Kind:      persistence.HistoryEventFinish,
		RecordID:  recordID,
		Outcome:   outcome,
		ErrorCode: errorCode,
		PeakTempC: peakTempC,
		Duration:  duration,
	})
	if err != nil {
		return fmt.Errorf("history: finish record: %w", err)
	}
	return nil
}
