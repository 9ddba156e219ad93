// SPDX-License-Identifier: BSD-3-Clause

// Package elementhours accumulates heating-element on-time for diagnostics
// and (eventually) electricity-cost estimation, persisting the running
// total on a fixed interval rather than every tick.
package elementhours

import (
	"context"
	"sync"
	"time"

	"github.com/kilnctl/kilnctl/pkg/persistence"
)

// SaveInterval is how often the accumulated counter is flushed to storage.
const SaveInterval = 5 * time.Minute

// Accumulator tracks cumulative element-on seconds in memory and flushes
// to a persistence.Store on SaveInterval boundaries.
type Accumulator struct {
	mu           sync.Mutex
	totalSeconds uint32
	sinceSave    time.Duration
}

// New seeds the accumulator from a previously persisted total, e.g. the
// value returned by persistence.Store.LoadElementHours on startup.
func New(initialSeconds uint32) *Accumulator {
	return &Accumulator{totalSeconds: initialSeconds}
}

// Tick advances the accumulator by dt, counting it toward on-time only
// when elementOn is true (the SSR's commanded duty for that tick was
// nonzero). It reports whether SaveInterval has elapsed since the last
// Save, so callers can decide to persist without a separate timer.
func (a *Accumulator) Tick(dt time.Duration, elementOn bool) (dueForSave bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if elementOn {
		a.totalSeconds += uint32(dt.Round(time.Second).Seconds())
	}
	a.sinceSave += dt
	return a.sinceSave >= SaveInterval
}

// Seconds returns the current cumulative total.
func (a *Accumulator) Seconds() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalSeconds
}

// Save persists the current total and resets the save-due window. Call
// this when Tick reports dueForSave, or on a clean shutdown.
func (a *Accumulator) Save(ctx context.Context, store persistence.Store) error {
	a.mu.Lock()
	total := a.totalSeconds
	a.mu.Unlock()

	if err := store.SaveElementHours(ctx, total); err != nil {
		return err
	}

	a.mu.Lock()
	a.sinceSave = 0
	a.mu.Unlock()
	return nil
}
