// SPDX-License-Identifier: BSD-3-Clause

package firingengine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kilnctl/kilnctl/pkg/elementhours"
	"github.com/kilnctl/kilnctl/pkg/firingfsm"
	"github.com/kilnctl/kilnctl/pkg/history"
	"github.com/kilnctl/kilnctl/pkg/kiln"
	"github.com/kilnctl/kilnctl/pkg/persistence"
	"github.com/kilnctl/kilnctl/pkg/pidctl"
)

// fakeDutyDriver records every SetDuty call made against it.
type fakeDutyDriver struct {
	mu    sync.Mutex
	duty  float64
	calls int
}

func (f *fakeDutyDriver) SetDuty(duty float64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.duty = duty
	f.calls++
	return nil
}

func (f *fakeDutyDriver) lastDuty() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duty
}

func (f *fakeDutyDriver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeEmergencyTrigger records whether the engine's guards asked it to
// latch an emergency stop.
type fakeEmergencyTrigger struct {
	mu      sync.Mutex
	stopped bool
}

func (f *fakeEmergencyTrigger) EmergencyStop(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeEmergencyTrigger) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// newTestEngine builds an Engine with the internal state tick and
// tickNormalFiring need, bypassing Run (and the NATS connection it
// establishes) so the tick logic can be exercised directly.
func newTestEngine(t *testing.T, modulator DutyDriver, trigger EmergencyTrigger) *Engine {
	t.Helper()

	store := persistence.NewMemoryStore()
	e := New(
		WithStore(store),
		WithModulator(modulator),
		WithSafetyTrigger(trigger),
	)

	fsm, err := firingfsm.New()
	if err != nil {
		t.Fatalf("firingfsm.New: %v", err)
	}

	e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	e.fsm = fsm
	e.pid = pidctl.New(2.0, 0.01, 50.0, 0, 1)
	e.tuner = pidctl.NewTuner()
	e.history = history.NewRecorder(store)
	e.elementHours = elementhours.New(0)
	e.progress = kiln.FiringProgress{Active: true, Status: kiln.StatusHeating}

	return e
}

func singleSegmentProfile(rampCPerHour, targetC float64) *kiln.FiringProfile {
	return &kiln.FiringProfile{
		ID:   "test-profile",
		Name: "Test Profile",
		Segments: []kiln.FiringSegment{
			{ID: "1", Name: "Only segment", RampRateCPerHour: rampCPerHour, TargetTempC: targetC, HoldMinutes: 10},
		},
		MaxTempC: targetC,
	}
}

func TestTickNormalFiring_MovingSetpointRampsTowardTarget(t *testing.T) {
	ctx := context.Background()
	modulator := &fakeDutyDriver{}
	trigger := &fakeEmergencyTrigger{}
	e := newTestEngine(t, modulator, trigger)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.profile = singleSegmentProfile(600.0, 1000.0) // 10 C/min ramp
	e.segmentIndex = 0
	e.segmentStartTime = t0
	e.segmentStartTempC = 20.0
	e.risingWindowStart = t0
	e.risingWindowStartTempC = 20.0

	now := t0.Add(30 * time.Second)
	reading := kiln.ThermocoupleReading{TempC: 25.0}

	e.tickNormalFiring(ctx, reading, 1.0, now)

	wantSetpoint := 20.0 + (600.0/3600.0)*30.0 // 25.0
	if got := e.progress.TargetTempC; got != wantSetpoint {
		t.Fatalf("TargetTempC = %v, want %v", got, wantSetpoint)
	}
	if modulator.callCount() == 0 {
		t.Fatalf("expected SetDuty to be called")
	}
	if d := modulator.lastDuty(); d < 0 || d > 1 {
		t.Fatalf("duty %v out of [0,1] bounds", d)
	}
	if trigger.wasStopped() {
		t.Fatalf("emergency stop should not have been requested during a normal ramp")
	}
	if e.lastError != kiln.ErrorNone {
		t.Fatalf("lastError = %v, want ErrorNone", e.lastError)
	}
}

func TestTickNormalFiring_NotRisingTripsEmergencyStop(t *testing.T) {
	ctx := context.Background()
	modulator := &fakeDutyDriver{}
	trigger := &fakeEmergencyTrigger{}
	e := newTestEngine(t, modulator, trigger)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.profile = singleSegmentProfile(600.0, 1000.0)
	e.segmentIndex = 0
	e.segmentStartTime = t0
	e.segmentStartTempC = 500.0
	e.risingWindowStart = t0
	e.risingWindowStartTempC = 500.0

	// Past the 15-minute rising-check window. The runaway guard is past its
	// minimum segment elapsed too, but +5C over 16 minutes is 18.75 C/hr,
	// far below twice the programmed 600 C/hr, so only the not-rising
	// guard fires.
	now := t0.Add(DefaultRisingCheckWindow + time.Minute)
	reading := kiln.ThermocoupleReading{TempC: 505.0} // +5C, below the 10C floor

	e.tickNormalFiring(ctx, reading, 1.0, now)

	if !trigger.wasStopped() {
		t.Fatalf("expected the kiln-not-rising guard to request an emergency stop")
	}
	if e.lastError != kiln.ErrorNotRising {
		t.Fatalf("lastError = %v, want ErrorNotRising", e.lastError)
	}
}

func TestTickNormalFiring_RunawayTripsEmergencyStop(t *testing.T) {
	ctx := context.Background()
	modulator := &fakeDutyDriver{}
	trigger := &fakeEmergencyTrigger{}
	e := newTestEngine(t, modulator, trigger)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.profile = singleSegmentProfile(100.0, 2000.0) // programmed 100 C/hr
	e.segmentIndex = 0
	e.segmentStartTime = t0
	e.segmentStartTempC = 20.0

	// Past the runaway guard's minimum segment elapsed, but within the
	// rising-check window, so only the runaway guard fires.
	now := t0.Add(DefaultRunawayMinSegmentElapsed + time.Minute)
	e.risingWindowStart = now.Add(-time.Minute)
	e.risingWindowStartTempC = 65.0

	// Elapsed is 6 minutes = 0.1h; at 700 C/hr actual ramp the kiln gained
	// 70C, more than 2x the programmed 100 C/hr and above the 50 C/hr
	// absolute floor.
	reading := kiln.ThermocoupleReading{TempC: 90.0}

	e.tickNormalFiring(ctx, reading, 1.0, now)

	if !trigger.wasStopped() {
		t.Fatalf("expected the runaway guard to request an emergency stop")
	}
	if e.lastError != kiln.ErrorRunaway {
		t.Fatalf("lastError = %v, want ErrorRunaway", e.lastError)
	}
}
