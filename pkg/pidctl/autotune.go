// SPDX-License-Identifier: BSD-3-Clause

package pidctl

import (
	"math"
	"time"

	"github.com/kilnctl/kilnctl/pkg/kiln"
)

// DefaultCyclesNeeded is the number of full oscillation cycles the relay
// tuner averages over before computing gains.
const DefaultCyclesNeeded = 5

// DefaultTuneTimeout aborts a tuning run that never settles into oscillation.
const DefaultTuneTimeout = 60 * time.Minute

// Tuner drives the plant into bang-bang oscillation around a setpoint and
// derives Ziegler-Nichols gains from the observed ultimate gain and period.
// It is ticked once per second by the firing engine; it owns no clock or
// goroutine of its own.
type Tuner struct {
	state kiln.AutoTuneState
}

// NewTuner returns a tuner in TunePhaseIdle.
func NewTuner() *Tuner {
	return &Tuner{state: kiln.AutoTuneState{Phase: kiln.TunePhaseIdle}}
}

// State returns a copy of the tuner's working state, for snapshotting.
func (t *Tuner) State() kiln.AutoTuneState { return t.state }

// Start begins a tuning run. setpointC and hysteresisC must both be > 0.
func (t *Tuner) Start(setpointC, hysteresisC float64, now time.Time) error {
	if setpointC <= 0 || hysteresisC <= 0 {
		return ErrInvalidTuneParams
	}
	t.state = kiln.AutoTuneState{
		Phase:        kiln.TunePhaseHeatingToSetpoint,
		SetpointC:    setpointC,
		HysteresisC:  hysteresisC,
		CyclesNeeded: DefaultCyclesNeeded,
		StartTime:    now,
		Deadline:     now.Add(DefaultTuneTimeout),
	}
	return nil
}

// Stop aborts a run in progress, transitioning directly to Failed.
func (t *Tuner) Stop() {
	if t.state.Phase == kiln.TunePhaseHeatingToSetpoint || t.state.Phase == kiln.TunePhaseRelayCycling {
		t.state.Phase = kiln.TunePhaseFailed
	}
}

// Step advances the tuner by one tick given the current measurement, and
// returns the SSR duty output for this tick along with whether the run has
// reached a terminal phase (Complete or Failed). In Idle, Complete, or
// Failed it always returns (0, true).
func (t *Tuner) Step(measuredC float64, now time.Time) (output float64, done bool) {
	switch t.state.Phase {
	case kiln.TunePhaseIdle, kiln.TunePhaseComplete, kiln.TunePhaseFailed:
		return 0, true
	}

	if now.After(t.state.Deadline) {
		t.state.Phase = kiln.TunePhaseFailed
		return 0, true
	}

	switch t.state.Phase {
	case kiln.TunePhaseHeatingToSetpoint:
		if measuredC >= t.state.SetpointC-t.state.HysteresisC {
			t.state.PeakHighC = measuredC
			t.state.PeakLowC = measuredC
			t.state.LastCrossing = now
			t.state.AboveSetpoint = true
			t.state.Phase = kiln.TunePhaseRelayCycling
			return 0, false
		}
		return 1.0, false

	case kiln.TunePhaseRelayCycling:
		if measuredC > t.state.PeakHighC {
			t.state.PeakHighC = measuredC
		}
		if measuredC < t.state.PeakLowC {
			t.state.PeakLowC = measuredC
		}

		upper := t.state.SetpointC + t.state.HysteresisC
		lower := t.state.SetpointC - t.state.HysteresisC

		switch {
		case t.state.AboveSetpoint && measuredC < lower:
			t.state.AboveSetpoint = false
			t.onHalfCycle(measuredC, now)
		case !t.state.AboveSetpoint && measuredC > upper:
			t.state.AboveSetpoint = true
			t.onHalfCycle(measuredC, now)
		}

		if t.state.CyclesDone >= t.state.CyclesNeeded {
			t.finish()
			return 0, t.state.Phase == kiln.TunePhaseComplete || t.state.Phase == kiln.TunePhaseFailed
		}

		if t.state.AboveSetpoint {
			return 0, false
		}
		return 1.0, false
	}

	return 0, true
}

// onHalfCycle records one above_setpoint transition. Every two half-cycles
// close a full oscillation period: the running period and amplitude sums
// are updated, the peak trackers reset to the current reading, and
// last-crossing advances to now.
func (t *Tuner) onHalfCycle(measuredC float64, now time.Time) {
	t.state.HalfCycles++
	if t.state.HalfCycles < 2 {
		return
	}
	period := now.Sub(t.state.LastCrossing)
	amplitude := (t.state.PeakHighC - t.state.PeakLowC) / 2

	t.state.PeriodSum += period
	t.state.AmplitudeSum += amplitude
	t.state.CyclesDone++

	t.state.PeakHighC = measuredC
	t.state.PeakLowC = measuredC
	t.state.HalfCycles = 0
	t.state.LastCrossing = now
}

// finish computes Ziegler-Nichols gains from the accumulated cycles and
// transitions to Complete, or to Failed if the observed amplitude is too
// small to trust.
func (t *Tuner) finish() {
	avgPeriodS := (t.state.PeriodSum / time.Duration(t.state.CyclesDone)).Seconds()
	avgAmplitudeC := t.state.AmplitudeSum / float64(t.state.CyclesDone)

	if avgAmplitudeC < 0.1 {
		t.state.Phase = kiln.TunePhaseFailed
		return
	}

	ku := 4 / (math.Pi * avgAmplitudeC)
	pu := avgPeriodS

	t.state.ResultKp = 0.6 * ku
	t.state.ResultKi = 1.2 * ku / pu
	t.state.ResultKd = 0.075 * ku * pu
	t.state.Phase = kiln.TunePhaseComplete
}
