// SPDX-License-Identifier: BSD-3-Clause

// Package pidctl implements the kiln's closed-loop temperature control: a
// positional PID with conditional-integration anti-windup, and a
// relay-method auto-tuner that derives Ziegler-Nichols gains from observed
// oscillation.
package pidctl

import "github.com/kilnctl/kilnctl/pkg/kiln"

// PID is a standard positional controller computed once per tick with an
// externally supplied dt. It holds no goroutines or clocks of its own; the
// firing engine calls Step once per control tick.
type PID struct {
	state kiln.PIDState
}

// New creates a PID with the given gains and output limits, in first-run
// state (the first Step call suppresses the derivative term).
func New(kp, ki, kd, outMin, outMax float64) *PID {
	return &PID{
		state: kiln.PIDState{
			Kp: kp, Ki: ki, Kd: kd,
			OutMin: outMin, OutMax: outMax,
			FirstRun: true,
		},
	}
}

// SetGains updates the controller's gains without touching its accumulator.
func (p *PID) SetGains(kp, ki, kd float64) {
	p.state.Kp, p.state.Ki, p.state.Kd = kp, ki, kd
}

// State returns a copy of the controller's internal state, for snapshotting
// or persistence.
func (p *PID) State() kiln.PIDState { return p.state }

// Reset zeroes the integral and previous error and re-arms first-run.
func (p *PID) Reset() {
	p.state.Integral = 0
	p.state.PrevError = 0
	p.state.FirstRun = true
}

// Step computes one control tick. dtSeconds <= 0 returns OutMin without any
// state mutation, per the documented boundary behavior.
//
// state.Integral holds the already Ki-scaled integral term (i.e. the value
// of i = Ki*Sum(e*dt)), not the raw error-time sum. The conditional
// anti-windup undoes the *raw* e*dt increment from that scaled value on
// saturation, matching the controller's documented worked example exactly
// (Kp=2 Ki=0.01 Kd=50, setpoint=100, measured=20, dt=1 retains integral
// -79.2 after clamping to out_max=1).
func (p *PID) Step(setpoint, measured, dtSeconds float64) float64 {
	if dtSeconds <= 0 {
		return p.state.OutMin
	}

	e := setpoint - measured

	pTerm := p.state.Kp * e

	rawIncrement := e * dtSeconds
	p.state.Integral += p.state.Ki * rawIncrement
	iTerm := p.state.Integral

	var dTerm float64
	if !p.state.FirstRun {
		dTerm = p.state.Kd * (e - p.state.PrevError) / dtSeconds
	}
	p.state.FirstRun = false
	p.state.PrevError = e

	preClamp := pTerm + iTerm + dTerm
	out := preClamp

	if preClamp > p.state.OutMax && e > 0 {
		p.state.Integral -= rawIncrement
		out = p.state.OutMax
	} else if preClamp < p.state.OutMin && e < 0 {
		p.state.Integral -= rawIncrement
		out = p.state.OutMin
	} else if out > p.state.OutMax {
		out = p.state.OutMax
	} else if out < p.state.OutMin {
		out = p.state.OutMin
	}

	return out
}
