// SPDX-License-Identifier: BSD-3-Clause

package pidctl

import (
	"math"
	"testing"
	"time"

	"github.com/kilnctl/kilnctl/pkg/kiln"
)

func TestTunerStartRejectsNonPositiveParams(t *testing.T) {
	tu := NewTuner()
	now := time.Unix(0, 0)
	cases := []struct {
		setpoint, hysteresis float64
	}{
		{0, 5}, {-10, 5}, {500, 0}, {500, -5},
	}
	for _, c := range cases {
		if err := tu.Start(c.setpoint, c.hysteresis, now); err == nil {
			t.Errorf("Start(%v, %v): got nil error, want ErrInvalidTuneParams", c.setpoint, c.hysteresis)
		}
	}
}

func TestTunerHeatingToSetpointThenRelayCycling(t *testing.T) {
	tu := NewTuner()
	base := time.Unix(1000, 0)
	if err := tu.Start(500, 10, base); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out, done := tu.Step(400, base)
	if done || out != 1.0 {
		t.Fatalf("below setpoint-hysteresis: got (%v, %v), want (1.0, false)", out, done)
	}

	now := base.Add(time.Second)
	out, done = tu.Step(491, now)
	if done {
		t.Fatalf("reaching setpoint-hysteresis should not finish the run")
	}
	if tu.State().Phase != kiln.TunePhaseRelayCycling {
		t.Fatalf("got phase %v, want RelayCycling", tu.State().Phase)
	}
	if !tu.State().AboveSetpoint {
		t.Fatalf("entering RelayCycling should seed AboveSetpoint=true")
	}
}

// TestTunerFullRunProducesZieglerNicholsGains drives the relay through
// cycles_needed synthetic oscillations of known amplitude and period, then
// checks the published gains are exactly the Ziegler-Nichols formulas
// applied to the tuner's own accumulated averages.
func TestTunerFullRunProducesZieglerNicholsGains(t *testing.T) {
	tu := NewTuner()
	base := time.Unix(1000, 0)
	if err := tu.Start(500, 10, base); err != nil {
		t.Fatalf("Start: %v", err)
	}

	now := base
	tu.Step(400, now) // heating to setpoint
	now = now.Add(time.Second)
	tu.Step(491, now) // enters RelayCycling, AboveSetpoint=true

	cyclesNeeded := tu.State().CyclesNeeded
	for cycle := 1; cycle <= cyclesNeeded; cycle++ {
		now = now.Add(30 * time.Second)
		_, done := tu.Step(489, now) // crosses below lower: half-cycle 1
		if done {
			t.Fatalf("cycle %d: half-cycle 1 unexpectedly finished the run", cycle)
		}

		now = now.Add(30 * time.Second)
		_, done = tu.Step(511, now) // crosses above upper: half-cycle 2, closes a period
		wantDone := cycle == cyclesNeeded
		if done != wantDone {
			t.Fatalf("cycle %d: got done=%v, want %v", cycle, done, wantDone)
		}
	}

	st := tu.State()
	if st.Phase != kiln.TunePhaseComplete {
		t.Fatalf("got phase %v, want Complete", st.Phase)
	}
	if st.CyclesDone != cyclesNeeded {
		t.Fatalf("got %d cycles done, want %d", st.CyclesDone, cyclesNeeded)
	}

	avgPeriodS := (st.PeriodSum / time.Duration(cyclesNeeded)).Seconds()
	avgAmplitudeC := st.AmplitudeSum / float64(cyclesNeeded)
	ku := 4 / (math.Pi * avgAmplitudeC)
	wantKp := 0.6 * ku
	wantKi := 1.2 * ku / avgPeriodS
	wantKd := 0.075 * ku * avgPeriodS

	if !almostEqual(st.ResultKp, wantKp) {
		t.Errorf("Kp: got %v, want %v", st.ResultKp, wantKp)
	}
	if !almostEqual(st.ResultKi, wantKi) {
		t.Errorf("Ki: got %v, want %v", st.ResultKi, wantKi)
	}
	if !almostEqual(st.ResultKd, wantKd) {
		t.Errorf("Kd: got %v, want %v", st.ResultKd, wantKd)
	}
}

func TestTunerTinyAmplitudeFails(t *testing.T) {
	tu := NewTuner()
	base := time.Unix(1000, 0)
	tu.Start(490, 0.02, base)

	now := base
	tu.Step(400, now)
	now = now.Add(time.Second)
	tu.Step(490.01, now)

	cyclesNeeded := tu.State().CyclesNeeded
	var done bool
	for cycle := 1; cycle <= cyclesNeeded; cycle++ {
		now = now.Add(30 * time.Second)
		tu.Step(489.97, now)
		now = now.Add(30 * time.Second)
		_, done = tu.Step(490.03, now)
	}
	if !done {
		t.Fatalf("expected the run to finish after cycles_needed half-cycle pairs")
	}
	if tu.State().Phase != kiln.TunePhaseFailed {
		t.Fatalf("got phase %v, want Failed for amplitude < 0.1", tu.State().Phase)
	}
}

func TestTunerTimesOut(t *testing.T) {
	tu := NewTuner()
	base := time.Unix(1000, 0)
	tu.Start(500, 10, base)

	out, done := tu.Step(400, base.Add(DefaultTuneTimeout+time.Second))
	if !done || out != 0 {
		t.Fatalf("got (%v, %v), want (0, true) past the timeout deadline", out, done)
	}
	if tu.State().Phase != kiln.TunePhaseFailed {
		t.Fatalf("got phase %v, want Failed on timeout", tu.State().Phase)
	}
}

func almostEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	return d < eps && d > -eps
}
