// SPDX-License-Identifier: BSD-3-Clause

package pidctl

import "testing"

func TestStepFirstRunSuppressesDerivative(t *testing.T) {
	p := New(2, 0.01, 50, 0, 1)
	out := p.Step(100, 20, 1)
	if out != 1.0 {
		t.Fatalf("got output %v, want 1.0 (clamped to out_max)", out)
	}
	got := p.State().Integral
	want := -79.2
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("got retained integral %v, want %v", got, want)
	}
}

func TestStepNonPositiveDtReturnsOutMinWithoutMutation(t *testing.T) {
	p := New(2, 0.01, 50, -1, 1)
	p.Step(100, 20, 1) // prime some state
	before := p.State()

	out := p.Step(100, 20, 0)
	if out != -1 {
		t.Fatalf("got %v, want out_min -1 for dt=0", out)
	}
	out = p.Step(100, 20, -1)
	if out != -1 {
		t.Fatalf("got %v, want out_min -1 for dt<0", out)
	}
	if after := p.State(); after != before {
		t.Fatalf("state mutated on non-positive dt: before %+v after %+v", before, after)
	}
}

func TestStepAntiWindupUnwindsOnReversal(t *testing.T) {
	p := New(2, 0.01, 50, 0, 1)
	p.Step(100, 20, 1) // saturates high, integral driven negative by anti-windup

	out := p.Step(100, 150, 1) // error now negative, well below target
	if out != 0 {
		t.Fatalf("got %v, want out_min 0 once error reverses past the band", out)
	}
}

func TestReset(t *testing.T) {
	p := New(1, 1, 1, 0, 1)
	p.Step(10, 0, 1)
	p.Reset()
	st := p.State()
	if st.Integral != 0 || st.PrevError != 0 || !st.FirstRun {
		t.Fatalf("got %+v, want zeroed integral/prevError and FirstRun=true", st)
	}
}
