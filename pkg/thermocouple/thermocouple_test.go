// SPDX-License-Identifier: BSD-3-Clause

package thermocouple

import (
	"testing"
	"time"

	"github.com/kilnctl/kilnctl/pkg/kiln"
)

func TestDecodeNoFault(t *testing.T) {
	r := Frame(0x01900190).Decode()
	if r.Fault.HasFault() {
		t.Fatalf("got fault %v, want none", r.Fault)
	}
	if r.TempC != 25.0 {
		t.Errorf("got TempC %v, want 25.0", r.TempC)
	}
	if r.ColdJunctionC != 1.5625 {
		t.Errorf("got ColdJunctionC %v, want 1.5625", r.ColdJunctionC)
	}
}

func TestDecodeOpenCircuitFault(t *testing.T) {
	r := Frame(0x00010001).Decode()
	if !r.Fault.HasFault() {
		t.Fatalf("expected a fault")
	}
	if r.Fault != kiln.FaultOpenCircuit {
		t.Errorf("got fault %v, want FaultOpenCircuit", r.Fault)
	}
	if r.TempC != 0 || r.ColdJunctionC != 0 {
		t.Errorf("temperatures must be left undefined (zero) on fault, got TempC=%v ColdJunctionC=%v", r.TempC, r.ColdJunctionC)
	}
}

func TestDecodeNegativeTemperature(t *testing.T) {
	// TC field = -4 (0x3FFC in 14-bit two's complement) -> -1.0 degC.
	var f Frame
	f |= Frame(0x3FFC) << 18
	r := f.Decode()
	if r.TempC != -1.0 {
		t.Errorf("got TempC %v, want -1.0", r.TempC)
	}
}

type fakeSource struct {
	frames []Frame
	i      int
}

func (s *fakeSource) ReadFrame() (Frame, error) {
	f := s.frames[s.i]
	if s.i < len(s.frames)-1 {
		s.i++
	}
	return f, nil
}

func TestSamplerStampsMonotonicTimestamps(t *testing.T) {
	src := &fakeSource{frames: []Frame{0x01900190, 0x01900190}}
	tick := time.Unix(1000, 0)
	s := NewSampler(src, func() time.Time {
		tick = tick.Add(250 * time.Millisecond)
		return tick
	})

	r1, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	r2, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if !r2.Timestamp.After(r1.Timestamp) {
		t.Errorf("got timestamps %v then %v, want strictly increasing", r1.Timestamp, r2.Timestamp)
	}
}
