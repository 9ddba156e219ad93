// SPDX-License-Identifier: BSD-3-Clause

package firingfsm

import (
	"context"
	"testing"
)

func TestStartHeatsThenHoldsThenAdvances(t *testing.T) {
	ctx := context.Background()
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := m.Current(); got != StatusIdle {
		t.Fatalf("got initial status %v, want Idle", got)
	}

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := m.Current(); got != StatusHeating {
		t.Fatalf("got %v, want Heating", got)
	}
	if !m.IsActive() {
		t.Fatalf("Heating should be active")
	}

	if err := m.AtTarget(ctx); err != nil {
		t.Fatalf("AtTarget: %v", err)
	}
	if got := m.Current(); got != StatusHolding {
		t.Fatalf("got %v, want Holding", got)
	}

	if err := m.AdvanceCooling(ctx); err != nil {
		t.Fatalf("AdvanceCooling: %v", err)
	}
	if got := m.Current(); got != StatusCooling {
		t.Fatalf("got %v, want Cooling", got)
	}
}

func TestEmergencyFromAnyActiveStateGoesToError(t *testing.T) {
	ctx := context.Background()
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Emergency(ctx); err != nil {
		t.Fatalf("Emergency: %v", err)
	}
	if got := m.Current(); got != StatusError {
		t.Fatalf("got %v, want Error", got)
	}
	if m.IsActive() {
		t.Fatalf("Error should not be active")
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop from Error: %v", err)
	}
	if got := m.Current(); got != StatusIdle {
		t.Fatalf("got %v, want Idle after Stop", got)
	}
}

func TestPauseAndResume(t *testing.T) {
	ctx := context.Background()
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := m.Current(); got != StatusPaused {
		t.Fatalf("got %v, want Paused", got)
	}
	if err := m.ResumeHeating(ctx); err != nil {
		t.Fatalf("ResumeHeating: %v", err)
	}
	if got := m.Current(); got != StatusHeating {
		t.Fatalf("got %v, want Heating", got)
	}
}

func TestAutoTuneOnlyFromIdle(t *testing.T) {
	ctx := context.Background()
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.AutoTuneStart(ctx); err == nil {
		t.Fatalf("got nil error, want a rejection for auto-tune while actively firing")
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.AutoTuneStart(ctx); err != nil {
		t.Fatalf("AutoTuneStart from Idle: %v", err)
	}
	if got := m.Current(); got != StatusAutoTune {
		t.Fatalf("got %v, want AutoTune", got)
	}
	if err := m.AutoTuneDone(ctx); err != nil {
		t.Fatalf("AutoTuneDone: %v", err)
	}
	if got := m.Current(); got != StatusIdle {
		t.Fatalf("got %v, want Idle", got)
	}
}
