// SPDX-License-Identifier: BSD-3-Clause

// Package firingfsm specializes pkg/state into the firing status machine
// described by the firing engine: Idle, Heating, Holding, Cooling, Paused,
// AutoTune, Complete, and Error, with the transition set the engine's tick
// loop drives.
package firingfsm

import (
	"context"
	"fmt"

	"github.com/kilnctl/kilnctl/pkg/state"
)

// Status is one of the firing engine's observable states.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusHeating   Status = "heating"
	StatusHolding   Status = "holding"
	StatusCooling   Status = "cooling"
	StatusPaused    Status = "paused"
	StatusAutoTune  Status = "autotune"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

const (
	triggerStart        = "start"
	triggerStartDelayed = "start_delayed"
	triggerDelayElapsed = "delay_elapsed"
	triggerAtTarget     = "at_target"
	triggerAdvanceCool  = "advance_cool"
	triggerAdvanceHeat  = "advance_heat"
	triggerPause        = "pause"
	triggerResumeHeat   = "resume_heat"
	triggerResumeHold   = "resume_hold"
	triggerComplete     = "complete"
	triggerEmergency    = "emergency"
	triggerStop         = "stop"
	triggerTuneStart    = "autotune_start"
	triggerTuneDone     = "autotune_done"
)

// Machine wraps a pkg/state.FSM configured with the firing status graph.
type Machine struct {
	fsm *state.FSM
}

// New builds a firing status machine starting in Idle.
func New() (*Machine, error) {
	active := []string{
		string(StatusHeating), string(StatusHolding), string(StatusCooling),
		string(StatusPaused), string(StatusAutoTune),
	}

	states := make([]state.StateDefinition, 0, 8)
	for _, s := range []Status{
		StatusIdle, StatusHeating, StatusHolding, StatusCooling,
		StatusPaused, StatusAutoTune, StatusComplete, StatusError,
	} {
		states = append(states, state.StateDefinition{Name: string(s)})
	}

	cfg := state.NewConfig(
		state.WithName("firing-status"),
		state.WithDescription("kiln firing status"),
		state.WithInitialState(string(StatusIdle)),
		state.WithStates(states...),
		state.WithTransition(string(StatusIdle), string(StatusHeating), triggerStart),
		state.WithTransition(string(StatusIdle), string(StatusIdle), triggerStartDelayed),
		state.WithTransition(string(StatusIdle), string(StatusHeating), triggerDelayElapsed),
		state.WithTransition(string(StatusHeating), string(StatusHolding), triggerAtTarget),
		state.WithTransition(string(StatusCooling), string(StatusHolding), triggerAtTarget),
		state.WithTransition(string(StatusHolding), string(StatusHeating), triggerAdvanceHeat),
		state.WithTransition(string(StatusHolding), string(StatusCooling), triggerAdvanceCool),
		// SkipSegment may fire the advance triggers directly from Heating or
		// Cooling too, bypassing Holding, including the same-direction case.
		state.WithTransition(string(StatusHeating), string(StatusCooling), triggerAdvanceCool),
		state.WithTransition(string(StatusHeating), string(StatusHeating), triggerAdvanceHeat),
		state.WithTransition(string(StatusCooling), string(StatusHeating), triggerAdvanceHeat),
		state.WithTransition(string(StatusCooling), string(StatusCooling), triggerAdvanceCool),
		state.WithTransition(string(StatusPaused), string(StatusHeating), triggerResumeHeat),
		state.WithTransition(string(StatusPaused), string(StatusHolding), triggerResumeHold),
		state.WithTransition(string(StatusAutoTune), string(StatusIdle), triggerTuneDone),
		state.WithTransition(string(StatusIdle), string(StatusAutoTune), triggerTuneStart),
	)
	for _, s := range active {
		cfg.Transitions = append(cfg.Transitions,
			state.TransitionDefinition{From: s, To: string(StatusPaused), Trigger: triggerPause},
			state.TransitionDefinition{From: s, To: string(StatusComplete), Trigger: triggerComplete},
			state.TransitionDefinition{From: s, To: string(StatusError), Trigger: triggerEmergency},
			state.TransitionDefinition{From: s, To: string(StatusIdle), Trigger: triggerStop},
		)
	}
	cfg.Transitions = append(cfg.Transitions,
		state.TransitionDefinition{From: string(StatusComplete), To: string(StatusIdle), Trigger: triggerStop},
		state.TransitionDefinition{From: string(StatusError), To: string(StatusIdle), Trigger: triggerStop},
	)

	fsm, err := state.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build firing status machine: %w", err)
	}
	if err := fsm.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("start firing status machine: %w", err)
	}
	return &Machine{fsm: fsm}, nil
}

// Current returns the current status.
func (m *Machine) Current() Status {
	return Status(m.fsm.CurrentState())
}

// Start fires the immediate-start transition (Idle -> Heating).
func (m *Machine) Start(ctx context.Context) error { return m.fsm.Fire(ctx, triggerStart, nil) }

// DelayElapsed fires the delayed-start-to-heating transition.
func (m *Machine) DelayElapsed(ctx context.Context) error {
	return m.fsm.Fire(ctx, triggerDelayElapsed, nil)
}

// AtTarget fires the hold-entry transition from Heating or Cooling.
func (m *Machine) AtTarget(ctx context.Context) error { return m.fsm.Fire(ctx, triggerAtTarget, nil) }

// AdvanceHeating fires the hold-to-next-segment transition for a heating segment.
func (m *Machine) AdvanceHeating(ctx context.Context) error {
	return m.fsm.Fire(ctx, triggerAdvanceHeat, nil)
}

// AdvanceCooling fires the hold-to-next-segment (or direct heat-to-cool) transition.
func (m *Machine) AdvanceCooling(ctx context.Context) error {
	return m.fsm.Fire(ctx, triggerAdvanceCool, nil)
}

// Pause fires the pause transition from any active state.
func (m *Machine) Pause(ctx context.Context) error { return m.fsm.Fire(ctx, triggerPause, nil) }

// ResumeHeating fires the resume-to-heating transition from Paused.
func (m *Machine) ResumeHeating(ctx context.Context) error {
	return m.fsm.Fire(ctx, triggerResumeHeat, nil)
}

// ResumeHolding fires the resume-to-holding transition from Paused.
func (m *Machine) ResumeHolding(ctx context.Context) error {
	return m.fsm.Fire(ctx, triggerResumeHold, nil)
}

// Complete fires the completion transition from any active state.
func (m *Machine) Complete(ctx context.Context) error { return m.fsm.Fire(ctx, triggerComplete, nil) }

// Emergency fires the safety-triggered transition to Error.
func (m *Machine) Emergency(ctx context.Context) error { return m.fsm.Fire(ctx, triggerEmergency, nil) }

// Stop fires the operator-requested transition back to Idle.
func (m *Machine) Stop(ctx context.Context) error { return m.fsm.Fire(ctx, triggerStop, nil) }

// AutoTuneStart fires the Idle-to-AutoTune transition.
func (m *Machine) AutoTuneStart(ctx context.Context) error {
	return m.fsm.Fire(ctx, triggerTuneStart, nil)
}

// AutoTuneDone fires the AutoTune-to-Idle transition.
func (m *Machine) AutoTuneDone(ctx context.Context) error {
	return m.fsm.Fire(ctx, triggerTuneDone, nil)
}

// IsActive reports whether the current status represents an active firing
// or auto-tune run (anything other than Idle, Complete, or Error).
func (m *Machine) IsActive() bool {
	switch m.Current() {
	case StatusHeating, StatusHolding, StatusCooling, StatusPaused, StatusAutoTune:
		return true
	default:
		return false
	}
}
