// SPDX-License-Identifier: BSD-3-Clause

package state

import (
	"context"
	"fmt"
	"time"
)

// StateDefinition describes a single state and its entry/exit hooks.
type StateDefinition struct {
	// Name is the state's identifier, as used in transitions and CurrentState.
	Name string
	// OnEntry runs when the machine enters this state.
	OnEntry func(ctx context.Context) error
	// OnExit runs when the machine leaves this state.
	OnExit func(ctx context.Context) error
}

// TransitionDefinition describes a single permitted transition.
type TransitionDefinition struct {
	From    string
	To      string
	Trigger string
	// Guard, if set, must return true for the transition to be permitted.
	Guard func(ctx context.Context) bool
	// Action, if set, runs once the transition has committed.
	Action func(ctx context.Context, from, to string) error
}

// Config holds the configuration for a state machine wrapper.
type Config struct {
	Name          string
	Description   string
	InitialState  string
	States        []StateDefinition
	Transitions   []TransitionDefinition
	StateTimeout  time.Duration
	PersistState  bool
	EnableTracing bool
}

// Option represents a configuration option for the state machine.
type Option interface {
	apply(*Config)
}

type nameOption struct{ name string }

func (o *nameOption) apply(c *Config) { c.Name = o.name }

// WithName sets the name of the state machine.
func WithName(name string) Option { return &nameOption{name: name} }

type descriptionOption struct{ description string }

func (o *descriptionOption) apply(c *Config) { c.Description = o.description }

// WithDescription sets the description of the state machine.
func WithDescription(description string) Option {
	return &descriptionOption{description: description}
}

type initialStateOption struct{ state string }

func (o *initialStateOption) apply(c *Config) { c.InitialState = o.state }

// WithInitialState sets the initial state of the state machine.
func WithInitialState(state string) Option { return &initialStateOption{state: state} }

type statesOption struct{ states []StateDefinition }

func (o *statesOption) apply(c *Config) { c.States = append(c.States, o.states...) }

// WithStates adds state definitions to the state machine.
func WithStates(states ...StateDefinition) Option { return &statesOption{states: states} }

type transitionOption struct{ transition TransitionDefinition }

func (o *transitionOption) apply(c *Config) { c.Transitions = append(c.Transitions, o.transition) }

// WithTransition adds a plain transition to the state machine.
func WithTransition(from, to, trigger string) Option {
	return &transitionOption{transition: TransitionDefinition{From: from, To: to, Trigger: trigger}}
}

// WithGuardedTransition adds a transition with a guard condition.
func WithGuardedTransition(from, to, trigger string, guard func(ctx context.Context) bool) Option {
	return &transitionOption{transition: TransitionDefinition{From: from, To: to, Trigger: trigger, Guard: guard}}
}

// WithActionTransition adds a transition with a post-commit action.
func WithActionTransition(from, to, trigger string, action func(ctx context.Context, from, to string) error) Option {
	return &transitionOption{transition: TransitionDefinition{From: from, To: to, Trigger: trigger, Action: action}}
}

// WithCompleteTransition adds a transition with both guard and action.
func WithCompleteTransition(from, to, trigger string, guard func(ctx context.Context) bool, action func(ctx context.Context, from, to string) error) Option {
	return &transitionOption{transition: TransitionDefinition{From: from, To: to, Trigger: trigger, Guard: guard, Action: action}}
}

type stateTimeoutOption struct{ timeout time.Duration }

func (o *stateTimeoutOption) apply(c *Config) { c.StateTimeout = o.timeout }

// WithStateTimeout sets the maximum duration for state transitions.
func WithStateTimeout(timeout time.Duration) Option { return &stateTimeoutOption{timeout: timeout} }

type persistStateOption struct{ enabled bool }

func (o *persistStateOption) apply(c *Config) { c.PersistState = o.enabled }

// WithPersistState enables calling the persistence callback after every transition.
func WithPersistState(enabled bool) Option { return &persistStateOption{enabled: enabled} }

type tracingOption struct{ enabled bool }

func (o *tracingOption) apply(c *Config) { c.EnableTracing = o.enabled }

// WithTracing enables OpenTelemetry spans around Fire calls.
func WithTracing(enabled bool) Option { return &tracingOption{enabled: enabled} }

// NewConfig creates a new state machine configuration with the provided options.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		StateTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidConfig)
	}
	if c.InitialState == "" {
		return fmt.Errorf("%w: initial state cannot be empty", ErrInvalidConfig)
	}
	if len(c.States) == 0 {
		return fmt.Errorf("%w: at least one state must be defined", ErrInvalidConfig)
	}

	stateNames := make(map[string]bool, len(c.States))
	initialStateFound := false
	for _, s := range c.States {
		if s.Name == "" {
			return fmt.Errorf("%w: state name cannot be empty", ErrInvalidConfig)
		}
		if stateNames[s.Name] {
			return fmt.Errorf("%w: duplicate state name: %s", ErrInvalidConfig, s.Name)
		}
		stateNames[s.Name] = true
		if s.Name == c.InitialState {
			initialStateFound = true
		}
	}
	if !initialStateFound {
		return fmt.Errorf("%w: initial state %s not found in states list", ErrInvalidConfig, c.InitialState)
	}

	for _, t := range c.Transitions {
		if t.From == "" || t.To == "" {
			return fmt.Errorf("%w: transition from and to states cannot be empty", ErrInvalidConfig)
		}
		if t.Trigger == "" {
			return fmt.Errorf("%w: transition trigger cannot be empty", ErrInvalidConfig)
		}
		if !stateNames[t.From] {
			return fmt.Errorf("%w: transition from state %s not found", ErrInvalidConfig, t.From)
		}
		if !stateNames[t.To] {
			return fmt.Errorf("%w: transition to state %s not found", ErrInvalidConfig, t.To)
		}
	}

	if c.StateTimeout <= 0 {
		return fmt.Errorf("%w: state timeout must be positive", ErrInvalidConfig)
	}

	return nil
}
