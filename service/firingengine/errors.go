// SPDX-License-Identifier: BSD-3-Clause

package firingengine

import "errors"

var (
	// ErrServiceAlreadyStarted indicates Run was called twice on the same instance.
	ErrServiceAlreadyStarted = errors.New("firing engine service already started")
	// ErrInvalidConfiguration indicates the service configuration failed validation.
	ErrInvalidConfiguration = errors.New("invalid firing engine configuration")
	// ErrNATSConnectionFailed indicates the in-process NATS connection failed.
	ErrNATSConnectionFailed = errors.New("NATS connection failed")
	// ErrMicroServiceCreationFailed indicates micro.AddService failed.
	ErrMicroServiceCreationFailed = errors.New("micro service creation failed")
	// ErrEndpointRegistrationFailed indicates an IPC endpoint failed to register.
	ErrEndpointRegistrationFailed = errors.New("endpoint registration failed")
	// ErrCommandQueueFull indicates the bounded command channel rejected an enqueue.
	ErrCommandQueueFull = errors.New("command queue full")
	// ErrNoProfile indicates a Start command carried no profile.
	ErrNoProfile = errors.New("no profile supplied")
	// ErrAlreadyActive indicates Start was requested while a firing was already running.
	ErrAlreadyActive = errors.New("firing already active")
	// ErrNotActive indicates Pause/Resume/SkipSegment was requested while idle.
	ErrNotActive = errors.New("no firing active")
	// ErrNotPaused indicates Resume was requested while not paused.
	ErrNotPaused = errors.New("firing is not paused")
	// ErrTuneInProgress indicates AutoTuneStart was requested while a firing was active.
	ErrTuneInProgress = errors.New("cannot start auto-tune while a firing is active")
)
