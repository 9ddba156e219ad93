// SPDX-License-Identifier: BSD-3-Clause

package safetymon

import "errors"

var (
	// ErrServiceAlreadyStarted indicates Run was called twice on the same instance.
	ErrServiceAlreadyStarted = errors.New("safety monitor service already started")
	// ErrInvalidConfiguration indicates the service configuration failed validation.
	ErrInvalidConfiguration = errors.New("invalid safety monitor configuration")
	// ErrNATSConnectionFailed indicates the in-process NATS connection failed.
	ErrNATSConnectionFailed = errors.New("NATS connection failed")
	// ErrMicroServiceCreationFailed indicates micro.AddService failed.
	ErrMicroServiceCreationFailed = errors.New("micro service creation failed")
	// ErrEndpointRegistrationFailed indicates an IPC endpoint failed to register.
	ErrEndpointRegistrationFailed = errors.New("endpoint registration failed")
	// ErrInvalidMaxTemp indicates a requested max_safe_temp could not be
	// clamped into a usable range.
	ErrInvalidMaxTemp = errors.New("invalid max safe temperature")
)
