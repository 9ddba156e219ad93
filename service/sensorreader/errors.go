// SPDX-License-Identifier: BSD-3-Clause

package sensorreader

import "errors"

var (
	// ErrServiceAlreadyStarted indicates Run was called twice on the same instance.
	ErrServiceAlreadyStarted = errors.New("sensor reader service already started")
	// ErrInvalidConfiguration indicates the service configuration failed validation.
	ErrInvalidConfiguration = errors.New("invalid sensor reader configuration")
	// ErrNATSConnectionFailed indicates the in-process NATS connection failed.
	ErrNATSConnectionFailed = errors.New("NATS connection failed")
	// ErrMicroServiceCreationFailed indicates micro.AddService failed.
	ErrMicroServiceCreationFailed = errors.New("micro service creation failed")
	// ErrEndpointRegistrationFailed indicates an IPC endpoint failed to register.
	ErrEndpointRegistrationFailed = errors.New("endpoint registration failed")
	// ErrNoSource indicates no thermocouple source was configured and SPI bus
	// discovery failed.
	ErrNoSource = errors.New("no thermocouple source available")
)
