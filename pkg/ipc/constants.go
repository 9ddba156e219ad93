// SPDX-License-Identifier: BSD-3-Clause

package ipc

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/micro"
)

// IPC Subject Constants for NATS Micro Services.
// These constants define all the subjects used for inter-process communication
// between the kiln core services. Services should use these constants rather
// than constructing subjects dynamically.

// Sensor reader subjects.
const (
	// SubjectSensorReading returns the most recently decoded thermocouple
	// reading, offset-corrected, as the sole read path into the cell the
	// sensor reader owns.
	SubjectSensorReading = "sensor.reading"
)

// Firing Engine command/observation subjects.
const (
	// SubjectFiringStart enqueues a Start command (profile id + delay minutes).
	SubjectFiringStart = "firing.start"
	// SubjectFiringStop enqueues a Stop command.
	SubjectFiringStop = "firing.stop"
	// SubjectFiringPause enqueues a Pause command.
	SubjectFiringPause = "firing.pause"
	// SubjectFiringResume enqueues a Resume command.
	SubjectFiringResume = "firing.resume"
	// SubjectFiringSkip enqueues a SkipSegment command.
	SubjectFiringSkip = "firing.skip"
	// SubjectFiringProgress returns a Progress snapshot.
	SubjectFiringProgress = "firing.progress"
	// SubjectFiringSettingsGet returns a Settings snapshot.
	SubjectFiringSettingsGet = "firing.settingsget"
	// SubjectFiringSettingsSet validates and writes through a new Settings value.
	SubjectFiringSettingsSet = "firing.settingsset"
)

// Auto-tune command subjects.
const (
	// SubjectAutotuneStart enqueues an AutoTuneStart command (setpoint + hysteresis).
	SubjectAutotuneStart = "autotune.start"
	// SubjectAutotuneStop enqueues an AutoTuneStop command.
	SubjectAutotuneStop = "autotune.stop"
)

// Safety monitor subjects.
const (
	// SubjectSafetyStatus returns whether the emergency flag is latched.
	SubjectSafetyStatus = "safety.status"
	// SubjectSafetyClear clears the latched emergency flag.
	SubjectSafetyClear = "safety.clear"
	// SubjectSafetyMaxTemp sets the user max safe temperature.
	SubjectSafetyMaxTemp = "safety.maxtemp"
)

// Event subjects, published (not requested) by the safety monitor and
// firing engine. Subscribers use plain NATS pub/sub rather than micro
// request/reply since these are fire-and-forget notifications.
const (
	// SubjectEventEmergencyStop fires whenever emergency_stop() latches.
	SubjectEventEmergencyStop = "event.emergencystop"
	// SubjectEventTempFault fires when the thermocouple fault/staleness bit is set or cleared.
	SubjectEventTempFault = "event.tempfault"
	// SubjectEventFiringComplete fires when a firing reaches Complete.
	SubjectEventFiringComplete = "event.firingcomplete"
)

// IPC Error Constants.
var (
	ErrMissingRequiredField = NewIPCError("MISSING_REQUIRED_FIELD", "missing required field")
	ErrMarshalingFailed     = NewIPCError("MARSHALING_FAILED", "marshaling failed")
	ErrUnmarshalingFailed   = NewIPCError("UNMARSHALING_FAILED", "unmarshaling failed")
	ErrResponseTimeout      = NewIPCError("RESPONSE_TIMEOUT", "response timeout")
	ErrComponentNotFound    = NewIPCError("COMPONENT_NOT_FOUND", "component not found")
	ErrInvalidCommand       = NewIPCError("INVALID_COMMAND", "invalid command")
	ErrInternalError        = NewIPCError("INTERNAL_ERROR", "internal error")
)

// IPCError represents a structured IPC error.
type IPCError struct {
	Code    string
	Message string
}

func (e *IPCError) Error() string {
	return e.Message
}

// NewIPCError creates a new IPC error.
func NewIPCError(code, message string) *IPCError {
	return &IPCError{
		Code:    code,
		Message: message,
	}
}

// ParseSubject splits a subject into group and endpoint components for NATS micro registration.
// For subjects like "firing.start", it returns group="firing" and endpoint="start".
// Returns an error if the subject doesn't contain exactly one dot or if components are empty.
func ParseSubject(subject string) (group, endpoint string, err error) {
	if subject == "" {
		return "", "", NewIPCError("INVALID_SUBJECT", "subject cannot be empty")
	}

	parts := strings.Split(subject, ".")
	if len(parts) != 2 {
		return "", "", NewIPCError("INVALID_SUBJECT", fmt.Sprintf("subject %s must contain exactly one dot", subject))
	}

	group = strings.TrimSpace(parts[0])
	endpoint = strings.TrimSpace(parts[1])

	if group == "" {
		return "", "", NewIPCError("INVALID_SUBJECT", "group component cannot be empty")
	}
	if endpoint == "" {
		return "", "", NewIPCError("INVALID_SUBJECT", "endpoint component cannot be empty")
	}

	return group, endpoint, nil
}

// RegisterEndpointWithGroupCache registers an endpoint by parsing the IPC subject and managing group creation.
// This helper reduces boilerplate by automatically creating and caching groups as needed.
//
// Example usage:
//
//	groups := make(map[string]micro.Group)
//	err := ipc.RegisterEndpointWithGroupCache(service, ipc.SubjectFiringStart, handler, groups)
func RegisterEndpointWithGroupCache(service micro.Service, subject string, handler micro.Handler, groups map[string]micro.Group) error {
	groupName, endpointName, err := ParseSubject(subject)
	if err != nil {
		return fmt.Errorf("failed to parse subject %s: %w", subject, err)
	}

	group, exists := groups[groupName]
	if !exists {
		group = service.AddGroup(groupName)
		groups[groupName] = group
	}

	if err := group.AddEndpoint(endpointName, handler); err != nil {
		return fmt.Errorf("failed to register endpoint %s in group %s: %w", endpointName, groupName, err)
	}

	return nil
}
