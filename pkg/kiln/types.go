// SPDX-License-Identifier: BSD-3-Clause

// Package kiln defines the shared data model for the kiln control core:
// firing profiles and segments, thermocouple readings, progress snapshots,
// settings, PID and auto-tune state, commands, and history records. It has
// no behavior of its own; the sensor reader, safety monitor, and firing
// engine services operate on these types.
package kiln

import "time"

// MaxSegments is the maximum number of segments a firing profile may hold.
const MaxSegments = 16

// FiringSegment is one ramp/hold step of a firing profile.
type FiringSegment struct {
	ID         string
	Name       string
	// RampRateCPerHour is signed: positive heats, negative cools.
	RampRateCPerHour float64
	TargetTempC      float64
	// HoldMinutes is the dwell at TargetTempC; zero means hold indefinitely
	// until an operator SkipSegment command advances the engine.
	HoldMinutes int
}

// FiringProfile is an ordered program of up to MaxSegments segments.
type FiringProfile struct {
	ID          string
	Name        string
	Description string
	Segments    []FiringSegment
	MaxTempC    float64
	EstimatedDuration time.Duration
}

// Validate checks the structural invariants a stored profile must satisfy.
func (p *FiringProfile) Validate() error {
	if len(p.Segments) == 0 || len(p.Segments) > MaxSegments {
		return ErrInvalidSegmentCount
	}
	var maxTemp float64
	for _, seg := range p.Segments {
		if seg.TargetTempC > maxTemp {
			maxTemp = seg.TargetTempC
		}
	}
	if p.MaxTempC < maxTemp {
		return ErrMaxTempInconsistent
	}
	return nil
}

// ThermocoupleFault is a bitfield of sensor fault conditions.
type ThermocoupleFault uint8

const (
	FaultOpenCircuit ThermocoupleFault = 1 << iota
	FaultShortToGND
	FaultShortToVCC
)

// HasFault reports whether any fault bit is set.
func (f ThermocoupleFault) HasFault() bool { return f != 0 }

// ThermocoupleReading is one decoded sample from the sensor reader.
//
// If Fault != 0, TempC and ColdJunctionC are undefined and MUST NOT be
// consumed by any controller; only Timestamp and Fault are meaningful.
type ThermocoupleReading struct {
	TempC         float64
	ColdJunctionC float64
	Fault         ThermocoupleFault
	// Timestamp is a monotonic acquisition clock reading, strictly
	// increasing across consecutive readings.
	Timestamp time.Time
}

// FiringStatus mirrors firingfsm.Status for consumers that only need the
// value, not the transition machinery.
type FiringStatus string

const (
	StatusIdle     FiringStatus = "idle"
	StatusHeating  FiringStatus = "heating"
	StatusHolding  FiringStatus = "holding"
	StatusCooling  FiringStatus = "cooling"
	StatusComplete FiringStatus = "complete"
	StatusError    FiringStatus = "error"
	StatusPaused   FiringStatus = "paused"
	StatusAutoTune FiringStatus = "autotune"
)

// FiringProgress is the engine's observable snapshot, refreshed every tick.
type FiringProgress struct {
	Active             bool
	ProfileID          string
	CurrentTempC       float64
	TargetTempC        float64
	SegmentIndex       int
	SegmentCount       int
	ElapsedSeconds     float64
	RemainingSeconds   float64
	Status             FiringStatus
	LastErrorCode      ErrorCode
}

// TemperatureUnit is the display unit used by the settings surface; it has
// no effect on core control, which always operates in Celsius.
type TemperatureUnit byte

const (
	UnitCelsius    TemperatureUnit = 'C'
	UnitFahrenheit TemperatureUnit = 'F'
)

// KilnSettings holds the user-configurable, persisted settings.
type KilnSettings struct {
	Unit                 TemperatureUnit
	MaxSafeTempC         float64
	AlarmEnabled         bool
	AutoShutdownEnabled  bool
	NotificationsEnabled bool
	// ThermocoupleOffsetC is added to every raw reading before it reaches
	// any controller.
	ThermocoupleOffsetC float64
	WebhookURL          string
	APIToken            string
	ElementWatts        int
	ElectricityCostPerKWh float64
}

// Validate checks the structural invariants a stored settings record must
// satisfy before it reaches Clamp. hardwareMaxC of zero skips the upper
// bound check, matching Clamp's "no limit known yet" convention.
func (s KilnSettings) Validate(hardwareMaxC float64) error {
	if s.Unit != UnitCelsius && s.Unit != UnitFahrenheit {
		return ErrInvalidUnit
	}
	if s.MaxSafeTempC < 100 {
		return ErrInvalidMaxSafeTemp
	}
	if hardwareMaxC > 0 && s.MaxSafeTempC > hardwareMaxC {
		return ErrInvalidMaxSafeTemp
	}
	return nil
}

// Clamp enforces MaxSafeTempC <= hardwareMaxC and >= 100, returning the
// clamped copy. The zero value of hardwareMaxC is treated as "no limit
// known yet" and only the lower bound is applied.
func (s KilnSettings) Clamp(hardwareMaxC float64) KilnSettings {
	if s.MaxSafeTempC < 100 {
		s.MaxSafeTempC = 100
	}
	if hardwareMaxC > 0 && s.MaxSafeTempC > hardwareMaxC {
		s.MaxSafeTempC = hardwareMaxC
	}
	return s
}

// PIDState holds a PID controller's gains, limits, and accumulator.
type PIDState struct {
	Kp, Ki, Kd     float64
	OutMin, OutMax float64
	Integral       float64
	PrevError      float64
	FirstRun       bool
}

// AutoTunePhase is the relay-method tuner's state.
type AutoTunePhase string

const (
	TunePhaseIdle             AutoTunePhase = "idle"
	TunePhaseHeatingToSetpoint AutoTunePhase = "heating_to_setpoint"
	TunePhaseRelayCycling     AutoTunePhase = "relay_cycling"
	TunePhaseComplete         AutoTunePhase = "complete"
	TunePhaseFailed           AutoTunePhase = "failed"
)

// AutoTuneState is the relay-method auto-tuner's working state.
type AutoTuneState struct {
	Phase AutoTunePhase

	SetpointC  float64
	HysteresisC float64

	CyclesNeeded int
	CyclesDone   int

	PeakHighC float64
	PeakLowC  float64

	AmplitudeSum float64
	PeriodSum    time.Duration

	HalfCycles    int
	AboveSetpoint bool
	LastCrossing  time.Time

	StartTime time.Time
	Deadline  time.Time

	ResultKp, ResultKi, ResultKd float64
}

// FiringCommandKind tags the variant held by a FiringCommand.
type FiringCommandKind int

const (
	CmdStart FiringCommandKind = iota
	CmdStop
	CmdPause
	CmdResume
	CmdSkipSegment
	CmdAutoTuneStart
	CmdAutoTuneStop
)

// FiringCommand is a tagged command enqueued by an external producer (the
// REST layer, a CLI, a test) and drained by the firing engine's tick loop.
type FiringCommand struct {
	Kind FiringCommandKind

	// Start
	Profile  *FiringProfile
	DelayMin int

	// AutoTuneStart
	AutoTuneSetpointC   float64
	AutoTuneHysteresisC float64
}

// HistoryOutcome is the terminal result recorded for a firing.
type HistoryOutcome string

const (
	OutcomeComplete HistoryOutcome = "complete"
	OutcomeError    HistoryOutcome = "error"
	OutcomeAborted  HistoryOutcome = "aborted"
)

// ErrorCode is the engine's last-error taxonomy.
type ErrorCode string

const (
	ErrorNone          ErrorCode = ""
	ErrorEmergencyStop ErrorCode = "emergency_stop"
	ErrorNotRising     ErrorCode = "not_rising"
	ErrorRunaway       ErrorCode = "runaway"
)

// HistoryRecord is one completed (or aborted, or errored) firing.
type HistoryRecord struct {
	ID         uint64
	StartTime  time.Time
	ProfileID  string
	ProfileName string
	PeakTempC  float64
	Duration   time.Duration
	Outcome    HistoryOutcome
	ErrorCode  ErrorCode
}

// HistorySample is a single temperature observation emitted during a firing.
type HistorySample struct {
	RecordID  uint64
	Timestamp time.Time
	TempC     float64
	SetpointC float64
}
