// SPDX-License-Identifier: BSD-3-Clause

package firingengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilnctl/kilnctl/pkg/elementhours"
	"github.com/kilnctl/kilnctl/pkg/firingfsm"
	"github.com/kilnctl/kilnctl/pkg/history"
	"github.com/kilnctl/kilnctl/pkg/ipc"
	"github.com/kilnctl/kilnctl/pkg/kiln"
	"github.com/kilnctl/kilnctl/pkg/log"
	"github.com/kilnctl/kilnctl/pkg/persistence"
	"github.com/kilnctl/kilnctl/pkg/pidctl"
	"github.com/kilnctl/kilnctl/service"
)

var _ service.Service = (*Engine)(nil)

// commandQueueDepth bounds the command channel; the engine only ever needs
// to observe the most recent handful of operator intents before its next
// 1 Hz tick drains them.
const commandQueueDepth = 8

// Engine is the kiln control core's orchestrator. All of its firing state
// (profile, segment timers, guard windows, PID, auto-tuner, FSM) is owned
// exclusively by the tick goroutine; progress and settings are the only
// fields a concurrent IPC handler touches, and both are guarded by mu.
type Engine struct {
	config       *config
	nc           *nats.Conn
	microService micro.Service
	cmdCh        chan kiln.FiringCommand

	mu       sync.Mutex
	progress kiln.FiringProgress
	settings kiln.KilnSettings

	fsm          *firingfsm.Machine
	pid          *pidctl.PID
	tuner        *pidctl.Tuner
	history      *history.Recorder
	elementHours *elementhours.Accumulator

	profile           *kiln.FiringProfile
	segmentIndex      int
	segmentStartTime  time.Time
	segmentStartTempC float64
	holding           bool
	holdStartTime     time.Time

	delayActive   bool
	delayDeadline time.Time

	risingWindowStart      time.Time
	risingWindowStartTempC float64

	recordID       uint64
	recordStartTime time.Time
	peakTempC      float64
	lastError      kiln.ErrorCode

	lastHistorySampleTime time.Time
	lastTick              time.Time

	logger  *slog.Logger
	tracer  trace.Tracer
	cancel  context.CancelFunc
	started bool
}

// New creates an Engine instance with the provided options.
func New(opts ...Option) *Engine {
	cfg := &config{
		serviceName:              DefaultServiceName,
		serviceDescription:       DefaultServiceDescription,
		serviceVersion:           DefaultServiceVersion,
		tickInterval:             DefaultTickInterval,
		enqueueTimeout:           DefaultEnqueueTimeout,
		risingCheckWindow:        DefaultRisingCheckWindow,
		risingMinDeltaC:          DefaultRisingMinDeltaC,
		runawayMinSegmentElapsed: DefaultRunawayMinSegmentElapsed,
		runawayMinRampCPerHour:    DefaultRunawayMinRampCPerHour,
		runawayMultiplier:         DefaultRunawayMultiplier,
		runawayMinRampCPerHourAbs: DefaultRunawayMinRampCPerHourAbs,
		atTargetTempBandC:         DefaultAtTargetTempBandC,
		atTargetSetpointBandC:     DefaultAtTargetSetpointBandC,
		historySampleInterval:     DefaultHistorySampleInterval,
		ventCloseAboveC:           DefaultVentCloseAboveC,
		hardwareMaxTempC:          DefaultHardwareMaxTempC,
		sensorEndpoint:            ipc.SubjectSensorReading,
		safetyEndpoint:            ipc.SubjectSafetyStatus,
		now:                       time.Now,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &Engine{
		config: cfg,
		cmdCh:  make(chan kiln.FiringCommand, commandQueueDepth),
	}
}

// Name returns the service name.
func (e *Engine) Name() string {
	return e.config.serviceName
}

// Run loads persisted gains and settings, wires the NATS IPC endpoints, and
// runs the 1 Hz tick loop until ctx is canceled.
func (e *Engine) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
	e.tracer = otel.Tracer(e.config.serviceName)

	ctx, span := e.tracer.Start(ctx, "firingengine.Run")
	defer span.End()

	e.logger = log.GetGlobalLogger().With("service", e.config.serviceName)

	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrServiceAlreadyStarted
	}
	e.started = true
	ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Starting firing engine service",
		"version", e.config.serviceVersion, "tick_interval", e.config.tickInterval)

	if err := e.config.Validate(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	fsm, err := firingfsm.New()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("build firing status machine: %w", err)
	}
	e.fsm = fsm

	if err := persistence.SeedDefaultProfiles(ctx, e.config.store); err != nil {
		e.logger.WarnContext(ctx, "Failed to seed default profiles", "error", err)
	}

	gains, err := e.config.store.LoadGains(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load gains: %w", err)
	}
	e.pid = pidctl.New(gains.Kp, gains.Ki, gains.Kd, 0, 1)
	e.tuner = pidctl.NewTuner()

	settings, err := e.config.store.LoadSettings(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load settings: %w", err)
	}
	e.mu.Lock()
	e.settings = settings
	e.progress = kiln.FiringProgress{Status: kiln.StatusIdle}
	e.mu.Unlock()

	elementSeconds, err := e.config.store.LoadElementHours(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load element hours: %w", err)
	}
	e.elementHours = elementhours.New(elementSeconds)
	e.history = history.NewRecorder(e.config.store)

	nc, err := nats.Connect("", nats.InProcessServer(ipcConn))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrNATSConnectionFailed, err)
	}
	e.nc = nc
	defer nc.Drain() //nolint:errcheck

	e.microService, err = micro.AddService(nc, micro.Config{
		Name:        e.config.serviceName,
		Description: e.config.serviceDescription,
		Version:     e.config.serviceVersion,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrMicroServiceCreationFailed, err)
	}

	if err := e.registerEndpoints(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	e.logger.InfoContext(ctx, "Firing engine service started successfully")
	span.SetAttributes(attribute.String("service.name", e.config.serviceName))

	e.runTickLoop(ctx)

	err = ctx.Err()
	ctx = context.WithoutCancel(ctx)
	e.logger.InfoContext(ctx, "Shutting down firing engine service")
	e.shutdown()

	return err
}

func (e *Engine) runTickLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) now() time.Time {
	if e.config.now != nil {
		return e.config.now()
	}
	return time.Now()
}

// tick is the engine's 1 Hz master step: drain commands, sample the
// thermocouple, observe the safety monitor, and drive whichever branch
// (idle, auto-tune, or normal firing) the current status calls for.
func (e *Engine) tick(ctx context.Context) {
	now := e.now()
	e.drainCommands(ctx, now)

	if e.delayActive {
		if now.Before(e.delayDeadline) {
			return
		}
		e.beginSegmentZero(ctx, e.profile, now)
		return
	}

	reading := e.sampleTemperature(ctx)

	lastTick := e.lastTick
	e.lastTick = now
	var dtS float64
	if !lastTick.IsZero() {
		dtS = now.Sub(lastTick).Seconds()
	}

	if e.isEmergency(ctx) {
		e.handleEmergency(ctx, now)
		return
	}

	e.mu.Lock()
	status := e.progress.Status
	e.progress.CurrentTempC = reading.TempC
	e.mu.Unlock()

	if !isControllingStatus(status) {
		if err := e.config.modulator.SetDuty(0, now); err != nil {
			e.logger.ErrorContext(ctx, "Failed to set SSR duty to 0 while idle", "error", err)
		}
		return
	}

	if status == kiln.StatusAutoTune {
		e.tickAutoTune(ctx, reading, now)
		return
	}

	e.tickNormalFiring(ctx, reading, dtS, now)
}

func isControllingStatus(status kiln.FiringStatus) bool {
	switch status {
	case kiln.StatusHeating, kiln.StatusHolding, kiln.StatusCooling, kiln.StatusAutoTune:
		return true
	default:
		return false
	}
}

// sampleTemperature requests the latest reading from the sensor reader and
// applies the configured calibration offset. A faulted or unreachable
// reading is returned unmodified; callers must consult Fault before
// trusting TempC.
func (e *Engine) sampleTemperature(ctx context.Context) kiln.ThermocoupleReading {
	var reading kiln.ThermocoupleReading

	data, err := e.nc.RequestWithContext(ctx, e.config.sensorEndpoint, nil)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to fetch sensor reading", "error", err)
		reading.Fault = kiln.FaultOpenCircuit
		return reading
	}
	if err := json.Unmarshal(data.Data, &reading); err != nil {
		e.logger.WarnContext(ctx, "Failed to decode sensor reading", "error", err)
		reading.Fault = kiln.FaultOpenCircuit
		return reading
	}
	if !reading.Fault.HasFault() {
		e.mu.Lock()
		offset := e.settings.ThermocoupleOffsetC
		e.mu.Unlock()
		reading.TempC += offset
	}
	return reading
}

type emergencyStatusResponse struct {
	Emergency bool `json:"emergency"`
}

func (e *Engine) isEmergency(ctx context.Context) bool {
	if e.config.safety != nil {
		return e.config.safety.IsEmergency()
	}
	data, err := e.nc.RequestWithContext(ctx, e.config.safetyEndpoint, nil)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to fetch safety status, assuming safe", "error", err)
		return false
	}
	var resp emergencyStatusResponse
	if err := json.Unmarshal(data.Data, &resp); err != nil {
		e.logger.WarnContext(ctx, "Failed to decode safety status, assuming safe", "error", err)
		return false
	}
	return resp.Emergency
}

func (e *Engine) requestEmergencyStop(ctx context.Context) {
	if e.config.safetyTrigger != nil {
		e.config.safetyTrigger.EmergencyStop(ctx)
		return
	}
	if err := e.nc.Publish(ipc.SubjectEventEmergencyStop, nil); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish emergency-stop request", "error", err)
	}
}

func (e *Engine) setError(code kiln.ErrorCode) {
	if e.lastError == kiln.ErrorNone {
		e.lastError = code
	}
	e.mu.Lock()
	e.progress.LastErrorCode = e.lastError
	e.mu.Unlock()
}

func (e *Engine) handleEmergency(ctx context.Context, now time.Time) {
	e.mu.Lock()
	active := e.progress.Active
	e.mu.Unlock()

	errCode := e.lastError
	if errCode == kiln.ErrorNone {
		errCode = kiln.ErrorEmergencyStop
	}

	if active {
		dur := now.Sub(e.recordStartTime)
		if err := e.history.FinishRecord(ctx, e.recordID, kiln.OutcomeError, errCode, e.peakTempC, dur); err != nil {
			e.logger.WarnContext(ctx, "Failed to finish history record on emergency", "error", err)
		}
	}

	e.mu.Lock()
	e.progress.Active = false
	e.progress.Status = kiln.StatusError
	e.progress.LastErrorCode = errCode
	e.mu.Unlock()

	if err := e.config.modulator.SetDuty(0, now); err != nil {
		e.logger.ErrorContext(ctx, "Failed to force SSR off on emergency stop", "error", err)
	}
	if e.fsm.Current() != firingfsm.StatusError {
		_ = e.fsm.Emergency(ctx)
	}
}

func (e *Engine) tickAutoTune(ctx context.Context, reading kiln.ThermocoupleReading, now time.Time) {
	output, done := e.tuner.Step(reading.TempC, now)
	if err := e.config.modulator.SetDuty(output, now); err != nil {
		e.logger.ErrorContext(ctx, "Failed to set SSR duty during auto-tune", "error", err)
	}
	if !done {
		return
	}

	state := e.tuner.State()
	if state.Phase == kiln.TunePhaseComplete {
		gains := persistence.Gains{Kp: state.ResultKp, Ki: state.ResultKi, Kd: state.ResultKd}
		if err := e.config.store.SaveGains(ctx, gains); err != nil {
			e.logger.WarnContext(ctx, "Failed to persist auto-tuned gains", "error", err)
		} else {
			e.pid = pidctl.New(gains.Kp, gains.Ki, gains.Kd, 0, 1)
		}
		e.logger.InfoContext(ctx, "Auto-tune complete",
			"kp", gains.Kp, "ki", gains.Ki, "kd", gains.Kd)
	} else {
		e.logger.WarnContext(ctx, "Auto-tune failed to converge")
	}

	e.mu.Lock()
	e.progress.Active = false
	e.progress.Status = kiln.StatusIdle
	e.mu.Unlock()
	_ = e.fsm.AutoTuneDone(ctx)
}

func (e *Engine) tickNormalFiring(ctx context.Context, reading kiln.ThermocoupleReading, dtS float64, now time.Time) {
	e.mu.Lock()
	status := e.progress.Status
	e.mu.Unlock()

	seg := e.profile.Segments[e.segmentIndex]
	segElapsed := now.Sub(e.segmentStartTime)

	if status == kiln.StatusHeating && !e.holding {
		if now.Sub(e.risingWindowStart) >= e.config.risingCheckWindow {
			if reading.TempC-e.risingWindowStartTempC < e.config.risingMinDeltaC {
				e.logger.WarnContext(ctx, "Kiln not rising, requesting emergency stop",
					"window", e.config.risingCheckWindow, "delta_c", reading.TempC-e.risingWindowStartTempC)
				e.setError(kiln.ErrorNotRising)
				e.requestEmergencyStop(ctx)
			}
			e.risingWindowStart = now
			e.risingWindowStartTempC = reading.TempC
		}

		if segElapsed > e.config.runawayMinSegmentElapsed && math.Abs(seg.RampRateCPerHour) > e.config.runawayMinRampCPerHour {
			actualCPerHour := (reading.TempC - e.segmentStartTempC) / segElapsed.Hours()
			if actualCPerHour > e.config.runawayMultiplier*seg.RampRateCPerHour && actualCPerHour > e.config.runawayMinRampCPerHourAbs {
				e.logger.WarnContext(ctx, "Runaway heating detected, requesting emergency stop",
					"actual_c_per_hour", actualCPerHour, "programmed_c_per_hour", seg.RampRateCPerHour)
				e.setError(kiln.ErrorRunaway)
				e.requestEmergencyStop(ctx)
			}
		}
	}

	var setpoint float64
	if e.holding {
		setpoint = seg.TargetTempC
	} else {
		rampPerSecond := seg.RampRateCPerHour / 3600.0
		setpoint = e.segmentStartTempC + rampPerSecond*segElapsed.Seconds()
		if seg.RampRateCPerHour >= 0 {
			if setpoint > seg.TargetTempC {
				setpoint = seg.TargetTempC
			}
		} else if setpoint < seg.TargetTempC {
			setpoint = seg.TargetTempC
		}
	}

	output := e.pid.Step(setpoint, reading.TempC, dtS)
	if err := e.config.modulator.SetDuty(output, now); err != nil {
		e.logger.ErrorContext(ctx, "Failed to set SSR duty", "error", err)
	}

	if due := e.elementHours.Tick(time.Duration(dtS*float64(time.Second)), output > 0); due {
		if err := e.elementHours.Save(ctx, e.config.store); err != nil {
			e.logger.WarnContext(ctx, "Failed to persist element hours", "error", err)
		}
	}

	if reading.TempC > e.peakTempC {
		e.peakTempC = reading.TempC
	}
	if now.Sub(e.lastHistorySampleTime) >= e.config.historySampleInterval {
		if err := e.history.AppendSample(ctx, e.recordID, now, reading.TempC, setpoint); err != nil {
			e.logger.WarnContext(ctx, "Failed to append history sample", "error", err)
		}
		e.lastHistorySampleTime = now
	}

	if e.config.alarmVent != nil {
		if err := e.config.alarmVent.SetVent(true, reading.TempC, e.config.ventCloseAboveC); err != nil {
			e.logger.WarnContext(ctx, "Failed to drive vent", "error", err)
		}
	}

	atTarget := math.Abs(reading.TempC-seg.TargetTempC) < e.config.atTargetTempBandC &&
		math.Abs(setpoint-seg.TargetTempC) < e.config.atTargetSetpointBandC

	switch {
	case !e.holding && atTarget:
		e.holding = true
		e.holdStartTime = now
		e.mu.Lock()
		e.progress.Status = kiln.StatusHolding
		e.mu.Unlock()
		_ = e.fsm.AtTarget(ctx)
		if e.config.alarmVent != nil {
			_ = e.config.alarmVent.SoundShortBeep(ctx)
		}
	case e.holding && seg.HoldMinutes > 0 && now.Sub(e.holdStartTime) >= time.Duration(seg.HoldMinutes)*time.Minute:
		nextIdx := e.segmentIndex + 1
		if nextIdx < len(e.profile.Segments) {
			e.advanceSegment(ctx, nextIdx, reading.TempC, now)
		} else {
			e.completeFiring(ctx, now)
			return
		}
	}

	e.mu.Lock()
	e.progress.ElapsedSeconds += dtS
	e.progress.TargetTempC = setpoint
	e.progress.SegmentIndex = e.segmentIndex
	if e.profile.EstimatedDuration > 0 {
		remaining := e.profile.EstimatedDuration.Seconds() - e.progress.ElapsedSeconds
		if remaining < 0 {
			remaining = 0
		}
		e.progress.RemainingSeconds = remaining
	}
	e.mu.Unlock()
}

func (e *Engine) advanceSegment(ctx context.Context, nextIdx int, currentTempC float64, now time.Time) {
	seg := e.profile.Segments[nextIdx]
	e.segmentIndex = nextIdx
	e.segmentStartTime = now
	e.segmentStartTempC = currentTempC
	e.holding = false
	e.risingWindowStart = now
	e.risingWindowStartTempC = currentTempC

	var status kiln.FiringStatus
	if seg.RampRateCPerHour >= 0 {
		status = kiln.StatusHeating
		_ = e.fsm.AdvanceHeating(ctx)
	} else {
		status = kiln.StatusCooling
		_ = e.fsm.AdvanceCooling(ctx)
	}

	e.mu.Lock()
	e.progress.Status = status
	e.progress.SegmentIndex = nextIdx
	e.mu.Unlock()

	if e.config.alarmVent != nil {
		_ = e.config.alarmVent.SoundShortBeep(ctx)
	}
}

func (e *Engine) completeFiring(ctx context.Context, now time.Time) {
	if err := e.config.modulator.SetDuty(0, now); err != nil {
		e.logger.ErrorContext(ctx, "Failed to set SSR duty to 0 on completion", "error", err)
	}

	dur := now.Sub(e.recordStartTime)
	if err := e.history.FinishRecord(ctx, e.recordID, kiln.OutcomeComplete, kiln.ErrorNone, e.peakTempC, dur); err != nil {
		e.logger.WarnContext(ctx, "Failed to finish history record", "error", err)
	}
	if err := e.elementHours.Save(ctx, e.config.store); err != nil {
		e.logger.WarnContext(ctx, "Failed to persist element hours on completion", "error", err)
	}

	e.mu.Lock()
	e.progress.Active = false
	e.progress.Status = kiln.StatusComplete
	e.mu.Unlock()
	_ = e.fsm.Complete(ctx)

	if err := e.nc.Publish(ipc.SubjectEventFiringComplete, nil); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish firing-complete event", "error", err)
	}
	if e.config.alarmVent != nil {
		_ = e.config.alarmVent.SoundCompletion(ctx)
	}
}

// beginSegmentZero starts a firing at segment 0 from the current
// temperature, used both for an immediate Start and for a delayed Start
// whose deadline has just elapsed.
func (e *Engine) beginSegmentZero(ctx context.Context, profile *kiln.FiringProfile, now time.Time) {
	reading := e.sampleTemperature(ctx)

	e.profile = profile
	e.segmentIndex = 0
	e.segmentStartTime = now
	e.segmentStartTempC = reading.TempC
	e.holding = false
	e.risingWindowStart = now
	e.risingWindowStartTempC = reading.TempC
	e.lastError = kiln.ErrorNone
	e.delayActive = false
	e.lastHistorySampleTime = now
	e.peakTempC = reading.TempC
	e.pid.Reset()

	e.mu.Lock()
	e.progress = kiln.FiringProgress{
		Active:       true,
		ProfileID:    profile.ID,
		CurrentTempC: reading.TempC,
		SegmentIndex: 0,
		SegmentCount: len(profile.Segments),
		Status:       kiln.StatusHeating,
	}
	e.mu.Unlock()

	_ = e.fsm.Start(ctx)

	id, err := e.history.StartRecord(ctx, profile.ID, profile.Name, now)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to start history record", "error", err)
	}
	e.recordID = id
	e.recordStartTime = now

	if e.config.alarmVent != nil {
		_ = e.config.alarmVent.SoundShortBeep(ctx)
	}
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	e.started = false
}
