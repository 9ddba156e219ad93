// SPDX-License-Identifier: BSD-3-Clause

package safetymon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilnctl/kilnctl/pkg/ipc"
	"github.com/kilnctl/kilnctl/pkg/kiln"
	"github.com/kilnctl/kilnctl/pkg/log"
	"github.com/kilnctl/kilnctl/pkg/telemetry"
	"github.com/kilnctl/kilnctl/service"
)

var _ service.Service = (*SafetyMonitor)(nil)

// StatusResponse is the JSON payload returned by safety.status.
type StatusResponse struct {
	Emergency    bool    `json:"emergency"`
	TempFault    bool    `json:"temp_fault"`
	MaxSafeTempC float64 `json:"max_safe_temp_c"`
	HardwareMaxC float64 `json:"hardware_max_temp_c"`
}

// SetMaxTempRequest is the JSON payload accepted by safety.maxtemp.
type SetMaxTempRequest struct {
	MaxSafeTempC float64 `json:"max_safe_temp_c"`
}

// SafetyMonitor audits the latest thermocouple reading at a fixed period
// and latches an emergency state on fault, staleness, or over-temperature.
type SafetyMonitor struct {
	config       *config
	nc           *nats.Conn
	microService micro.Service

	mu            sync.Mutex
	maxSafeTempC  float64
	lastValidTime time.Time
	tempFault     bool

	emergency atomic.Bool

	logger  *slog.Logger
	tracer  trace.Tracer
	cancel  context.CancelFunc
	started bool
}

// New creates a SafetyMonitor instance with the provided options.
func New(opts ...Option) *SafetyMonitor {
	cfg := &config{
		serviceName:        DefaultServiceName,
		serviceDescription: DefaultServiceDescription,
		serviceVersion:     DefaultServiceVersion,
		auditInterval:      DefaultAuditInterval,
		hardwareMaxTempC:   DefaultHardwareMaxTempC,
		maxSafeTempC:       DefaultMaxSafeTempC,
		stalenessWindow:    StalenessWindow,
		sensorEndpoint:     ipc.SubjectSensorReading,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &SafetyMonitor{config: cfg}
}

// Name returns the service name.
func (s *SafetyMonitor) Name() string {
	return s.config.serviceName
}

// Run starts the 2 Hz audit task and serves the NATS IPC endpoints until
// ctx is canceled.
func (s *SafetyMonitor) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
	s.tracer = otel.Tracer(s.config.serviceName)

	ctx, span := s.tracer.Start(ctx, "safetymon.Run")
	defer span.End()

	s.logger = log.GetGlobalLogger().With("service", s.config.serviceName)

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrServiceAlreadyStarted
	}
	s.started = true
	s.maxSafeTempC = clampMaxSafeTemp(s.config.maxSafeTempC, s.config.hardwareMaxTempC)
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Starting safety monitor service",
		"version", s.config.serviceVersion,
		"audit_interval", s.config.auditInterval,
		"hardware_max_temp_c", s.config.hardwareMaxTempC)

	if err := s.config.Validate(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	nc, err := nats.Connect("", nats.InProcessServer(ipcConn))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrNATSConnectionFailed, err)
	}
	s.nc = nc
	defer nc.Drain() //nolint:errcheck

	s.microService, err = micro.AddService(nc, micro.Config{
		Name:        s.config.serviceName,
		Description: s.config.serviceDescription,
		Version:     s.config.serviceVersion,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrMicroServiceCreationFailed, err)
	}

	if err := s.registerEndpoints(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	go s.runAudit(ctx)

	s.logger.InfoContext(ctx, "Safety monitor service started successfully")
	span.SetAttributes(attribute.String("service.name", s.config.serviceName))

	<-ctx.Done()

	err = ctx.Err()
	ctx = context.WithoutCancel(ctx)
	s.logger.InfoContext(ctx, "Shutting down safety monitor service")
	s.shutdown()

	return err
}

func (s *SafetyMonitor) registerEndpoints(ctx context.Context) error {
	groups := make(map[string]micro.Group)
	if err := ipc.RegisterEndpointWithGroupCache(s.microService, ipc.SubjectSafetyStatus,
		micro.HandlerFunc(s.createRequestHandler(ctx, s.handleStatus)), groups); err != nil {
		return fmt.Errorf("%w: %w", ErrEndpointRegistrationFailed, err)
	}
	if err := ipc.RegisterEndpointWithGroupCache(s.microService, ipc.SubjectSafetyClear,
		micro.HandlerFunc(s.createRequestHandler(ctx, s.handleClear)), groups); err != nil {
		return fmt.Errorf("%w: %w", ErrEndpointRegistrationFailed, err)
	}
	if err := ipc.RegisterEndpointWithGroupCache(s.microService, ipc.SubjectSafetyMaxTemp,
		micro.HandlerFunc(s.createRequestHandler(ctx, s.handleSetMaxTemp)), groups); err != nil {
		return fmt.Errorf("%w: %w", ErrEndpointRegistrationFailed, err)
	}
	return nil
}

func (s *SafetyMonitor) createRequestHandler(parentCtx context.Context, handler func(context.Context, micro.Request)) micro.HandlerFunc {
	return func(req micro.Request) {
		ctx := telemetry.GetCtxFromReq(req)
		ctx = context.WithoutCancel(ctx)

		if s.tracer != nil {
			_, span := s.tracer.Start(ctx, "safetymon.handleRequest")
			span.SetAttributes(
				attribute.String("subject", req.Subject()),
				attribute.String("service", s.config.serviceName),
			)
			defer span.End()
		}

		handler(ctx, req) //nolint:contextcheck
	}
}

func (s *SafetyMonitor) handleStatus(ctx context.Context, req micro.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Emergency:    s.emergency.Load(),
		TempFault:    s.tempFault,
		MaxSafeTempC: s.maxSafeTempC,
		HardwareMaxC: s.config.hardwareMaxTempC,
	}
	s.mu.Unlock()

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal status response", "error", err)
		_ = req.Error("500", "failed to marshal response", nil)
		return
	}
	if err := req.Respond(data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send status response", "error", err)
	}
}

func (s *SafetyMonitor) handleClear(ctx context.Context, req micro.Request) {
	s.ClearEmergency()
	s.logger.InfoContext(ctx, "Emergency flag cleared by operator")
	if err := req.Respond([]byte(`{"ok":true}`)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send clear response", "error", err)
	}
}

func (s *SafetyMonitor) handleSetMaxTemp(ctx context.Context, req micro.Request) {
	var reqBody SetMaxTempRequest
	if err := json.Unmarshal(req.Data(), &reqBody); err != nil {
		s.logger.WarnContext(ctx, "Invalid set max temp request", "error", err)
		_ = req.Error("400", "invalid request format", nil)
		return
	}
	if reqBody.MaxSafeTempC <= 0 {
		s.logger.WarnContext(ctx, "Rejected set max temp request", "error", ErrInvalidMaxTemp, "requested", reqBody.MaxSafeTempC)
		_ = req.Error("400", ErrInvalidMaxTemp.Error(), nil)
		return
	}

	s.mu.Lock()
	s.maxSafeTempC = clampMaxSafeTemp(reqBody.MaxSafeTempC, s.config.hardwareMaxTempC)
	resp := SetMaxTempRequest{MaxSafeTempC: s.maxSafeTempC}
	s.mu.Unlock()

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal max temp response", "error", err)
		_ = req.Error("500", "failed to marshal response", nil)
		return
	}
	if err := req.Respond(data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send max temp response", "error", err)
	}
}

// runAudit is the 2 Hz audit task body.
func (s *SafetyMonitor) runAudit(ctx context.Context) {
	ticker := time.NewTicker(s.config.auditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.auditOnce(ctx)
		}
	}
}

func (s *SafetyMonitor) now() time.Time {
	if s.config.now != nil {
		return s.config.now()
	}
	return time.Now()
}

// auditOnce implements the per-tick audit algorithm: fault+staleness,
// over-temperature, and plain staleness all funnel into emergency_stop.
func (s *SafetyMonitor) auditOnce(ctx context.Context) {
	reading, ok := s.fetchReading(ctx)
	if !ok {
		return
	}

	now := s.now()

	s.mu.Lock()
	maxSafe := s.maxSafeTempC
	hardwareMax := s.config.hardwareMaxTempC
	window := s.config.stalenessWindow
	s.mu.Unlock()

	if reading.Fault.HasFault() {
		if now.Sub(s.lastValidTimestamp()) > window {
			s.setTempFault(true)
			s.emergencyStop(ctx)
			return
		}
	} else {
		s.recordValid(reading.Timestamp)
		s.setTempFault(false)
	}

	if !reading.Fault.HasFault() && (reading.TempC > maxSafe || reading.TempC > hardwareMax) {
		s.emergencyStop(ctx)
		return
	}

	if now.Sub(reading.Timestamp) > window {
		s.setTempFault(true)
		s.emergencyStop(ctx)
	}
}

func (s *SafetyMonitor) fetchReading(ctx context.Context) (kiln.ThermocoupleReading, bool) {
	msg, err := s.nc.RequestWithContext(ctx, s.config.sensorEndpoint, nil)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to fetch latest reading", "error", err)
		return kiln.ThermocoupleReading{}, false
	}
	var reading kiln.ThermocoupleReading
	if err := json.Unmarshal(msg.Data, &reading); err != nil {
		s.logger.WarnContext(ctx, "Failed to decode latest reading", "error", err)
		return kiln.ThermocoupleReading{}, false
	}
	return reading, true
}

func (s *SafetyMonitor) lastValidTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastValidTime
}

func (s *SafetyMonitor) recordValid(ts time.Time) {
	s.mu.Lock()
	s.lastValidTime = ts
	s.mu.Unlock()
}

func (s *SafetyMonitor) setTempFault(faulted bool) {
	s.mu.Lock()
	changed := s.tempFault != faulted
	s.tempFault = faulted
	s.mu.Unlock()
	if changed {
		s.publishEvent(ipc.SubjectEventTempFault)
	}
}

// EmergencyStop latches the emergency flag, forces the SSR and vent GPIOs
// low, and publishes the EmergencyStop event. It is exported so in-process
// callers (the firing engine's guards) may also trigger it directly.
func (s *SafetyMonitor) EmergencyStop(ctx context.Context) {
	s.emergencyStop(ctx)
}

func (s *SafetyMonitor) emergencyStop(ctx context.Context) {
	wasLatched := s.emergency.Swap(true)

	if s.config.modulator != nil {
		s.config.modulator.Emergency(true)
		if err := s.config.modulator.SetDuty(0, s.now()); err != nil {
			s.logger.ErrorContext(ctx, "Failed to force SSR off on emergency stop", "error", err)
		}
	}
	if s.config.alarmVent != nil {
		_ = s.config.alarmVent.CloseVent()
		if !wasLatched {
			_ = s.config.alarmVent.SoundError(ctx)
		}
	}

	if !wasLatched {
		s.logger.ErrorContext(ctx, "Emergency stop latched")
		s.publishEvent(ipc.SubjectEventEmergencyStop)
	}
}

// ClearEmergency clears the latched flag without restarting anything; the
// modulator's own emergency override is released too so a subsequent
// SetDuty call is honored again.
func (s *SafetyMonitor) ClearEmergency() {
	s.emergency.Store(false)
	if s.config.modulator != nil {
		s.config.modulator.Emergency(false)
	}
}

// IsEmergency reports the current latched state without blocking.
func (s *SafetyMonitor) IsEmergency() bool {
	return s.emergency.Load()
}

func (s *SafetyMonitor) publishEvent(subject string) {
	if s.nc == nil {
		return
	}
	if err := s.nc.Publish(subject, nil); err != nil {
		s.logger.Warn("Failed to publish safety event", "subject", subject, "error", err)
	}
}

func clampMaxSafeTemp(requested, hardwareMax float64) float64 {
	if requested < 100 {
		requested = 100
	}
	if hardwareMax > 0 && requested > hardwareMax {
		requested = hardwareMax
	}
	return requested
}

func (s *SafetyMonitor) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.started = false
}
