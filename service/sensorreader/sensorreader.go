// SPDX-License-Identifier: BSD-3-Clause

package sensorreader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
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
	"github.com/kilnctl/kilnctl/pkg/thermocouple"
	"github.com/kilnctl/kilnctl/service"
)

var _ service.Service = (*SensorReader)(nil)

// SensorReader samples the thermocouple converter on a fixed period and
// publishes the latest decoded reading for the rest of the core to read.
type SensorReader struct {
	config       *config
	nc           *nats.Conn
	microService micro.Service
	sampler      *thermocouple.Sampler

	mu     sync.RWMutex
	latest kiln.ThermocoupleReading

	logger  *slog.Logger
	tracer  trace.Tracer
	cancel  context.CancelFunc
	started bool
}

// New creates a SensorReader instance with the provided options.
func New(opts ...Option) *SensorReader {
	cfg := &config{
		serviceName:        DefaultServiceName,
		serviceDescription: DefaultServiceDescription,
		serviceVersion:     DefaultServiceVersion,
		sampleInterval:     DefaultSampleInterval,
		spiBus:             DefaultSPIBus,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &SensorReader{config: cfg}
}

// Name returns the service name.
func (s *SensorReader) Name() string {
	return s.config.serviceName
}

// Run opens the thermocouple source, starts the sampling loop, and serves
// the NATS IPC endpoint until ctx is canceled.
func (s *SensorReader) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
	s.tracer = otel.Tracer(s.config.serviceName)

	ctx, span := s.tracer.Start(ctx, "sensorreader.Run")
	defer span.End()

	s.logger = log.GetGlobalLogger().With("service", s.config.serviceName)

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrServiceAlreadyStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Starting sensor reader service",
		"version", s.config.serviceVersion,
		"sample_interval", s.config.sampleInterval)

	if err := s.config.Validate(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	src := s.config.source
	if src == nil {
		spi, err := thermocouple.OpenSPI(s.config.spiBus)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("%w: %w", ErrNoSource, err)
		}
		defer spi.Close() //nolint:errcheck
		src = spi
	}
	s.sampler = thermocouple.NewSampler(src, s.config.now)

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

	go s.runSampling(ctx)

	s.logger.InfoContext(ctx, "Sensor reader service started successfully")
	span.SetAttributes(attribute.String("service.name", s.config.serviceName))

	<-ctx.Done()

	err = ctx.Err()
	ctx = context.WithoutCancel(ctx)
	s.logger.InfoContext(ctx, "Shutting down sensor reader service")
	s.shutdown()

	return err
}

func (s *SensorReader) registerEndpoints(ctx context.Context) error {
	groups := make(map[string]micro.Group)
	if err := ipc.RegisterEndpointWithGroupCache(s.microService, ipc.SubjectSensorReading,
		micro.HandlerFunc(s.createRequestHandler(ctx, s.handleGetReading)), groups); err != nil {
		return fmt.Errorf("%w: %w", ErrEndpointRegistrationFailed, err)
	}
	return nil
}

func (s *SensorReader) createRequestHandler(parentCtx context.Context, handler func(context.Context, micro.Request)) micro.HandlerFunc {
	return func(req micro.Request) {
		ctx := telemetry.GetCtxFromReq(req)
		ctx = context.WithoutCancel(ctx)

		if s.tracer != nil {
			_, span := s.tracer.Start(ctx, "sensorreader.handleRequest")
			span.SetAttributes(
				attribute.String("subject", req.Subject()),
				attribute.String("service", s.config.serviceName),
			)
			defer span.End()
		}

		handler(ctx, req) //nolint:contextcheck
	}
}

func (s *SensorReader) handleGetReading(ctx context.Context, req micro.Request) {
	reading := s.GetLatest()

	data, err := json.Marshal(reading)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal reading response", "error", err)
		_ = req.Error("500", "failed to marshal response", nil)
		return
	}
	if err := req.Respond(data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send reading response", "error", err)
	}
}

// runSampling is the 4 Hz task body. It samples and publishes until ctx is
// canceled; SPI transport errors are logged and the previous cached
// reading is preserved.
func (s *SensorReader) runSampling(ctx context.Context) {
	ticker := time.NewTicker(s.config.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

func (s *SensorReader) sampleOnce(ctx context.Context) {
	reading, err := s.sampler.Sample()
	if err != nil {
		s.logger.WarnContext(ctx, "Thermocouple sample failed, keeping previous reading", "error", err)
		return
	}
	s.mu.Lock()
	s.latest = reading
	s.mu.Unlock()
}

// GetLatest returns a copy of the most recently published reading.
func (s *SensorReader) GetLatest() kiln.ThermocoupleReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *SensorReader) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.started = false
}
