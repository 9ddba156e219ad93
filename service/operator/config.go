// SPDX-License-Identifier: BSD-3-Clause

package operator

import (
	"log/slog"
	"time"

	"github.com/kilnctl/kilnctl/service"
	"github.com/kilnctl/kilnctl/service/firingengine"
	"github.com/kilnctl/kilnctl/service/ipc"
	"github.com/kilnctl/kilnctl/service/safetymon"
	"github.com/kilnctl/kilnctl/service/sensorreader"
)

type config struct {
	name        string
	id          string
	disableLogo bool
	customLogo  string
	otelSetup   func()
	logger      *slog.Logger
	timeout     time.Duration
	// IPC service needs special handling: its connection provider feeds
	// every other service's Run call.
	ipc *ipc.IPC
	// Everything of type service.Service needs to be exported: Run's
	// reflection pass only finds exported fields.
	SensorReader service.Service
	SafetyMonitor service.Service
	FiringEngine  service.Service

	extraServices []service.Service
}

type Option interface {
	apply(*config)
}

type nameOption struct{ name string }

func (o *nameOption) apply(c *config) { c.name = o.name }

// WithName sets the operator's service name.
func WithName(name string) Option { return &nameOption{name: name} }

type idOption struct{ id string }

func (o *idOption) apply(c *config) { c.id = o.id }

// WithID sets the operator's persistent identifier, bypassing the
// generate-or-load-from-disk default.
func WithID(id string) Option { return &idOption{id: id} }

type disableLogoOption struct{ disableLogo bool }

func (o *disableLogoOption) apply(c *config) { c.disableLogo = o.disableLogo }

// WithDisableLogo suppresses the startup banner.
func WithDisableLogo(disableLogo bool) Option { return &disableLogoOption{disableLogo: disableLogo} }

type customLogoOption struct{ customLogo string }

func (o *customLogoOption) apply(c *config) { c.customLogo = o.customLogo }

// WithCustomLogo replaces the default startup banner text.
func WithCustomLogo(customLogo string) Option { return &customLogoOption{customLogo: customLogo} }

type otelSetupOption struct{ otelSetup func() }

func (o *otelSetupOption) apply(c *config) { c.otelSetup = o.otelSetup }

// WithOtelSetup overrides the OpenTelemetry bootstrap called before any
// service starts.
func WithOtelSetup(otelSetup func()) Option { return &otelSetupOption{otelSetup: otelSetup} }

type loggerOption struct{ logger *slog.Logger }

func (o *loggerOption) apply(c *config) { c.logger = o.logger }

// WithLogger sets the logger stored in the operator's configuration. Run
// logs through log.GetGlobalLogger and does not use this logger.
func WithLogger(logger *slog.Logger) Option { return &loggerOption{logger: logger} }

type timeoutOption struct{ timeout time.Duration }

func (o *timeoutOption) apply(c *config) { c.timeout = o.timeout }

// WithTimeout bounds how long each supervised service gets to start or stop.
func WithTimeout(timeout time.Duration) Option { return &timeoutOption{timeout: timeout} }

type ipcOption struct{ ipc *ipc.IPC }

func (o *ipcOption) apply(c *config) { c.ipc = o.ipc }

// WithIPC configures the embedded NATS server the kiln core services talk
// over.
func WithIPC(opts ...ipc.Option) Option { return &ipcOption{ipc: ipc.New(opts...)} }

type sensorReaderOption struct{ sensorReader service.Service }

func (o *sensorReaderOption) apply(c *config) { c.SensorReader = o.sensorReader }

// WithSensorReader configures the thermocouple sampling service.
func WithSensorReader(opts ...sensorreader.Option) Option {
	return &sensorReaderOption{sensorReader: sensorreader.New(opts...)}
}

type safetyMonitorOption struct{ safetyMonitor service.Service }

func (o *safetyMonitorOption) apply(c *config) { c.SafetyMonitor = o.safetyMonitor }

// WithSafetyMonitor installs an already-constructed safety monitor. Unlike
// the other services, the safety monitor is built by the caller (cmd/kilnctl)
// rather than from options here: the firing engine needs the same *
// safetymon.SafetyMonitor pointer for its in-process emergency source and
// trigger, so the instance has to exist before the operator is assembled.
func WithSafetyMonitor(sm *safetymon.SafetyMonitor) Option {
	return &safetyMonitorOption{safetyMonitor: sm}
}

type firingEngineOption struct{ firingEngine service.Service }

func (o *firingEngineOption) apply(c *config) { c.FiringEngine = o.firingEngine }

// WithFiringEngine configures the firing orchestration service.
func WithFiringEngine(opts ...firingengine.Option) Option {
	return &firingEngineOption{firingEngine: firingengine.New(opts...)}
}

type servicesOption struct{ services []service.Service }

func (o *servicesOption) apply(c *config) { c.extraServices = o.services }

// WithExtraServices adds additional services to the supervision tree
// alongside the three kiln core services.
func WithExtraServices(services ...service.Service) Option {
	return &servicesOption{services: services}
}
