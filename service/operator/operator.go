// SPDX-License-Identifier: BSD-3-Clause

package operator

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"cirello.io/oversight/v2"
	"github.com/arunsworld/nursery"
	"github.com/nats-io/nats.go"

	"github.com/kilnctl/kilnctl/pkg/id"
	"github.com/kilnctl/kilnctl/pkg/log"
	"github.com/kilnctl/kilnctl/pkg/mount"
	"github.com/kilnctl/kilnctl/pkg/process"
	"github.com/kilnctl/kilnctl/pkg/telemetry"
	"github.com/kilnctl/kilnctl/service"
	"github.com/kilnctl/kilnctl/service/ipc"
)

const defaultLogo = `
     kilnctl
  ___________
 /  /\ /\ /\  \
/__/__\__\__\__\
|  ___________  |
| | o       o | |
| |___________| |
|________________|
`

// Compile-time assertion that Operator implements service.Service.
var _ service.Service = (*Operator)(nil)

// Operator supervises the kiln control core's services: the sensor reader,
// the safety monitor, and the firing engine, all talking over an embedded
// NATS bus.
type Operator struct {
	config
}

// New creates an Operator from the given options. Unlike a general-purpose
// supervisor, the kiln core has no sensible default for any of the three
// control services: each one needs real hardware (a SPI bus, an SSR
// modulator, a safety-monitor reference) that only cmd/kilnctl can provide.
// A service left unconfigured is simply absent from the supervision tree.
//
// Example usage:
//
//	op := operator.New(
//		operator.WithName("kilnctl"),
//		operator.WithTimeout(15*time.Second),
//		operator.WithSensorReader(sensorreader.WithSource(spi)),
//		operator.WithSafetyMonitor(sm),
//		operator.WithFiringEngine(firingengine.WithStore(store)),
//	)
func New(opts ...Option) *Operator {
	cfg := &config{
		name:        "operator",
		id:          "",
		disableLogo: false,
		otelSetup:   telemetry.DefaultSetup,
		logger:      log.NewDefaultLogger(),
		timeout:     10 * time.Second,
		ipc:         ipc.New(),
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &Operator{
		config: *cfg,
	}
}

// Name returns the configured name of the operator service.
func (s *Operator) Name() string {
	return s.name
}

// Run starts the operator and all configured services under supervision. It
// sets up the supervision tree, configures inter-process communication, and
// manages the lifecycle of the kiln core services. The operator runs until
// the provided context is canceled or a fatal error occurs.
//
// The ipcConn parameter can be nil if an IPC service is configured via
// options. If both ipcConn and an IPC service are provided, the external
// ipcConn takes precedence.
func (s *Operator) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) (err error) {
	if s.name == "" {
		return ErrNameEmpty
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %w: %v", s.Name(), ErrPanicked, r)
		}
	}()

	// Several services rely on the telemetry setup having run because of our
	// custom logger.
	s.otelSetup()

	// This needs to be called after s.otelSetup to make sure any OTEL log
	// implementation is registered first.
	l := log.GetGlobalLogger()

	if s.id == "" {
		idStr, err := id.GetOrCreatePersistentID(s.Name(), "/var/kilnctl/id")
		if err != nil {
			l.ErrorContext(ctx, "Failed to get/create persistent ID, using ephemeral ID", "error", err)
			s.id = id.NewID()
		} else {
			s.id = idStr
		}
	}

	if !s.disableLogo {
		if s.customLogo != "" {
			l.Info(s.customLogo)
		} else {
			l.Info(defaultLogo)
		}
	}

	// All mount points should have been set up by init but we do not want to
	// rely on it, so we mount everything needed that isn't there yet (mostly
	// pseudofilesystems).
	l.InfoContext(ctx, "Checking filesystem mounts", "service", s.name)
	if err := mount.SetupMounts(); err != nil {
		l.WarnContext(ctx, "Failed to setup mounts correctly, continuing anyways", "service", s.name, "error", err)
	}

	supervisionTree := oversight.New(
		oversight.NeverHalt(),
		oversight.DefaultRestartStrategy(),
		oversight.WithLogger(log.NewOversightLogger(l)),
	)

	// A caller needs to either provide a valid ipcConn when starting the
	// operator or let us create an IPC service ourselves from the
	// configuration. If both are provided we will NOT start another IPC
	// service but re-use the provided ipcConn.
	if s.ipc == nil && ipcConn == nil {
		return ErrIPCNil
	}

	if s.ipc != nil && ipcConn == nil {
		if err := supervisionTree.Add(
			process.New(s.ipc, nil),
			oversight.Transient(),
			oversight.Timeout(s.timeout),
			s.ipc.Name(),
		); err != nil {
			return fmt.Errorf("%w %s to tree: %w", ErrAddProcess, s.ipc.Name(), err)
		}
	} else {
		if err := supervisionTree.Add(
			process.New(process.NewStub("ipc-stub"), nil),
			oversight.Transient(),
			oversight.Timeout(s.timeout),
			"ipc-stub",
		); err != nil {
			return fmt.Errorf("%w %s to tree: %w", ErrAddProcess, "ipc-stub", err)
		}
	}

	supervise := func(ctx context.Context, c chan error) {
		c <- supervisionTree.Start(ctx)
	}

	spawnProcs := func(ctx context.Context, c chan error) {
		var conn nats.InProcessConnProvider
		if ipcConn != nil {
			conn = ipcConn
		} else {
			conn = s.ipc.GetConnProvider()
		}

		// Dynamically add every configured service.Service field to the
		// supervision tree. Fields left nil by the caller (no hardware
		// wired for that service) are skipped.
		configValue := reflect.ValueOf(s.config)
		for i := range configValue.NumField() {
			field := configValue.Field(i)

			if field.IsValid() && field.CanInterface() {
				v := field.Interface()
				if v == nil {
					continue
				}
				if svc, ok := v.(service.Service); ok {
					if err := supervisionTree.Add(
						process.New(svc, conn),
						oversight.Transient(),
						oversight.Timeout(s.timeout),
						svc.Name(),
					); err != nil {
						c <- fmt.Errorf("%w %s to tree: %w", ErrAddProcess, svc.Name(), err)
						return
					}
				}
			}
		}

		for _, svc := range s.extraServices {
			if err := supervisionTree.Add(
				process.New(svc, conn),
				oversight.Transient(),
				oversight.Timeout(s.timeout),
				svc.Name(),
			); err != nil {
				c <- fmt.Errorf("%w %s to tree: %w", ErrAddExtraService, svc.Name(), err)
				return
			}
		}
	}

	l.InfoContext(ctx, "Starting child routines", "service", s.name)
	return nursery.RunConcurrentlyWithContext(ctx, supervise, spawnProcs)
}
