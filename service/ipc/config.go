// SPDX-License-Identifier: BSD-3-Clause

package ipc

import (
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// Default configuration values for the embedded NATS server.
const (
	DefaultServiceName        = "ipc"
	DefaultServiceDescription = "in-process NATS bus for kiln core services"
	DefaultServiceVersion     = "1.0.0"
	DefaultServerName         = "kilnctl-ipc"
	DefaultStoreDir           = "/var/lib/kilnctl/ipc"
	DefaultMaxMemory          = int64(64 * 1024 * 1024)
	DefaultMaxStorage         = int64(256 * 1024 * 1024)
	DefaultStartupTimeout     = 10 * time.Second
	DefaultShutdownTimeout    = 5 * time.Second
)

type config struct {
	serviceName        string
	serviceDescription string
	serviceVersion     string
	serverName         string
	storeDir           string
	enableJetStream    bool
	dontListen         bool

	maxMemory      int64
	maxStorage     int64
	maxConnections int
	maxControlLine int32
	maxPayload     int32

	startupTimeout  time.Duration
	shutdownTimeout time.Duration

	writeDeadline               time.Duration
	pingInterval                time.Duration
	maxPingsOut                 int
	enableSlowConsumerDetection bool
	slowConsumerThreshold       time.Duration
}

// Validate checks that the configuration is self-consistent.
func (c *config) Validate() error {
	if c.serviceName == "" {
		return ErrInvalidServerName
	}
	if c.startupTimeout <= 0 || c.shutdownTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.enableJetStream && c.storeDir == "" {
		return ErrStorageDirInvalid
	}
	return nil
}

// ToServerOptions translates the service configuration into NATS server options.
func (c *config) ToServerOptions() *server.Options {
	opts := &server.Options{
		ServerName:            c.serverName,
		JetStream:             c.enableJetStream,
		StoreDir:              c.storeDir,
		DontListen:            c.dontListen,
		JetStreamMaxMemory:    c.maxMemory,
		JetStreamMaxStore:     c.maxStorage,
		MaxConn:               c.maxConnections,
		MaxControlLine:        c.maxControlLine,
		MaxPayload:            c.maxPayload,
		WriteDeadline:         c.writeDeadline,
		PingInterval:          c.pingInterval,
		MaxPingsOut:           c.maxPingsOut,
		NoSigs:                true,
		DisableShortFirstPing: true,
	}
	return opts
}

// Option configures the IPC service.
type Option interface {
	apply(*config)
}

type serviceNameOption struct{ name string }

func (o *serviceNameOption) apply(c *config) { c.serviceName = o.name }

// WithServiceName overrides the service name reported to the supervision tree.
func WithServiceName(name string) Option {
	return &serviceNameOption{name: name}
}

type storeDirOption struct{ dir string }

func (o *storeDirOption) apply(c *config) { c.storeDir = o.dir }

// WithStoreDir sets the JetStream storage directory.
func WithStoreDir(dir string) Option {
	return &storeDirOption{dir: dir}
}

type maxMemoryOption struct{ n int64 }

func (o *maxMemoryOption) apply(c *config) { c.maxMemory = o.n }

// WithMaxMemory caps JetStream in-memory storage.
func WithMaxMemory(n int64) Option {
	return &maxMemoryOption{n: n}
}

type maxStorageOption struct{ n int64 }

func (o *maxStorageOption) apply(c *config) { c.maxStorage = o.n }

// WithMaxStorage caps JetStream file storage.
func WithMaxStorage(n int64) Option {
	return &maxStorageOption{n: n}
}

type jetStreamOption struct{ enabled bool }

func (o *jetStreamOption) apply(c *config) { c.enableJetStream = o.enabled }

// WithJetStream enables or disables JetStream on the embedded server.
func WithJetStream(enabled bool) Option {
	return &jetStreamOption{enabled: enabled}
}

type serverNameOption struct{ name string }

func (o *serverNameOption) apply(c *config) { c.serverName = o.name }

// WithServerName sets the NATS server's advertised name.
func WithServerName(name string) Option {
	return &serverNameOption{name: name}
}

type timeoutsOption struct{ startup, shutdown time.Duration }

func (o *timeoutsOption) apply(c *config) {
	c.startupTimeout = o.startup
	c.shutdownTimeout = o.shutdown
}

// WithTimeouts overrides the startup and shutdown timeouts.
func WithTimeouts(startup, shutdown time.Duration) Option {
	return &timeoutsOption{startup: startup, shutdown: shutdown}
}
