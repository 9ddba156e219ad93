// SPDX-License-Identifier: BSD-3-Clause

package sensorreader

import (
	"fmt"
	"time"

	"github.com/kilnctl/kilnctl/pkg/thermocouple"
)

const (
	DefaultServiceName        = "sensorreader"
	DefaultServiceDescription = "Thermocouple sampling service for the kiln control core"
	DefaultServiceVersion     = "1.0.0"
	DefaultSampleInterval     = 250 * time.Millisecond
	DefaultSPIBus             = ""
)

type config struct {
	serviceName        string
	serviceDescription string
	serviceVersion     string
	sampleInterval     time.Duration
	spiBus             string
	source             thermocouple.Source
	now                func() time.Time
}

type Option interface {
	apply(*config)
}

type serviceNameOption struct{ name string }

func (o *serviceNameOption) apply(c *config) { c.serviceName = o.name }

// WithServiceName overrides the NATS micro service name.
func WithServiceName(name string) Option { return &serviceNameOption{name: name} }

type sampleIntervalOption struct{ interval time.Duration }

func (o *sampleIntervalOption) apply(c *config) { c.sampleInterval = o.interval }

// WithSampleInterval overrides the 250 ms sampling period.
func WithSampleInterval(interval time.Duration) Option {
	return &sampleIntervalOption{interval: interval}
}

type spiBusOption struct{ bus string }

func (o *spiBusOption) apply(c *config) { c.spiBus = o.bus }

// WithSPIBus selects the periph.io SPI bus name opened if no explicit
// Source is supplied.
func WithSPIBus(bus string) Option { return &spiBusOption{bus: bus} }

type sourceOption struct{ source thermocouple.Source }

func (o *sourceOption) apply(c *config) { c.source = o.source }

// WithSource installs a pre-built thermocouple.Source (a mock, a fixture,
// or an already-opened SPI port), bypassing SPI bus discovery in Run.
func WithSource(source thermocouple.Source) Option { return &sourceOption{source: source} }

type clockOption struct{ now func() time.Time }

func (o *clockOption) apply(c *config) { c.now = o.now }

// WithClock overrides the monotonic clock used to stamp readings. Intended
// for tests; production code should leave this unset.
func WithClock(now func() time.Time) Option { return &clockOption{now: now} }

func (c *config) Validate() error {
	if c.serviceName == "" {
		return fmt.Errorf("%w: service name cannot be empty", ErrInvalidConfiguration)
	}
	if c.sampleInterval <= 0 {
		return fmt.Errorf("%w: sample interval must be positive", ErrInvalidConfiguration)
	}
	return nil
}
