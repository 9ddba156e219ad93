// SPDX-License-Identifier: BSD-3-Clause

//go:build linux
// +build linux

package gpio

import (
	"github.com/warthog618/go-gpiocdev"
)

// AsOutput is shorthand for WithDirection(DirectionOutput).
func AsOutput() Option {
	return &directionOption{direction: DirectionOutput}
}

// AsInput is shorthand for WithDirection(DirectionInput).
func AsInput() Option {
	return &directionOption{direction: DirectionInput}
}

// AsOutputValue configures the line as an output with the given initial value.
func AsOutputValue(value int) Option {
	return &combinedOption{
		opts: []Option{
			&directionOption{direction: DirectionOutput},
			&initialValueOption{value: value},
		},
	}
}

type combinedOption struct {
	opts []Option
}

func (o *combinedOption) apply(c *Config) {
	for _, opt := range o.opts {
		opt.apply(c)
	}
}

// Event wraps a single GPIO edge event delivered to a LineMonitor callback.
type Event struct {
	// Offset is the line offset the event occurred on.
	Offset int
	// Rising is true for a rising edge, false for a falling edge.
	Rising bool
	// Seqno is the monotonically increasing sequence number of the event.
	Seqno uint32
}

// convertOptions folds the given Option values into a Config and translates
// the resulting default LineConfig into gpiocdev line request options.
func convertOptions(opts []Option) []gpiocdev.LineReqOption {
	cfg := NewConfig(opts...)
	lc := cfg.DefaultConfig

	var out []gpiocdev.LineReqOption

	if lc.Consumer != "" {
		out = append(out, gpiocdev.WithConsumer(lc.Consumer))
	}

	switch lc.Direction {
	case DirectionOutput:
		out = append(out, gpiocdev.AsOutput(lc.InitialValue))
		switch lc.Drive {
		case DriveOpenDrain:
			out = append(out, gpiocdev.AsOpenDrain)
		case DriveOpenSource:
			out = append(out, gpiocdev.AsOpenSource)
		default:
			out = append(out, gpiocdev.AsPushPull)
		}
	default:
		out = append(out, gpiocdev.AsInput)
		switch lc.Edge {
		case EdgeRising:
			out = append(out, gpiocdev.WithRisingEdge)
		case EdgeFalling:
			out = append(out, gpiocdev.WithFallingEdge)
		case EdgeBoth:
			out = append(out, gpiocdev.WithBothEdges)
		}
		if lc.DebouncePeriod > 0 {
			out = append(out, gpiocdev.WithDebounce(lc.DebouncePeriod))
		}
	}

	switch lc.Bias {
	case BiasPullUp:
		out = append(out, gpiocdev.WithPullUp)
	case BiasPullDown:
		out = append(out, gpiocdev.WithPullDown)
	case BiasDisabled:
		out = append(out, gpiocdev.WithBiasDisabled)
	}

	if lc.ActiveState == ActiveLow {
		out = append(out, gpiocdev.AsActiveLow)
	}

	return out
}
