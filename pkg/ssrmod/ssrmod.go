// SPDX-License-Identifier: BSD-3-Clause

// Package ssrmod implements time-proportional control of a solid-state
// relay: a fixed window is divided into an on-phase sized by the commanded
// duty fraction. A latched emergency override forces the output low and
// is checked before the duty is clamped into range.
package ssrmod

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kilnctl/kilnctl/pkg/gpio"
)

// DefaultWindow is the time-proportional control window.
const DefaultWindow = 2000 * time.Millisecond

// Driver is the GPIO surface the Modulator drives. *gpio.Line satisfies it.
type Driver interface {
	SetValue(value int) error
}

// Modulator converts a duty fraction in [0, 1] into a GPIO high/low pattern
// over a fixed window. Its exclusive owner is the firing engine (or the
// auto-tuner, in relay-cycling phase), which calls SetDuty once per
// control tick; the Safety Monitor may preempt it only through Emergency,
// which is safe to call from another goroutine.
type Modulator struct {
	line   Driver
	window time.Duration

	windowStart time.Time
	state       int // last GPIO value written, to avoid redundant SetValue calls

	emergency atomic.Bool
}

// New creates a Modulator with DefaultWindow driving line.
func New(line Driver) *Modulator {
	return &Modulator{line: line, window: DefaultWindow, state: -1}
}

// WithWindow overrides the time-proportional window.
func (m *Modulator) WithWindow(window time.Duration) *Modulator {
	m.window = window
	return m
}

// Emergency latches (or clears) the hard override. It is safe to call
// concurrently with SetDuty; the Safety Monitor is the only other task
// permitted to touch this Modulator, and only through this method.
func (m *Modulator) Emergency(latched bool) {
	m.emergency.Store(latched)
}

// SetDuty checks the emergency override first; if latched, it drives the
// line low and treats the input as zero regardless of duty. Otherwise it
// clamps duty to [0, 1] and immediately updates the GPIO output based on
// the elapsed position within the current window at the instant now,
// rolling the window forward if that elapsed time has reached the window
// length.
func (m *Modulator) SetDuty(duty float64, now time.Time) error {
	if m.emergency.Load() {
		m.windowStart = time.Time{}
		return m.write(0)
	}

	if duty < 0 {
		duty = 0
	} else if duty > 1 {
		duty = 1
	}

	if m.windowStart.IsZero() || now.Sub(m.windowStart) >= m.window {
		m.windowStart = now
	}

	onDuration := time.Duration(duty * float64(m.window))
	elapsed := now.Sub(m.windowStart)

	value := 0
	if elapsed < onDuration {
		value = 1
	}
	return m.write(value)
}

func (m *Modulator) write(value int) error {
	if m.state == value {
		return nil
	}
	if err := m.line.SetValue(value); err != nil {
		return fmt.Errorf("ssrmod: set line: %w", err)
	}
	m.state = value
	return nil
}

// NewGPIOLine opens the SSR control line as an active-high output, driven
// low initially.
func NewGPIOLine(chip, lineName string) (*gpio.Line, error) {
	line, err := gpio.Open(chip, lineName, gpio.AsOutputValue(0))
	if err != nil {
		return nil, fmt.Errorf("ssrmod: open ssr line: %w", err)
	}
	return line, nil
}
