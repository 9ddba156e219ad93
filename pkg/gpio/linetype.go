// SPDX-License-Identifier: BSD-3-Clause

//go:build linux
// +build linux

package gpio

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Line is a thin, typed wrapper around a requested gpiocdev line that adds
// the Blink/Pulse/Hold helpers and an Events() channel for edge-triggered
// input lines.
type Line struct {
	raw    *gpiocdev.Line
	config LineConfig

	mu       sync.Mutex
	events   chan Event
	seqno    uint32
	eventsOk bool
}

// Open requests a single GPIO line by name and wraps it as a *Line.
func Open(chip, lineName string, opts ...Option) (*Line, error) {
	if err := gpiocdev.IsChip(chip); err != nil {
		return nil, mapGpiocdevError(err, fmt.Sprintf("invalid chip path '%s'", chip))
	}

	foundChip, offset, err := gpiocdev.FindLine(lineName)
	if err != nil {
		return nil, mapGpiocdevError(err, fmt.Sprintf("failed to find line '%s'", lineName))
	}
	// Normalize device identifiers (path vs basename) before comparing.
	if filepath.Base(foundChip) != filepath.Base(chip) {
		return nil, fmt.Errorf("%w: line '%s' not found on chip '%s'", ErrLineNotFound, lineName, chip)
	}

	return openOffset(chip, offset, opts...)
}

// OpenByNumber requests a single GPIO line by offset and wraps it as a *Line.
func OpenByNumber(chip string, lineNumber int, opts ...Option) (*Line, error) {
	return openOffset(chip, lineNumber, opts...)
}

func openOffset(chip string, offset int, opts ...Option) (*Line, error) {
	cfg := NewConfig(opts...)
	lc := cfg.DefaultConfig

	l := &Line{config: lc}

	gpiocdevOpts := convertOptions(opts)
	if lc.Edge != EdgeNone {
		bufSize := lc.EventBufferSize
		if bufSize <= 0 {
			bufSize = 16
		}
		l.events = make(chan Event, bufSize)
		l.eventsOk = true
		gpiocdevOpts = append(gpiocdevOpts, gpiocdev.WithEventHandler(l.handleEvent))
	}

	raw, err := gpiocdev.RequestLine(chip, offset, gpiocdevOpts...)
	if err != nil {
		return nil, mapGpiocdevError(err, fmt.Sprintf("failed to request line %d from chip '%s'", offset, chip))
	}
	l.raw = raw

	return l, nil
}

// handleEvent is the gpiocdev event callback; it never blocks the gpiocdev
// reader goroutine, dropping events if the consumer isn't keeping up.
func (l *Line) handleEvent(evt gpiocdev.LineEvent) {
	l.mu.Lock()
	l.seqno++
	seq := l.seqno
	l.mu.Unlock()

	select {
	case l.events <- Event{Offset: evt.Offset, Rising: evt.Type == gpiocdev.LineEventRisingEdge, Seqno: seq}:
	default:
	}
}

// SetValue sets the line's output value.
func (l *Line) SetValue(value int) error {
	if l.raw == nil {
		return fmt.Errorf("%w", ErrLineClosed)
	}
	if err := l.raw.SetValue(value); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOperation, err)
	}
	return nil
}

// GetValue reads the line's current value.
func (l *Line) GetValue() (int, error) {
	if l.raw == nil {
		return 0, fmt.Errorf("%w", ErrLineClosed)
	}
	v, err := l.raw.Value()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrReadOperation, err)
	}
	return v, nil
}

// Close releases the underlying line.
func (l *Line) Close() error {
	if l.raw == nil {
		return nil
	}
	err := l.raw.Close()
	l.raw = nil
	if l.eventsOk {
		close(l.events)
		l.eventsOk = false
	}
	return err
}

// Events returns the channel of edge events for an input line configured
// with edge detection, or nil if the line wasn't configured for events.
func (l *Line) Events() <-chan Event {
	if !l.eventsOk {
		return nil
	}
	return l.events
}

// Toggle sets the line high, waits for duration, then sets it low.
func (l *Line) Toggle(duration time.Duration) error {
	if err := l.SetValue(1); err != nil {
		return fmt.Errorf("%w: %w", ErrToggleOperation, err)
	}
	time.Sleep(duration)
	if err := l.SetValue(0); err != nil {
		return fmt.Errorf("%w: %w", ErrToggleOperation, err)
	}
	return nil
}

// ToggleCtx is like Toggle but honors context cancellation during the wait.
func (l *Line) ToggleCtx(ctx context.Context, duration time.Duration) error {
	if err := l.SetValue(1); err != nil {
		return fmt.Errorf("%w: %w", ErrToggleOperation, err)
	}
	select {
	case <-time.After(duration):
	case <-ctx.Done():
		_ = l.SetValue(0)
		return fmt.Errorf("%w: %w", ErrOperationCanceled, ctx.Err())
	}
	if err := l.SetValue(0); err != nil {
		return fmt.Errorf("%w: %w", ErrToggleOperation, err)
	}
	return nil
}
