// SPDX-License-Identifier: BSD-3-Clause

// Package persistence defines the storage port the control core depends
// on: gains, settings, profiles, and the element-hours counter. It is a
// small interface, not a dependency — the core is testable against
// [NewMemoryStore] and deployed against [NewJetStreamStore].
package persistence

import (
	"context"
	"regexp"
	"time"

	"github.com/kilnctl/kilnctl/pkg/kiln"
)

// MaxProfiles is the minimum capacity a Store implementation must support.
const MaxProfiles = 20

// MaxProfileIDLength bounds a sanitized profile id.
const MaxProfileIDLength = 15

var profileIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,15}$`)

// ValidProfileID reports whether id is alnum/underscore and <= 15 chars.
func ValidProfileID(id string) bool {
	return profileIDPattern.MatchString(id)
}

// Gains is the persisted PID gain triple.
type Gains struct {
	Kp, Ki, Kd float64
}

// DefaultGains are applied when no gains have ever been saved.
var DefaultGains = Gains{Kp: 2.0, Ki: 0.01, Kd: 50.0}

// HistoryEventKind tags the variant held by a HistoryEvent.
type HistoryEventKind int

const (
	HistoryEventStart HistoryEventKind = iota
	HistoryEventSample
	HistoryEventFinish
)

// HistoryEvent is the single append-only record the core emits for a
// firing's lifecycle: its start, its periodic temperature samples, and its
// terminal outcome. AppendHistoryEvent is the port's one write path for
// all three, so a sink backed by an append-only medium (a JetStream
// stream, a log file) never needs read-modify-write.
type HistoryEvent struct {
	Kind     HistoryEventKind
	RecordID uint64

	Record kiln.HistoryRecord // set for HistoryEventStart
	Sample kiln.HistorySample // set for HistoryEventSample

	// set for HistoryEventFinish
	Outcome   kiln.HistoryOutcome
	ErrorCode kiln.ErrorCode
	PeakTempC float64
	Duration  time.Duration
}

// Store is the persistence port. Every method is safe for concurrent use.
type Store interface {
	LoadGains(ctx context.Context) (Gains, error)
	SaveGains(ctx context.Context, g Gains) error

	LoadSettings(ctx context.Context) (kiln.KilnSettings, error)
	SaveSettings(ctx context.Context, s kiln.KilnSettings) error

	LoadProfile(ctx context.Context, id string) (kiln.FiringProfile, error)
	SaveProfile(ctx context.Context, p kiln.FiringProfile) error
	DeleteProfile(ctx context.Context, id string) error
	ListProfiles(ctx context.Context) ([]string, error)

	AppendHistoryEvent(ctx context.Context, ev HistoryEvent) error

	SaveElementHours(ctx context.Context, seconds uint32) error
	LoadElementHours(ctx context.Context) (uint32, error)
}
