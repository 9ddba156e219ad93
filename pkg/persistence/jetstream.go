// SPDX-License-Identifier: BSD-3-Clause

package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kilnctl/kilnctl/pkg/kiln"
)

const (
	bucketName     = "KILN_STATE"
	gainsKey       = "pid.gains"
	settingsKey    = "settings"
	elemHoursKey   = "diag.elem_hours_s"
	profileKeyFmt  = "profiles.%s"
	profileIndexID = "profiles._index"

	historyStreamName = "KILN_HISTORY"
	historySubject    = "kiln.history.events"
)

// JetStreamStore persists gains, settings, profiles, and the element-hours
// counter in a NATS JetStream key/value bucket, created on first use with
// a single replica (the kiln's embedded NATS server is not clustered).
// History events are published to a separate append-only stream, since
// they are write-once and never looked up by key.
type JetStreamStore struct {
	kv     jetstream.KeyValue
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewJetStreamStore opens (creating if absent) the kiln's key/value bucket
// and history stream on an already-connected in-process NATS client.
func NewJetStreamStore(ctx context.Context, nc *nats.Conn) (*JetStreamStore, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("persistence: new jetstream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: "kiln gains, settings, profiles, and diagnostics",
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: open bucket %s: %w", bucketName, err)
	}
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        historyStreamName,
		Description: "firing start/sample/finish events",
		Subjects:    []string{historySubject},
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: open history stream: %w", err)
	}
	return &JetStreamStore{kv: kv, js: js, stream: stream}, nil
}

func (s *JetStreamStore) LoadGains(ctx context.Context) (Gains, error) {
	var g Gains
	if err := s.getJSON(ctx, gainsKey, &g); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return DefaultGains, nil
		}
		return Gains{}, err
	}
	return g, nil
}

func (s *JetStreamStore) SaveGains(ctx context.Context, g Gains) error {
	return s.putJSON(ctx, gainsKey, g)
}

func (s *JetStreamStore) LoadSettings(ctx context.Context) (kiln.KilnSettings, error) {
	var settings kiln.KilnSettings
	if err := s.getJSON(ctx, settingsKey, &settings); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return kiln.KilnSettings{Unit: kiln.UnitCelsius, MaxSafeTempC: 1300}, nil
		}
		return kiln.KilnSettings{}, err
	}
	return settings, nil
}

func (s *JetStreamStore) SaveSettings(ctx context.Context, settings kiln.KilnSettings) error {
	return s.putJSON(ctx, settingsKey, settings)
}

func (s *JetStreamStore) LoadProfile(ctx context.Context, id string) (kiln.FiringProfile, error) {
	var p kiln.FiringProfile
	if err := s.getJSON(ctx, fmt.Sprintf(profileKeyFmt, id), &p); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return kiln.FiringProfile{}, ErrProfileNotFound
		}
		return kiln.FiringProfile{}, err
	}
	return p, nil
}

func (s *JetStreamStore) SaveProfile(ctx context.Context, p kiln.FiringProfile) error {
	if !ValidProfileID(p.ID) {
		return ErrInvalidProfileID
	}
	index, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}
	if !containsString(index, p.ID) {
		if len(index) >= MaxProfiles {
			return ErrProfileCapacity
		}
		index = append(index, p.ID)
	}
	if err := s.putJSON(ctx, fmt.Sprintf(profileKeyFmt, p.ID), p); err != nil {
		return err
	}
	return s.putJSON(ctx, profileIndexID, index)
}

func (s *JetStreamStore) DeleteProfile(ctx context.Context, id string) error {
	index, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}
	if !containsString(index, id) {
		return ErrProfileNotFound
	}
	if err := s.kv.Delete(ctx, fmt.Sprintf(profileKeyFmt, id)); err != nil {
		return fmt.Errorf("persistence: delete profile %s: %w", id, err)
	}
	return s.putJSON(ctx, profileIndexID, removeString(index, id))
}

func (s *JetStreamStore) ListProfiles(ctx context.Context) ([]string, error) {
	return s.loadIndex(ctx)
}

// AppendHistoryEvent publishes ev to the history stream. JetStream
// publish-acked semantics give it durability without a read-modify-write.
func (s *JetStreamStore) AppendHistoryEvent(ctx context.Context, ev HistoryEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("persistence: marshal history event: %w", err)
	}
	if _, err := s.js.Publish(ctx, historySubject, data); err != nil {
		return fmt.Errorf("persistence: publish history event: %w", err)
	}
	return nil
}

func (s *JetStreamStore) SaveElementHours(ctx context.Context, seconds uint32) error {
	return s.putJSON(ctx, elemHoursKey, seconds)
}

func (s *JetStreamStore) LoadElementHours(ctx context.Context) (uint32, error) {
	var seconds uint32
	if err := s.getJSON(ctx, elemHoursKey, &seconds); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return seconds, nil
}

func (s *JetStreamStore) loadIndex(ctx context.Context) ([]string, error) {
	var index []string
	if err := s.getJSON(ctx, profileIndexID, &index); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return index, nil
}

func (s *JetStreamStore) getJSON(ctx context.Context, key string, v any) error {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(entry.Value(), v)
}

func (s *JetStreamStore) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persistence: marshal %s: %w", key, err)
	}
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("persistence: put %s: %w", key, err)
	}
	return nil
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(ss []string, s string) []string {
	out := make([]string, 0, len(ss))
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

var _ Store = (*JetStreamStore)(nil)
