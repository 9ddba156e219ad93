// SPDX-License-Identifier: BSD-3-Clause

package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/kilnctl/kilnctl/pkg/kiln"
)

// MemoryStore is an in-process Store, useful for tests and for a kiln with
// no durable backend configured.
type MemoryStore struct {
	mu           sync.RWMutex
	gains        *Gains
	settings     *kiln.KilnSettings
	profiles     map[string]kiln.FiringProfile
	elementHours uint32
	events       []HistoryEvent
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]kiln.FiringProfile)}
}

func (m *MemoryStore) LoadGains(ctx context.Context) (Gains, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.gains == nil {
		return DefaultGains, nil
	}
	return *m.gains, nil
}

func (m *MemoryStore) SaveGains(ctx context.Context, g Gains) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gains = &g
	return nil
}

func (m *MemoryStore) LoadSettings(ctx context.Context) (kiln.KilnSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return kiln.KilnSettings{Unit: kiln.UnitCelsius, MaxSafeTempC: 1300}, nil
	}
	return *m.settings, nil
}

func (m *MemoryStore) SaveSettings(ctx context.Context, s kiln.KilnSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *MemoryStore) LoadProfile(ctx context.Context, id string) (kiln.FiringProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return kiln.FiringProfile{}, ErrProfileNotFound
	}
	return p, nil
}

func (m *MemoryStore) SaveProfile(ctx context.Context, p kiln.FiringProfile) error {
	if !ValidProfileID(p.ID) {
		return ErrInvalidProfileID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profiles[p.ID]; !exists && len(m.profiles) >= MaxProfiles {
		return ErrProfileCapacity
	}
	m.profiles[p.ID] = p
	return nil
}

func (m *MemoryStore) DeleteProfile(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return ErrProfileNotFound
	}
	delete(m.profiles, id)
	return nil
}

func (m *MemoryStore) ListProfiles(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// AppendHistoryEvent records ev. Events returns the accumulated log, for
// tests that want to assert on emitted history without a real sink.
func (m *MemoryStore) AppendHistoryEvent(ctx context.Context, ev HistoryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the events appended so far, oldest first.
func (m *MemoryStore) Events() []HistoryEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]HistoryEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryStore) SaveElementHours(ctx context.Context, seconds uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elementHours = seconds
	return nil
}

func (m *MemoryStore) LoadElementHours(ctx context.Context) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.elementHours, nil
}

var _ Store = (*MemoryStore)(nil)
