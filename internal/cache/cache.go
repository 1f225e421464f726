// Package cache holds instantiated questions between instantiate and grade.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mind-engage/quiztab/internal/instance"
)

// Instances caches question instances by question id and seed.
type Instances interface {
	Get(ctx context.Context, questionID string, seed int64) (instance.Instance, bool, error)
	Put(ctx context.Context, questionID string, inst instance.Instance) error
	Drop(ctx context.Context, questionID string, seed int64) error
}

// MaxMemoryEntries caps a Memory cache. Put evicts the entry closest to
// expiry once the cap is reached.
const MaxMemoryEntries = 50000

// Memory is an in-process Instances with per-entry expiry. Expired entries
// are swept by Put at most once per TTL.
type Memory struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	entries   map[string]memEntry
	nextSweep time.Time
	max       int
}

type memEntry struct {
	inst    instance.Instance
	expires time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, entries: map[string]memEntry{}, max: MaxMemoryEntries}
}

func (m *Memory) Get(_ context.Context, questionID string, seed int64) (instance.Instance, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := instance.ID(questionID, seed)
	e, ok := m.entries[key]
	if !ok {
		return instance.Instance{}, false, nil
	}
	if m.ttl > 0 && m.now().After(e.expires) {
		delete(m.entries, key)
		return instance.Instance{}, false, nil
	}
	return e.inst, true, nil
}

func (m *Memory) Put(_ context.Context, questionID string, inst instance.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if m.ttl > 0 && !now.Before(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(m.ttl)
	}
	key := instance.ID(questionID, inst.Seed)
	if _, ok := m.entries[key]; !ok && m.max > 0 && len(m.entries) >= m.max {
		m.evictOldest()
	}
	m.entries[key] = memEntry{inst: inst, expires: now.Add(m.ttl)}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) evictOldest() {
	var (
		oldest string
		at     time.Time
	)
	for k, e := range m.entries {
		if oldest == "" || e.expires.Before(at) {
			oldest, at = k, e.expires
		}
	}
	delete(m.entries, oldest)
}

func (m *Memory) Drop(_ context.Context, questionID string, seed int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, instance.ID(questionID, seed))
	return nil
}
