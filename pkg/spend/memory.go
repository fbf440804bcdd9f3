package spend

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Tracker. Old day buckets are dropped lazily
// on write to keep the map from growing unbounded.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]uint64
}

// NewMemory creates an empty in-memory tracker.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]uint64)}
}

// DailySpent returns the accumulated amount for now's UTC day.
func (m *Memory) DailySpent(_ context.Context, now time.Time) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets[dayKey(now)], nil
}

// Record adds amount to now's UTC day and prunes other days.
func (m *Memory) Record(_ context.Context, amount uint64, now time.Time) error {
	key := dayKey(now)

	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.buckets {
		if k != key {
			delete(m.buckets, k)
		}
	}
	m.buckets[key] += amount
	return nil
}
