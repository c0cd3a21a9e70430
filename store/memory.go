package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	plan      []int
	updatedAt time.Time
}

// Memory keeps plans for the life of the process.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) LoadPlan(_ context.Context, sessionID string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePlan(m.entries[sessionID].plan), nil
}

func (m *Memory) SavePlan(_ context.Context, sessionID string, plan []int) error {
	if err := validPlan(plan); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sessionID] = memoryEntry{plan: clonePlan(plan), updatedAt: m.now()}
	return nil
}

func (m *Memory) Prune(_ context.Context, cutoff time.Time, dryRun bool) (PruneResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result PruneResult
	for id, e := range m.entries {
		if !e.updatedAt.Before(cutoff) {
			continue
		}
		if !dryRun {
			delete(m.entries, id)
		}
		result.Deleted++
	}
	return result, nil
}

func (m *Memory) Close() error { return nil }
