// Package store owns durable category persistence: a small key-value
// collaborator contract and the CategoryStore built on top of it.
package store

import (
	"context"
	"sync"
)

// KV is the durable key-value collaborator. Get reports presence
// explicitly so an absent key is not an error.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryKV is an in-process KV used by tests and dry runs.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string

	// FailNextSet makes the next Set return SetErr, for persistence
	// failure tests.
	FailNextSet bool
	SetErr      error
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNextSet {
		m.FailNextSet = false
		return m.SetErr
	}
	m.data[key] = value
	return nil
}
