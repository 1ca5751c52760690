package store

import (
	"context"
	"slices"
	"sync"
)

// Memory is a process local Store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{records: map[string]map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, kind, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.records[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

func (m *Memory) Put(_ context.Context, kind, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, ok := m.records[kind]
	if !ok {
		records = map[string][]byte{}
		m.records[kind] = records
	}
	records[id] = slices.Clone(data)
	return nil
}

func (m *Memory) List(_ context.Context, kind string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.records[kind]))
	for id := range m.records[kind] {
		ids = append(ids, id)
	}
	return ids, nil
}
