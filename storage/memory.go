package storage

import (
	"context"
	"sync"
)

// Memory keeps slots for the life of the process.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]map[string][]byte),
	}
}

func (m *Memory) Get(_ context.Context, session, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.sessions[session][key]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)

	return out, nil
}

func (m *Memory) Put(_ context.Context, session, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, ok := m.sessions[session]
	if !ok {
		keys = make(map[string][]byte)
		m.sessions[session] = keys
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	keys[key] = stored

	return nil
}

func (m *Memory) Delete(_ context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, session)

	return nil
}

func (m *Memory) Close() error {
	return nil
}
