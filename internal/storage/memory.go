package storage

import (
	"context"
	"sync"
)

// Memory is an in-process store used when no database is available and in
// tests. It is safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	items      map[string]string
	log        []AuditEntry
	auditLimit int
}

// NewMemory returns an empty store. auditLimit caps the command log; zero or
// less keeps everything.
func NewMemory(auditLimit int) *Memory {
	return &Memory{items: make(map[string]string), auditLimit: auditLimit}
}

func (m *Memory) GetItem(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *Memory) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Append(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, e)
	if m.auditLimit > 0 && len(m.log) > m.auditLimit {
		m.log = append([]AuditEntry(nil), m.log[len(m.log)-m.auditLimit:]...)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (m *Memory) Recent(_ context.Context, n int) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.log) {
		n = len(m.log)
	}
	out := make([]AuditEntry, 0, n)
	for i := len(m.log) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.log[i])
	}
	return out, nil
}
