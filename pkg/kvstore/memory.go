package kvstore

import "sync"

// Memory keeps values in a map and enforces a byte quota over the sum of
// key and value lengths.
type Memory struct {
	mu    sync.Mutex
	data  map[string]string
	used  int
	quota int
}

// NewMemory with quota <= 0 is unbounded.
func NewMemory(quota int) *Memory {
	return &Memory{data: map[string]string{}, quota: quota}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		next -= len(key) + len(old)
	}
	if m.quota > 0 && next > m.quota {
		return &QuotaError{Key: key, Size: next, Limit: m.quota}
	}
	m.data[key] = value
	m.used = next
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}

// Used is the number of bytes currently counted against the quota.
func (m *Memory) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
