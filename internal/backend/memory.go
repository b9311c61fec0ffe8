package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process backend. It optionally enforces a byte quota,
// which makes it useful for exercising storage write failures.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]string
	quota int
	used  int
}

// NewMemory creates a memory backend. quota <= 0 disables the cap.
func NewMemory(quota int) *Memory {
	return &Memory{data: make(map[string]string), quota: quota}
}

func (m *Memory) Name() Type { return TypeMemory }

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		next -= len(key) + len(old)
	}
	if m.quota > 0 && next > m.quota {
		return fmt.Errorf("set %s: %w", key, ErrQuotaExceeded)
	}
	m.data[key] = value
	m.used = next
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// SetQuota changes the byte cap. Existing data is kept even if it exceeds it.
func (m *Memory) SetQuota(quota int) {
	m.mu.Lock()
	m.quota = quota
	m.mu.Unlock()
}

// Used returns the total bytes of keys and values held.
func (m *Memory) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

func (m *Memory) Close() error { return nil }
