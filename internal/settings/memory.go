package settings

import (
	"context"
	"strconv"
	"sync"

	logx "shellglance/pkg/logx"
)

// Memory is an in-process Store. It is what tests inject into the coordinator.
type Memory struct {
	hub

	mu     sync.RWMutex
	vals   values
	closed bool
}

func NewMemory(log logx.Logger) *Memory {
	return &Memory{hub: hub{log: log}, vals: values{}}
}

func (m *Memory) GetString(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vals.getString(key)
}

func (m *Memory) GetInt(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vals.getInt(key)
}

func (m *Memory) SetString(key, value string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	old, had := m.vals[key]
	m.vals[key] = value
	m.mu.Unlock()

	if !had || old != value {
		m.emit(key)
	}
	return nil
}

func (m *Memory) SetInt(key string, value int) error {
	return m.SetString(key, strconv.Itoa(value))
}

func (m *Memory) Watch(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
