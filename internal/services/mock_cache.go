package services

import (
	"context"
	"sync"
	"time"
)

// MockCache is an in-memory Cache for tests. Func fields override the
// default behaviour of each call.
type MockCache struct {
	mu     sync.Mutex
	values map[string]string

	PingFunc func(ctx context.Context) error
	GetFunc  func(ctx context.Context, key string) (string, error)
	SetFunc  func(ctx context.Context, key string, value string, expiration time.Duration) error

	PingCalls int
	GetCalls  []string
	SetCalls  []SetCall
	DelCalls  [][]string
}

type SetCall struct {
	Key        string
	Value      string
	Expiration time.Duration
}

var _ Cache = (*MockCache)(nil)

func NewMockCache() *MockCache {
	return &MockCache{values: make(map[string]string)}
}

func (m *MockCache) Ping(ctx context.Context) error {
	m.mu.Lock()
	m.PingCalls++
	fn := m.PingFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	m.mu.Lock()
	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: value, Expiration: expiration})
	fn := m.SetFunc
	if fn == nil {
		m.values[key] = value
	}
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, key, value, expiration)
	}
	return nil
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	m.GetCalls = append(m.GetCalls, key)
	fn := m.GetFunc
	v := m.values[key]
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, key)
	}
	return v, nil
}

func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DelCalls = append(m.DelCalls, keys)
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *MockCache) Close() error { return nil }

func (m *MockCache) WaitForConnection(ctx context.Context) error {
	return m.Ping(ctx)
}

// SetPingError makes every Ping fail with err.
func (m *MockCache) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PingFunc = func(ctx context.Context) error { return err }
}
