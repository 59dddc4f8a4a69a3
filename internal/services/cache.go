package services

import (
	"context"
	"time"
)

// HealthChecker is anything /health can ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Cache is a small key/value store with expiry.
type Cache interface {
	HealthChecker

	// Set stores a value; zero expiration keeps it forever.
	Set(ctx context.Context, key string, value string, expiration time.Duration) error

	// Get returns "" with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	Del(ctx context.Context, keys ...string) error
	Close() error

	// WaitForConnection blocks until the cache answers or ctx ends.
	WaitForConnection(ctx context.Context) error
}
