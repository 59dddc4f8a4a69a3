package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Only the owner may extend or drop a lock.
var (
	refreshScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
)

func lockKey(gameID string) string {
	return fmt.Sprintf("game-lock:%s", gameID)
}

// GameLock makes sure one process at a time drives a game's NPCs.
type GameLock struct {
	rdb   *redis.Client
	key   string
	owner string
	ttl   time.Duration
}

func NewGameLock(rdb *redis.Client, gameID, owner string, ttl time.Duration) *GameLock {
	return &GameLock{rdb: rdb, key: lockKey(gameID), owner: owner, ttl: ttl}
}

// Acquire reports whether the lock was taken. It does not wait.
func (l *GameLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire game lock: %w", err)
	}
	return ok, nil
}

// Refresh extends the lock. False means it is no longer ours.
func (l *GameLock) Refresh(ctx context.Context) (bool, error) {
	n, err := refreshScript.Run(ctx, l.rdb, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to refresh game lock: %w", err)
	}
	return n == 1, nil
}

func (l *GameLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("failed to release game lock: %w", err)
	}
	return nil
}

// Holder returns the current owner, or "" when the lock is free.
func (l *GameLock) Holder(ctx context.Context) (string, error) {
	owner, err := l.rdb.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return owner, err
}
