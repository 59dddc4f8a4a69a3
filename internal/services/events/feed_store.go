package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/flimo-world/pkg/behavior"
	"github.com/redis/go-redis/v9"
)

// FeedStore mirrors a game's event feed into a capped Redis list so API
// instances that do not drive the game can still serve it. Newest first.
type FeedStore struct {
	rdb    *redis.Client
	cap    int
	logger *slog.Logger
}

func NewFeedStore(rdb *redis.Client, capacity int, logger *slog.Logger) *FeedStore {
	if capacity <= 0 {
		capacity = behavior.DefaultFeedCap
	}
	return &FeedStore{rdb: rdb, cap: capacity, logger: logger}
}

func feedKey(gameID string) string {
	return fmt.Sprintf("game-feed:%s", gameID)
}

// Push prepends e and trims the list to capacity.
func (s *FeedStore) Push(ctx context.Context, gameID string, e behavior.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal feed event: %w", err)
	}

	key := feedKey(gameID)
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(s.cap-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push feed event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (s *FeedStore) Recent(ctx context.Context, gameID string, limit int) ([]behavior.Event, error) {
	end := int64(limit - 1)
	if limit <= 0 {
		end = -1
	}
	raw, err := s.rdb.LRange(ctx, feedKey(gameID), 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	out := make([]behavior.Event, 0, len(raw))
	for _, r := range raw {
		var e behavior.Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			s.logger.Warn("Skipping malformed feed entry", "game_id", gameID, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Clear drops a game's feed.
func (s *FeedStore) Clear(ctx context.Context, gameID string) error {
	if err := s.rdb.Del(ctx, feedKey(gameID)).Err(); err != nil {
		return fmt.Errorf("failed to clear feed: %w", err)
	}
	return nil
}
