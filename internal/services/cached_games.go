package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/game"
)

const (
	gameKeyPrefix  = "game:"
	gameListKey    = "games:list"
	DefaultGameTTL = 10 * time.Minute
	defaultListTTL = 30 * time.Second
)

// CachedGameStore keeps game documents and the listing in a Cache. Cache
// failures fall through to the backend and are only logged.
type CachedGameStore struct {
	GameStore
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

var _ GameStore = (*CachedGameStore)(nil)

func NewCachedGameStore(store GameStore, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedGameStore {
	if ttl <= 0 {
		ttl = DefaultGameTTL
	}
	return &CachedGameStore{GameStore: store, cache: cache, ttl: ttl, logger: logger}
}

func (s *CachedGameStore) GetGame(ctx context.Context, id string) (*game.Document, error) {
	key := gameKeyPrefix + id
	var doc game.Document
	if s.load(ctx, key, &doc) {
		return &doc, nil
	}

	fresh, err := s.GameStore.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, fresh, s.ttl)
	return fresh, nil
}

func (s *CachedGameStore) ListGames(ctx context.Context) ([]game.Summary, error) {
	var games []game.Summary
	if s.load(ctx, gameListKey, &games) {
		return games, nil
	}

	games, err := s.GameStore.ListGames(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, gameListKey, games, defaultListTTL)
	return games, nil
}

func (s *CachedGameStore) PublishGame(ctx context.Context, doc *game.Document, images map[string][]byte) (string, error) {
	id, err := s.GameStore.PublishGame(ctx, doc, images)
	if err != nil {
		return "", err
	}
	if err := s.cache.Del(ctx, gameListKey, gameKeyPrefix+id); err != nil {
		s.logger.Warn("Failed to invalidate game cache", "game_id", id, "error", err)
	}
	return id, nil
}

func (s *CachedGameStore) load(ctx context.Context, key string, out any) bool {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Game cache read failed", "key", key, "error", err)
		return false
	}
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("Dropping corrupt game cache entry", "key", key, "error", err)
		_ = s.cache.Del(ctx, key)
		return false
	}
	return true
}

func (s *CachedGameStore) store(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("Failed to encode game cache entry", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), ttl); err != nil {
		s.logger.Warn("Game cache write failed", "key", key, "error", err)
	}
}
