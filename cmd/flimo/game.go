package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwebster45206/flimo-world/internal/config"
	"github.com/jwebster45206/flimo-world/pkg/game"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

type gameGetter interface {
	GetGame(ctx context.Context, id string) (*game.Document, error)
}

type locationLister interface {
	ListLocations(ctx context.Context, worldID string) ([]world.Location, error)
}

// loadGame reads the configured game, preferring a local file over the
// storage backend.
func loadGame(ctx context.Context, cfg *config.Config, store gameGetter) (*game.Document, error) {
	var (
		doc *game.Document
		err error
	)
	switch {
	case cfg.GameFile != "":
		doc, err = game.LoadFile(cfg.GameFile)
	case cfg.GameID != "":
		doc, err = store.GetGame(ctx, cfg.GameID)
	default:
		return nil, errors.New("GAME_ID or GAME_FILE is required")
	}
	if err != nil {
		return nil, err
	}

	if cfg.NavWorldID != "" {
		doc.NavWorldID = cfg.NavWorldID
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// gameKey names the game in Redis keys and channels.
func gameKey(cfg *config.Config, doc *game.Document) string {
	switch {
	case cfg.GameID != "":
		return cfg.GameID
	case doc.ID != "":
		return doc.ID
	default:
		return world.ExternalID(doc.Title)
	}
}

// resolveLocations returns the document's locations, asking the navigation
// backend when the document has none.
func resolveLocations(ctx context.Context, doc *game.Document, nav locationLister) ([]world.Location, error) {
	if len(doc.Locations) > 0 {
		return doc.Locations, nil
	}
	locations, err := nav.ListLocations(ctx, doc.NavWorldID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations for world %q: %w", doc.NavWorldID, err)
	}
	if len(locations) == 0 {
		return nil, fmt.Errorf("world %q has no locations", doc.NavWorldID)
	}
	return locations, nil
}
