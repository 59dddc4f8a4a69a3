package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

// ErrNoRoute is returned when the navigation backend answers success:false.
var ErrNoRoute = errors.New("navigation failed")

// Navigator is the navigation backend.
type Navigator interface {
	NavigateBetween(ctx context.Context, req npcapi.NavigateRequest) ([]world.Point, error)
	NavigateFromCoord(ctx context.Context, req npcapi.NavigateFromCoordRequest) ([]world.Point, error)
	ListLocations(ctx context.Context, worldID string) ([]world.Location, error)
}

// NavClient talks HTTP/JSON to the navigation backend.
type NavClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Navigator = (*NavClient)(nil)

func NewNavClient(baseURL string, timeout time.Duration, logger *slog.Logger) *NavClient {
	return &NavClient{
		baseURL:    baseURL,
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

func (c *NavClient) NavigateBetween(ctx context.Context, req npcapi.NavigateRequest) ([]world.Point, error) {
	path, err := c.navigate(ctx, joinURL(c.baseURL, "navigate", "between"), req)
	if err != nil {
		return nil, fmt.Errorf("navigate %s → %s: %w", req.FromLocation, req.ToLocation, err)
	}
	return path, nil
}

func (c *NavClient) NavigateFromCoord(ctx context.Context, req npcapi.NavigateFromCoordRequest) ([]world.Point, error) {
	path, err := c.navigate(ctx, joinURL(c.baseURL, "navigate", "from_coord"), req)
	if err != nil {
		return nil, fmt.Errorf("navigate (%.0f,%.0f) → %s: %w", req.FromX, req.FromY, req.ToLocation, err)
	}
	return path, nil
}

func (c *NavClient) navigate(ctx context.Context, u string, req any) ([]world.Point, error) {
	var resp npcapi.NavigateResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, u, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoRoute, resp.Error)
		}
		return nil, ErrNoRoute
	}
	c.logger.Debug("Path computed", "waypoints", len(resp.Path))
	return resp.Path, nil
}

// ListLocations fetches the named locations of a navigation world.
func (c *NavClient) ListLocations(ctx context.Context, worldID string) ([]world.Location, error) {
	var resp npcapi.LocationsResponse
	if err := doJSON(ctx, c.httpClient, http.MethodGet, joinURL(c.baseURL, "worlds", worldID, "locations"), nil, &resp); err != nil {
		return nil, fmt.Errorf("list locations of %s: %w", worldID, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("list locations of %s: %w", worldID, ErrNoRoute)
	}
	return resp.Locations, nil
}
