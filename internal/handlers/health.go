package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/flimo-world/internal/services"
)

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Service    string            `json:"service"`
	Components map[string]string `json:"components"`
}

// SessionSource reports the NPC session id, "" while it is not up yet.
type SessionSource interface {
	SessionID() string
}

type HealthHandler struct {
	cache   services.HealthChecker
	session SessionSource
	logger  *slog.Logger
}

// NewHealthHandler builds the /health handler. session may be nil on
// instances that do not drive a game.
func NewHealthHandler(cache services.HealthChecker, session SessionSource, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		cache:   cache,
		session: session,
		logger:  logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string)
	overallStatus := "healthy"

	if err := h.cache.Ping(ctx); err != nil {
		h.logger.Warn("Cache health check failed", "error", err)
		components["redis"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["redis"] = "healthy"
	}

	// A missing session is normal while another instance holds the game, so
	// it is reported but does not fail the check.
	if h.session != nil {
		if h.session.SessionID() == "" {
			components["npc_session"] = "pending"
		} else {
			components["npc_session"] = "ready"
		}
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, h.logger, statusCode, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "flimo-world",
		Components: components,
	})
}
