package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/flimo-world/internal/config"
	"github.com/jwebster45206/flimo-world/internal/driver"
	"github.com/jwebster45206/flimo-world/internal/handlers"
	"github.com/jwebster45206/flimo-world/internal/logger"
	"github.com/jwebster45206/flimo-world/internal/middleware"
	"github.com/jwebster45206/flimo-world/internal/services"
	"github.com/jwebster45206/flimo-world/internal/services/events"
	cmdqueue "github.com/jwebster45206/flimo-world/internal/services/queue"
	"github.com/jwebster45206/flimo-world/pkg/behavior"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Flimo World NPC driver",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"game_id", cfg.GameID,
		"game_file", cfg.GameFile)

	redisService := services.NewRedisService(cfg.RedisURL, log)
	startCtx, startCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startCancel()

	if err := redisService.WaitForConnection(startCtx); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established successfully")
	rdb := redisService.GetClient()

	npcBackend := services.NewNPCClient(cfg.NPCAPIURL, cfg.HTTPTimeout, log)
	nav := services.NewNavClient(cfg.NavAPIURL, cfg.HTTPTimeout, log)
	games := services.NewCachedGameStore(
		services.NewGameStorageClient(cfg.StorageAPIURL, cfg.HTTPTimeout, log),
		redisService, 0, log)

	doc, err := loadGame(startCtx, cfg, games)
	if err != nil {
		log.Error("Failed to load game", "error", err)
		os.Exit(1)
	}
	locations, err := resolveLocations(startCtx, doc, nav)
	if err != nil {
		log.Error("Failed to load locations", "error", err)
		os.Exit(1)
	}
	gameID := gameKey(cfg, doc)
	log.Info("Game loaded",
		"game_id", gameID,
		"title", doc.Title,
		"npcs", len(doc.NPCs),
		"locations", len(locations),
		"nav_world_id", doc.NavWorldID)

	positions := behavior.NewPositionStore()
	orch := behavior.New(behavior.Config{
		WorldID:         doc.NavWorldID,
		WorldSetting:    doc.WorldSetting,
		ThinkBaseDelay:  cfg.ThinkBaseDelay,
		ThinkJitter:     cfg.ThinkJitter,
		ThinkErrorDelay: cfg.ThinkErrorDelay,
		StepInterval:    cfg.StepInterval,
		FeedCap:         cfg.FeedCap,
	}, doc.Refs(), world.NewLocationIndex(locations), behavior.Deps{
		Backend:   npcBackend,
		Navigator: nav,
		Positions: positions,
		Logger:    log.With("game_id", gameID),
	})

	commands := cmdqueue.NewCommandQueue(cmdqueue.NewClientFromRedis(rdb, log))
	feedStore := events.NewFeedStore(rdb, cfg.FeedCap, log)

	drv := driver.New(driver.Options{
		ID:     cfg.DriverID,
		GameID: gameID,
	}, driver.Deps{
		Orchestrator: orch,
		Positions:    positions,
		Redis:        rdb,
		Commands:     commands,
		Publisher:    events.NewBroadcaster(rdb, log),
		Feed:         feedStore,
		Logger:       log,
	})

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(redisService, orch, log))

	npcHandler := handlers.NewNPCHandler(gameID, orch, commands, npcBackend, log)
	mux.Handle("/v1/npcs", npcHandler)
	mux.Handle("/v1/npcs/", npcHandler)

	mux.Handle("/v1/events", handlers.NewFeedHandler(gameID, feedStore, orch.Feed(), log))
	mux.Handle("/v1/events/stream", handlers.NewEventsHandler(rdb, gameID, log))
	mux.Handle("/v1/ws", handlers.NewFeedSocketHandler(rdb, gameID, orch, log))

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE and websocket endpoints stay open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driverErr := make(chan error, 1)
	go func() {
		driverErr <- drv.Run(runCtx)
	}()

	exitCode := 0
	select {
	case <-runCtx.Done():
		log.Info("Server is shutting down...")
		if err := <-driverErr; err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Driver stopped with error", "error", err)
		}
	case err := <-driverErr:
		// Losing the game lock ends this process so a supervisor can restart it.
		log.Error("Driver stopped", "error", err)
		exitCode = 1
	}
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		exitCode = 1
	}

	if err := redisService.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	log.Info("Server exited")
	os.Exit(exitCode)
}
