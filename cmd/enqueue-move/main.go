// Command enqueue-move queues a player move command for the instance that
// drives a game, bypassing the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	cmdqueue "github.com/jwebster45206/flimo-world/internal/services/queue"
	"github.com/jwebster45206/flimo-world/pkg/queue"
)

func main() {
	redisURL := flag.String("redis", getEnv("REDIS_URL", "redis://localhost:6379"), "Redis URL")
	gameID := flag.String("game", getEnv("GAME_ID", ""), "game id")
	npcID := flag.String("npc", "", "local NPC id")
	location := flag.String("to", "", "destination location name")
	flag.Parse()

	cmd := queue.NewMove(*gameID, *npcID, *location)
	if err := cmd.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid command: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := cmdqueue.NewClient(ctx, *redisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}
	defer client.Close()

	q := cmdqueue.NewCommandQueue(client)
	if err := q.Enqueue(ctx, cmd); err != nil {
		log.Fatal("Failed to enqueue move: ", err)
	}
	fmt.Printf("Enqueued move %s: %s -> %s\n", cmd.CommandID, cmd.NPCID, cmd.Location)

	depth, err := q.Depth(ctx, *gameID)
	if err != nil {
		log.Fatal("Failed to get queue depth: ", err)
	}
	fmt.Printf("Queue depth for %s: %d\n", *gameID, depth)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
