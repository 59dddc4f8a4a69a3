package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/queue"
	"github.com/redis/go-redis/v9"
)

// CommandQueue holds player commands per game until the driving process
// picks them up. Commands for one game are delivered in order.
type CommandQueue struct {
	client *Client
}

func NewCommandQueue(client *Client) *CommandQueue {
	return &CommandQueue{client: client}
}

func queueKey(gameID string) string {
	return fmt.Sprintf("npc-commands:%s", gameID)
}

// Enqueue appends a command to its game's queue.
func (q *CommandQueue) Enqueue(ctx context.Context, cmd *queue.Command) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}
	data, err := cmd.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize command: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, queueKey(cmd.GameID), data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue command: %w", err)
	}
	q.client.logger.Debug("Command enqueued", "game_id", cmd.GameID, "command_id", cmd.CommandID, "type", cmd.Type)
	return nil
}

// BlockingDequeue waits up to timeout for the next command of a game. It
// returns nil, nil when the wait times out.
func (q *CommandQueue) BlockingDequeue(ctx context.Context, gameID string, timeout time.Duration) (*queue.Command, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, queueKey(gameID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue command: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	cmd, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	return cmd, nil
}

// Depth returns the number of commands waiting for a game.
func (q *CommandQueue) Depth(ctx context.Context, gameID string) (int, error) {
	count, err := q.client.rdb.LLen(ctx, queueKey(gameID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}

// Clear drops every waiting command for a game.
func (q *CommandQueue) Clear(ctx context.Context, gameID string) error {
	if err := q.client.rdb.Del(ctx, queueKey(gameID)).Err(); err != nil {
		return fmt.Errorf("failed to clear command queue: %w", err)
	}
	return nil
}
