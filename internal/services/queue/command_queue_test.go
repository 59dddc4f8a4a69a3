package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/flimo-world/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	client, err := NewClient(context.Background(), "redis://"+mr.Addr(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestCommandQueue_FIFOPerGame(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewCommandQueue(client)
	ctx := context.Background()

	first := queue.NewMove("dust-town", "lila", "Saloon")
	second := queue.NewMove("dust-town", "harlan", "Jail")
	other := queue.NewMove("gold-creek", "mo", "Mine")
	for _, c := range []*queue.Command{first, second, other} {
		require.NoError(t, q.Enqueue(ctx, c))
	}

	depth, err := q.Depth(ctx, "dust-town")
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	got, err := q.BlockingDequeue(ctx, "dust-town", time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.CommandID, got.CommandID)

	got, err = q.BlockingDequeue(ctx, "dust-town", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "harlan", got.NPCID)

	depth, err = q.Depth(ctx, "gold-creek")
	require.NoError(t, err)
	assert.Equal(t, 1, depth, "other games are untouched")

	require.NoError(t, q.Clear(ctx, "gold-creek"))
	depth, err = q.Depth(ctx, "gold-creek")
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestCommandQueue_RejectsInvalid(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewCommandQueue(client)

	err := q.Enqueue(context.Background(), &queue.Command{Type: queue.CommandMove, GameID: "dust-town"})
	assert.Error(t, err)
}

func TestCommandQueue_MalformedEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	q := NewCommandQueue(client)

	_, err := mr.Push("npc-commands:dust-town", "not json")
	require.NoError(t, err)

	_, err = q.BlockingDequeue(context.Background(), "dust-town", time.Second)
	assert.ErrorContains(t, err, "failed to parse command")
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "::nope", slog.Default())
	assert.Error(t, err)
}
