// Package driver runs one game's NPC loop inside a long-lived process: it
// takes the game lock, bootstraps the session with back-off, applies queued
// player commands and mirrors the loop's output to Redis.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/flimo-world/pkg/behavior"
	"github.com/jwebster45206/flimo-world/pkg/queue"
	"github.com/jwebster45206/flimo-world/pkg/world"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLockTTL          = 30 * time.Second
	DefaultPollTimeout      = 5 * time.Second
	DefaultBootstrapBackoff = time.Second
	DefaultMaxBackoff       = 30 * time.Second
	outboxSize              = 256
)

// CommandSource yields queued player commands for a game.
type CommandSource interface {
	BlockingDequeue(ctx context.Context, gameID string, timeout time.Duration) (*queue.Command, error)
}

// Publisher fans the loop's output out to other processes.
type Publisher interface {
	PublishSessionStarted(ctx context.Context, gameID, sessionID string, npcs int) error
	PublishNPCEvent(ctx context.Context, gameID string, e behavior.Event) error
	PublishPosition(ctx context.Context, gameID string, pos world.Position) error
}

// FeedSink keeps a copy of the event feed.
type FeedSink interface {
	Push(ctx context.Context, gameID string, e behavior.Event) error
}

// Options tune a Driver. Zero values take the defaults above.
type Options struct {
	ID               string
	GameID           string
	LockTTL          time.Duration
	PollTimeout      time.Duration
	BootstrapBackoff time.Duration
	MaxBackoff       time.Duration
}

// Deps are the collaborators of a Driver. Commands, Publisher and Feed may
// be nil.
type Deps struct {
	Orchestrator *behavior.Orchestrator
	Positions    *behavior.PositionStore
	Redis        *redis.Client
	Commands     CommandSource
	Publisher    Publisher
	Feed         FeedSink
	Logger       *slog.Logger
}

// Driver owns one game's orchestrator for the lifetime of the process.
type Driver struct {
	opts      Options
	orch      *behavior.Orchestrator
	positions *behavior.PositionStore
	lock      *GameLock
	commands  CommandSource
	publisher Publisher
	feed      FeedSink
	log       *slog.Logger

	outbox chan func(ctx context.Context)
	ready  chan struct{}
}

func New(opts Options, deps Deps) *Driver {
	if opts.ID == "" {
		opts.ID = fmt.Sprintf("driver-%s", uuid.New().String()[:8])
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.BootstrapBackoff <= 0 {
		opts.BootstrapBackoff = DefaultBootstrapBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Driver{
		opts:      opts,
		orch:      deps.Orchestrator,
		positions: deps.Positions,
		lock:      NewGameLock(deps.Redis, opts.GameID, opts.ID, opts.LockTTL),
		commands:  deps.Commands,
		publisher: deps.Publisher,
		feed:      deps.Feed,
		log:       log.With("driver_id", opts.ID, "game_id", opts.GameID),
		outbox:    make(chan func(ctx context.Context), outboxSize),
		ready:     make(chan struct{}),
	}
}

// ID returns the lock owner id of this driver.
func (d *Driver) ID() string {
	return d.opts.ID
}

// Ready is closed once the NPC session is up.
func (d *Driver) Ready() <-chan struct{} {
	return d.ready
}

// Run blocks until ctx is cancelled or the game lock is lost. It waits for
// the lock, so a second driver for the same game stays idle until the first
// one goes away.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.waitForLock(ctx); err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := d.lock.Release(releaseCtx); err != nil {
			d.log.Error("Failed to release game lock", "error", err)
		}
	}()
	d.log.Info("Game lock acquired")

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.keepLock(runCtx, cancel)
	}()
	go func() {
		defer wg.Done()
		d.drainOutbox(context.WithoutCancel(runCtx))
	}()

	d.wireOutputs()
	go func() { _ = d.orch.Run(runCtx) }()

	err := d.bootstrap(runCtx)
	if err == nil {
		close(d.ready)
		d.processCommands(runCtx)
	}

	cancel(nil)
	<-d.orch.Done()
	close(d.outbox)
	wg.Wait()

	if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	d.log.Info("Driver stopped")
	return nil
}

func (d *Driver) waitForLock(ctx context.Context) error {
	retry := d.opts.LockTTL / 3
	logged := false
	for {
		ok, err := d.lock.Acquire(ctx)
		if err != nil {
			d.log.Warn("Game lock check failed", "error", err)
		} else if ok {
			return nil
		} else if !logged {
			holder, _ := d.lock.Holder(ctx)
			d.log.Info("Game is driven elsewhere, waiting for the lock", "holder", holder)
			logged = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

var errLockLost = errors.New("game lock lost")

func (d *Driver) keepLock(ctx context.Context, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(d.opts.LockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := d.lock.Refresh(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				d.log.Warn("Failed to refresh game lock", "error", err)
				continue
			}
			if !ok {
				d.log.Error("Game lock taken over, stopping")
				cancel(errLockLost)
				return
			}
		}
	}
}

func (d *Driver) bootstrap(ctx context.Context) error {
	backoff := d.opts.BootstrapBackoff
	for attempt := 1; ; attempt++ {
		err := d.orch.Bootstrap(ctx)
		if err == nil {
			sessionID := d.orch.SessionID()
			d.log.Info("NPC session ready", "session_id", sessionID, "attempt", attempt)
			if d.publisher != nil {
				d.send(func(ctx context.Context) error {
					return d.publisher.PublishSessionStarted(ctx, d.opts.GameID, sessionID, len(d.orch.NPCs()))
				})
			}
			return nil
		}
		if errors.Is(err, behavior.ErrStopped) || ctx.Err() != nil {
			return err
		}

		d.log.Error("Bootstrap failed, retrying", "error", err, "attempt", attempt, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, d.opts.MaxBackoff)
	}
}

func (d *Driver) processCommands(ctx context.Context) {
	if d.commands == nil {
		<-ctx.Done()
		return
	}
	for ctx.Err() == nil {
		cmd, err := d.commands.BlockingDequeue(ctx, d.opts.GameID, d.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error("Error reading command queue", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if cmd != nil {
			d.apply(cmd)
		}
	}
}

func (d *Driver) apply(cmd *queue.Command) {
	log := d.log.With("command_id", cmd.CommandID, "npc_id", cmd.NPCID)
	switch cmd.Type {
	case queue.CommandMove:
		if err := d.orch.RequestMove(cmd.NPCID, cmd.Location); err != nil {
			log.Info("Move command rejected", "location", cmd.Location, "error", err)
			return
		}
		log.Info("Move command applied", "location", cmd.Location, "queued_for", time.Since(cmd.EnqueuedAt))
	default:
		log.Warn("Unknown command type", "type", cmd.Type)
	}
}

// wireOutputs hooks the feed and position store. Hooks run on the loop, so
// they only hand work to the outbox.
func (d *Driver) wireOutputs() {
	d.orch.Feed().Subscribe(func(e behavior.Event) {
		if d.feed != nil {
			d.send(func(ctx context.Context) error { return d.feed.Push(ctx, d.opts.GameID, e) })
		}
		if d.publisher != nil {
			d.send(func(ctx context.Context) error { return d.publisher.PublishNPCEvent(ctx, d.opts.GameID, e) })
		}
	})
	if d.positions != nil && d.publisher != nil {
		d.positions.OnChange(func(pos world.Position) {
			d.send(func(ctx context.Context) error { return d.publisher.PublishPosition(ctx, d.opts.GameID, pos) })
		})
	}
}

// send queues a best-effort publish. A full outbox drops the message.
func (d *Driver) send(fn func(ctx context.Context) error) {
	job := func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			d.log.Warn("Failed to mirror NPC output", "error", err)
		}
	}
	select {
	case d.outbox <- job:
	default:
		d.log.Warn("Outbox full, dropping NPC output")
	}
}

func (d *Driver) drainOutbox(ctx context.Context) {
	for job := range d.outbox {
		callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		job(callCtx)
		cancel()
	}
}
