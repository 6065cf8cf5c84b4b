package usecase

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"changas/internal/infrastructure/metrics"
	"changas/pkg/errors"
	"changas/pkg/logger"
)

type DispatcherConfig struct {
	Shards       int
	Buffer       int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// ModerationDispatcher fans message events out to a fixed set of shards.
// Events of one chat always land on the same shard and are processed in
// arrival order; different chats proceed concurrently.
type ModerationDispatcher struct {
	processor MessageProcessor
	shards    []chan MessageEvent
	cfg       DispatcherConfig
}

func NewModerationDispatcher(processor MessageProcessor, cfg DispatcherConfig) *ModerationDispatcher {
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	shards := make([]chan MessageEvent, cfg.Shards)
	for i := range shards {
		shards[i] = make(chan MessageEvent, cfg.Buffer)
	}

	return &ModerationDispatcher{
		processor: processor,
		shards:    shards,
		cfg:       cfg,
	}
}

func (d *ModerationDispatcher) shardFor(chatID string) int {
	return int(xxhash.Sum64String(chatID) % uint64(len(d.shards)))
}

// Submit queues ev on its chat's shard, blocking while the shard is full.
func (d *ModerationDispatcher) Submit(ctx context.Context, ev MessageEvent) error {
	if ev.ChatID == "" || ev.MessageID == "" {
		return errors.Validation("chat id and message id are required")
	}

	shard := d.shardFor(ev.ChatID)
	select {
	case d.shards[shard] <- ev:
		metrics.SetDispatchQueue(shard, len(d.shards[shard]))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the shards until ctx is cancelled. Events still queued at that
// point are dropped; the listener replays recent messages on the next start.
func (d *ModerationDispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := range d.shards {
		shard := i
		g.Go(func() error {
			for {
				select {
				case ev := <-d.shards[shard]:
					metrics.SetDispatchQueue(shard, len(d.shards[shard]))
					d.handle(ctx, ev)
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	return g.Wait()
}

func (d *ModerationDispatcher) handle(ctx context.Context, ev MessageEvent) {
	// An event already taken off the queue is finished even during shutdown.
	pctx := context.WithoutCancel(ctx)
	log := logger.With("chat_id", ev.ChatID, "message_id", ev.MessageID)

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		_, err := d.processor.Process(pctx, ev)
		if err == nil {
			return
		}

		if attempt == d.cfg.MaxAttempts {
			log.Errorw("dropping moderation event", "attempts", attempt, "error", err)
			return
		}

		log.Warnw("moderation attempt failed", "attempt", attempt, "error", err)
		select {
		case <-time.After(d.cfg.RetryBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return
		}
	}
}
