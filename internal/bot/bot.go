package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/thdev-org/marks-daybook/internal/telegram"
	"github.com/thdev-org/marks-daybook/pkg/config"
)

// Bot drives the long-poll loop: it fetches updates and fans them out to the
// router, bounded by a worker semaphore.
type Bot struct {
	client      *telegram.Client
	router      *Router
	pollTimeout time.Duration
	workers     int
	logger      *zap.Logger
}

// New constructs the bot around a configured client and router.
func New(client *telegram.Client, router *Router, cfg config.TelegramConfig, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Bot{
		client:      client,
		router:      router,
		pollTimeout: cfg.PollTimeout,
		workers:     workers,
		logger:      logger,
	}
}

// Run polls for updates until the context is cancelled. Each update is
// handled on its own goroutine; the semaphore caps how many run at once.
// Session safety does not depend on the fan-out: the machine locks per
// identity.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.client.GetMe(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("bot started", zap.String("username", me.Username), zap.Int64("bot_id", me.ID))

	sem := make(chan struct{}, b.workers)
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Error("failed to fetch updates", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case sem <- struct{}{}:
			}
			go func(u telegram.Update) {
				defer func() { <-sem }()
				b.router.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
