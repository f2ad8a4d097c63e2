// Package bot wires the active messaging channel, the HTTP server and the
// scheduler together and manages their lifecycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/expensebot/internal/channel"
)

// Runner is a long-running component stopped by cancelling its context.
type Runner interface {
	Run(ctx context.Context) error
}

// Bot owns the components of a running deployment.
type Bot struct {
	logger    *slog.Logger
	channel   channel.Channel
	handler   channel.Handler
	server    Runner
	scheduler *Scheduler
}

// NewBot creates the orchestrator. server may be nil when no HTTP listener is needed.
func NewBot(logger *slog.Logger, ch channel.Channel, handler channel.Handler, server Runner, scheduler *Scheduler) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		channel:   ch,
		handler:   handler,
		server:    server,
		scheduler: scheduler,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails, in which case the others are stopped too.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator", "channel", b.channel.Name())

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting channel listener", "channel", b.channel.Name())
		if err := b.channel.Run(gCtx, b.handler); err != nil {
			return fmt.Errorf("%s channel: %w", b.channel.Name(), err)
		}
		b.logger.Info("Channel listener stopped", "channel", b.channel.Name())
		return nil
	})

	if b.server != nil {
		g.Go(func() error {
			return b.server.Run(gCtx)
		})
	}

	if b.scheduler != nil {
		g.Go(func() error {
			if err := b.scheduler.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			b.logger.Info("Shutdown signal received, stopping scheduler")
			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully")
	return nil
}
