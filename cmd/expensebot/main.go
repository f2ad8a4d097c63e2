// Package main contains the entrypoint for the expense-tracking bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/edgard/expensebot/internal/assistant"
	"github.com/edgard/expensebot/internal/bot"
	"github.com/edgard/expensebot/internal/bot/tasks"
	"github.com/edgard/expensebot/internal/channel"
	"github.com/edgard/expensebot/internal/channel/discord"
	"github.com/edgard/expensebot/internal/channel/sms"
	"github.com/edgard/expensebot/internal/channel/telegram"
	"github.com/edgard/expensebot/internal/config"
	"github.com/edgard/expensebot/internal/database"
	"github.com/edgard/expensebot/internal/events"
	"github.com/edgard/expensebot/internal/intent"
	"github.com/edgard/expensebot/internal/ledger"
	"github.com/edgard/expensebot/internal/llm"
	"github.com/edgard/expensebot/internal/localtime"
	"github.com/edgard/expensebot/internal/logger"
	"github.com/edgard/expensebot/internal/reply"
	"github.com/edgard/expensebot/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	zone, err := localtime.NewZone(cfg.Locale.Timezone)
	if err != nil {
		log.Error("Invalid timezone", "timezone", cfg.Locale.Timezone, "error", err)
		return 1
	}

	dialect := database.Dialect(cfg.Database.Driver)
	db, err := database.NewDB(dialect, cfg.Database.DSN, database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Error("Failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, dialect, log)

	gen, err := llm.New(ctx, cfg.LLM, log)
	if err != nil {
		log.Error("Failed to initialize model client", "provider", cfg.LLM.Provider, "error", err)
		return 1
	}

	publisher, err := events.New(cfg.Events, log)
	if err != nil {
		log.Error("Failed to initialize event publisher", "error", err)
		return 1
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("Error closing event publisher", "error", err)
		}
	}()

	classifier := intent.NewClassifier(gen, zone, intent.Options{
		Temperature:     cfg.LLM.ClassifierTemperature,
		MaxOutputTokens: cfg.LLM.ClassifierMaxTokens,
		Timeout:         cfg.LLM.Timeout,
		FallbackMessage: cfg.Messages.NotUnderstood,
		DefaultReply:    cfg.Messages.DefaultReply,
	}, log)
	composer := reply.NewComposer(gen, zone, reply.Options{
		CurrencySymbol:  cfg.Locale.CurrencySymbol,
		Temperature:     cfg.LLM.FlavorTemperature,
		MaxOutputTokens: cfg.LLM.FlavorMaxTokens,
		Timeout:         cfg.LLM.Timeout,
	}, log)
	book := ledger.New(store, zone, publisher, cfg.Database.OpTimeout, log)
	handler := assistant.New(classifier, book, composer, zone, cfg.Messages, log)

	httpServer := server.New(cfg.HTTP, store, log)

	ch, err := newChannel(cfg, httpServer, log)
	if err != nil {
		log.Error("Failed to create channel", "platform", cfg.Platform, "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, cfg.Scheduler, zone.Location(), tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Store:  store,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, ch, handler, httpServer, sched)

	log.Info("Starting bot...", "platform", cfg.Platform)
	runErr := app.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}

// newChannel builds the adapter for the configured platform. The SMS webhook
// is mounted on srv.
func newChannel(cfg *config.Config, srv *server.Server, log *slog.Logger) (channel.Channel, error) {
	switch cfg.Platform {
	case "telegram":
		return telegram.New(cfg.Telegram.Token, cfg.Messages, log)
	case "discord":
		return discord.New(cfg.Discord.Token, log)
	case "sms":
		ch, err := sms.New(cfg.SMS, log)
		if err != nil {
			return nil, err
		}
		srv.Handle(sms.WebhookPath, ch)
		return ch, nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
}
