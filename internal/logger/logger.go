// Package logger provides structured logging built on log/slog, plus adapters
// for the Telegram client middleware chain and the gocron scheduler.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewLogger creates a new slog Logger writing to stdout with the specified
// level and format, and installs it as the default logger.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	logger := New(os.Stdout, levelStr, jsonOutput)
	slog.SetDefault(logger)
	return logger
}

// New creates a logger writing to w without touching the default logger.
func New(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(levelStr)}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything. Useful as a nil substitute.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Middleware creates a logging middleware for the Telegram bot.
// It logs each incoming message update and how long handling took.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()
			logEntry := log.With("update_id", update.ID)

			if msg := update.Message; msg != nil {
				logEntry = logEntry.With(
					"update_type", "message",
					"message_id", msg.ID,
					"chat_id", msg.Chat.ID,
					"text_preview", truncateString(msg.Text, 50),
				)
				if msg.From != nil {
					logEntry = logEntry.With("user_id", msg.From.ID)
				}
			} else {
				logEntry = logEntry.With("update_type", "other")
			}

			logEntry.DebugContext(ctx, "Processing update")
			next(ctx, b, update)
			logEntry.InfoContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// gocronLogger forwards gocron's internal logging to slog.
type gocronLogger struct {
	log *slog.Logger
}

// Gocron adapts log to the gocron.Logger interface.
func Gocron(log *slog.Logger) gocron.Logger {
	return gocronLogger{log: log}
}

func (l gocronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, args...) }
func (l gocronLogger) Info(msg string, args ...any)  { l.log.Info(msg, args...) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, args...) }
func (l gocronLogger) Error(msg string, args ...any) { l.log.Error(msg, args...) }
