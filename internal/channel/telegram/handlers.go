package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/expensebot/internal/config"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Messages config.MessagesConfig
}

// RegisteredHandler is a command handler with its match rules and middleware.
type RegisteredHandler struct {
	HandlerType bot.HandlerType
	Pattern     string
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
	MatchType   bot.MatchType
}

// RegisterAllCommands returns the bot's slash commands keyed by command name.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: bot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewTextReplyHandler(deps, "start", deps.Messages.Welcome),
		Middleware:  []bot.Middleware{RequireSender(deps.Logger)},
		MatchType:   bot.MatchTypeCommandStartOnly,
	}
	handlers["/help"] = RegisteredHandler{
		HandlerType: bot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewTextReplyHandler(deps, "help", deps.Messages.Help),
		Middleware:  []bot.Middleware{RequireSender(deps.Logger)},
		MatchType:   bot.MatchTypeCommandStartOnly,
	}

	return handlers
}

// RequireSender drops updates that carry no message or no sender, so the
// wrapped handler can rely on both.
func RequireSender(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				log.WarnContext(ctx, "Dropping command update without message or sender", "update_id", update.ID)
				return
			}
			next(ctx, b, update)
		}
	}
}

// applyMiddleware wraps handler so that the first middleware is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers every handler with b, applying its middleware.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registered map[string]RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	log := logger.With("component", "handler_registry")

	for name, h := range registered {
		if h.Handler == nil {
			log.Warn("Skipping registration for nil handler", "command", name)
			continue
		}
		b.RegisterHandler(h.HandlerType, h.Pattern, h.MatchType, applyMiddleware(h.Handler, h.Middleware))
		log.Debug("Registered handler", "command", name, "middleware_count", len(h.Middleware))
	}

	log.Info("Registered Telegram handlers", "count", len(registered))
	return nil
}

// NewTextReplyHandler returns a handler that answers a command with fixed text.
// It expects RequireSender in front of it.
func NewTextReplyHandler(deps HandlerDeps, name, text string) bot.HandlerFunc {
	return textReplyHandler{deps: deps, name: name, text: text}.Handle
}

type textReplyHandler struct {
	deps HandlerDeps
	name string
	text string
}

func (h textReplyHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", h.name)

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling command", "chat_id", chatID, "user_id", update.Message.From.ID)

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.text}); err != nil {
		log.ErrorContext(ctx, "Failed to send command reply", "error", err, "chat_id", chatID)
	}
}
