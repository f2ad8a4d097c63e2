// Package telegram connects the conversation pipeline to Telegram using
// long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/expensebot/internal/channel"
	"github.com/edgard/expensebot/internal/config"
	"github.com/edgard/expensebot/internal/logger"
)

// maxMessageLength is Telegram's limit for one text message, in UTF-16 code units.
const maxMessageLength = 4096

// Channel is the Telegram adapter.
type Channel struct {
	bot *bot.Bot
	log *slog.Logger

	mu      sync.RWMutex
	handler channel.Handler
}

// New creates the Telegram bot client and registers the /start and /help
// commands. Any other text message is dispatched to the Handler given to Run.
func New(token string, messages config.MessagesConfig, log *slog.Logger, opts ...bot.Option) (*Channel, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Channel{log: log.With("component", "telegram_channel")}

	opts = append([]bot.Option{
		bot.WithMiddlewares(logger.Middleware(log)),
		bot.WithDefaultHandler(c.handleUpdate),
	}, opts...)

	b, err := NewTelegramBot(token, log, opts...)
	if err != nil {
		return nil, err
	}
	c.bot = b

	deps := HandlerDeps{Logger: log, Messages: messages}
	if err := RegisterHandlers(b, log, RegisterAllCommands(deps)); err != nil {
		return nil, err
	}
	return c, nil
}

// NewTelegramBot creates a go-telegram/bot client.
func NewTelegramBot(token string, log *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created", "token_prefix", tokenPrefix(token))
	return b, nil
}

func tokenPrefix(token string) string {
	if i := strings.IndexByte(token, ':'); i > 0 {
		return token[:i] + ":..."
	}
	return "..."
}

func (c *Channel) Name() string { return "telegram" }

// Run polls for updates until ctx is cancelled.
func (c *Channel) Run(ctx context.Context, h channel.Handler) error {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()

	c.log.Info("Starting Telegram polling")
	c.bot.Start(ctx)
	c.log.Info("Telegram polling stopped")

	if ctx.Err() == nil {
		return fmt.Errorf("telegram listener stopped unexpectedly")
	}
	return nil
}

// SendText sends text to a chat, split into as many messages as needed.
func (c *Channel) SendText(ctx context.Context, conversationID, text string) error {
	var chatID any = conversationID
	if id, err := strconv.ParseInt(conversationID, 10, 64); err == nil {
		chatID = id
	}

	for _, chunk := range channel.SplitTextFunc(text, maxMessageLength, channel.UTF16Width) {
		if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: chunk}); err != nil {
			return fmt.Errorf("send telegram message to %s: %w", conversationID, err)
		}
	}
	return nil
}

func (c *Channel) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg, ok := toInbound(update)
	if !ok {
		c.log.DebugContext(ctx, "Ignoring update without text", "update_id", update.ID)
		return
	}

	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h == nil {
		c.log.WarnContext(ctx, "Message received before handler was set", "update_id", update.ID)
		return
	}

	h.Handle(ctx, c, msg)
}

func toInbound(update *models.Update) (channel.InboundMessage, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Text == "" {
		return channel.InboundMessage{}, false
	}
	return channel.InboundMessage{
		PlatformUserID: strconv.FormatInt(m.From.ID, 10),
		DisplayName:    displayName(m.From),
		Text:           m.Text,
		ConversationID: strconv.FormatInt(m.Chat.ID, 10),
	}, true
}

func displayName(u *models.User) string {
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
