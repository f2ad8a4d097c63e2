// Package discord connects the conversation pipeline to a Discord bot over
// the gateway websocket.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/expensebot/internal/channel"
)

const (
	maxMessageLength = 2000
	presenceText     = "expense tracking"
)

// messageSender is the part of *discordgo.Session used to reply.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Channel is the Discord adapter. It answers direct messages and guild
// messages that mention the bot.
type Channel struct {
	session *discordgo.Session
	sender  messageSender
	log     *slog.Logger

	mu      sync.RWMutex
	selfID  string
	handler channel.Handler
	ctx     context.Context
}

// New creates a Discord session for a bot token. The connection is opened by Run.
func New(token string, log *slog.Logger) (*Channel, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token cannot be empty")
	}
	if log == nil {
		log = slog.Default()
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	c := &Channel{
		session: s,
		sender:  s,
		log:     log.With("component", "discord_channel"),
	}
	s.AddHandler(c.onReady)
	s.AddHandler(c.onMessageCreate)
	return c, nil
}

func (c *Channel) Name() string { return "discord" }

// Run opens the gateway connection and blocks until ctx is cancelled.
func (c *Channel) Run(ctx context.Context, h channel.Handler) error {
	c.mu.Lock()
	c.handler = h
	c.ctx = ctx
	c.mu.Unlock()

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	c.log.Info("Discord gateway connected")

	<-ctx.Done()

	if err := c.session.Close(); err != nil {
		c.log.Warn("Error closing discord session", "error", err)
	}
	c.log.Info("Discord gateway closed")
	return nil
}

// SendText posts text to a channel, split to Discord's message size.
func (c *Channel) SendText(ctx context.Context, conversationID, text string) error {
	for _, chunk := range channel.SplitText(text, maxMessageLength) {
		if _, err := c.sender.ChannelMessageSend(conversationID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send discord message to %s: %w", conversationID, err)
		}
	}
	return nil
}

func (c *Channel) onReady(s *discordgo.Session, r *discordgo.Ready) {
	c.mu.Lock()
	c.selfID = r.User.ID
	c.mu.Unlock()

	c.log.Info("Discord bot ready", "user", r.User.Username, "guilds", len(r.Guilds))
	if err := s.UpdateWatchStatus(0, presenceText); err != nil {
		c.log.Warn("Failed to set discord presence", "error", err)
	}
}

func (c *Channel) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	c.mu.RLock()
	selfID, h, ctx := c.selfID, c.handler, c.ctx
	c.mu.RUnlock()

	if h == nil || ctx == nil {
		return
	}

	msg, ok := toInbound(m, selfID)
	if !ok {
		return
	}
	h.Handle(ctx, c, msg)
}

// toInbound converts a gateway message. Messages from bots, and guild
// messages that do not mention the bot, are ignored.
func toInbound(m *discordgo.MessageCreate, selfID string) (channel.InboundMessage, bool) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return channel.InboundMessage{}, false
	}

	text := m.Content
	if m.GuildID != "" {
		if !mentions(m.Mentions, selfID) {
			return channel.InboundMessage{}, false
		}
		text = strings.NewReplacer("<@"+selfID+">", "", "<@!"+selfID+">", "").Replace(text)
	}

	name := m.Author.GlobalName
	if name == "" {
		name = m.Author.Username
	}

	return channel.InboundMessage{
		PlatformUserID: m.Author.ID,
		DisplayName:    name,
		Text:           strings.TrimSpace(text),
		ConversationID: m.ChannelID,
	}, true
}

func mentions(users []*discordgo.User, id string) bool {
	if id == "" {
		return false
	}
	for _, u := range users {
		if u != nil && u.ID == id {
			return true
		}
	}
	return false
}
