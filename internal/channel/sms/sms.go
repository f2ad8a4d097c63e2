// Package sms connects the conversation pipeline to SMS through Twilio.
// Inbound messages arrive on an HTTP webhook; replies are sent with the
// Messages API.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/edgard/expensebot/internal/channel"
	"github.com/edgard/expensebot/internal/config"
)

const (
	// WebhookPath is where Twilio posts inbound messages.
	WebhookPath = "/sms/webhook"

	signatureHeader  = "X-Twilio-Signature"
	maxMessageLength = 1600
	emptyTwiML       = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// messageCreator is the part of the Twilio API client used to send messages.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Channel is the SMS adapter. It is also the http.Handler for the webhook.
type Channel struct {
	api       messageCreator
	from      string
	validator client.RequestValidator
	publicURL string
	validate  bool
	log       *slog.Logger

	mu      sync.Mutex
	handler channel.Handler
	ctx     context.Context
	closed  bool
	turns   sync.WaitGroup
}

// New creates a Twilio-backed SMS channel.
func New(cfg config.SMSConfig, log *slog.Logger) (*Channel, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, fmt.Errorf("twilio account sid, auth token and from number are required")
	}
	if log == nil {
		log = slog.Default()
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &Channel{
		api:       rest.Api,
		from:      cfg.FromNumber,
		validator: client.NewRequestValidator(cfg.AuthToken),
		publicURL: cfg.PublicURL,
		validate:  cfg.ValidateSignature,
		log:       log.With("component", "sms_channel"),
	}, nil
}

func (c *Channel) Name() string { return "sms" }

// Run accepts webhook turns until ctx is cancelled, then waits for the turns
// already in flight.
func (c *Channel) Run(ctx context.Context, h channel.Handler) error {
	c.mu.Lock()
	c.handler = h
	c.ctx = ctx
	c.mu.Unlock()

	c.log.Info("SMS channel accepting webhooks", "path", WebhookPath)
	<-ctx.Done()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.log.Info("Waiting for in-flight SMS turns")
	c.turns.Wait()
	return nil
}

// SendText sends text to a phone number, split into SMS-sized messages.
func (c *Channel) SendText(ctx context.Context, conversationID, text string) error {
	for _, chunk := range channel.SplitText(text, maxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}

		params := &openapi.CreateMessageParams{}
		params.SetTo(conversationID)
		params.SetFrom(c.from)
		params.SetBody(chunk)

		resp, err := c.api.CreateMessage(params)
		if err != nil {
			return fmt.Errorf("send sms to %s: %w", conversationID, err)
		}
		if resp != nil && resp.Sid != nil {
			c.log.DebugContext(ctx, "SMS sent", "sid", *resp.Sid)
		}
	}
	return nil
}

// ServeHTTP handles a Twilio inbound message webhook. The reply is sent
// asynchronously, so the webhook always answers with empty TwiML.
func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if c.validate {
		params := make(map[string]string, len(r.PostForm))
		for k, v := range r.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		if !c.validator.Validate(c.publicURL, params, r.Header.Get(signatureHeader)) {
			c.log.WarnContext(r.Context(), "Rejected SMS webhook with invalid signature", "remote_addr", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	from := strings.TrimSpace(r.PostForm.Get("From"))
	if from == "" {
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}
	msg := channel.InboundMessage{
		PlatformUserID: from,
		DisplayName:    from,
		Text:           r.PostForm.Get("Body"),
		ConversationID: from,
	}

	c.mu.Lock()
	h, ctx := c.handler, c.ctx
	if h == nil || c.closed {
		c.mu.Unlock()
		http.Error(w, "not accepting messages", http.StatusServiceUnavailable)
		return
	}
	c.turns.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.turns.Done()
		h.Handle(context.WithoutCancel(ctx), c, msg)
	}()

	c.log.DebugContext(r.Context(), "SMS webhook accepted", "message_sid", r.PostForm.Get("MessageSid"))
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(emptyTwiML))
}
