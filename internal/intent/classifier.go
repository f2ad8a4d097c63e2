package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/edgard/expensebot/internal/category"
	"github.com/edgard/expensebot/internal/llm"
	"github.com/edgard/expensebot/internal/localtime"
)

var (
	errNoJSON        = errors.New("no JSON object in model response")
	errNullResponse  = errors.New("model returned null")
	errAmountType    = errors.New("amount must be a JSON number")
	errAmountRange   = errors.New("amount must be greater than zero")
	errAmountTooHigh = errors.New("amount exceeds the maximum")
	errRangeReversed = errors.New("end date is before start date")
)

// MaxAmount is the largest single expense accepted.
var MaxAmount = decimal.New(1, 9)

// Options tunes the classification call and its canned replies.
type Options struct {
	Temperature     float32
	MaxOutputTokens int32
	// Timeout bounds the model call; zero leaves the caller's deadline in charge.
	Timeout time.Duration
	// FallbackMessage is relayed when the model output is unusable.
	FallbackMessage string
	// DefaultReply is used for a conversation intent without a message.
	DefaultReply string
}

// Classifier maps free text to an Intent.
type Classifier struct {
	gen      llm.Generator
	zone     *localtime.Zone
	opts     Options
	validate *validator.Validate
	log      *slog.Logger
}

// NewClassifier creates a Classifier using gen for model calls and zone to
// interpret day strings.
func NewClassifier(gen llm.Generator, zone *localtime.Zone, opts Options, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		gen:      gen,
		zone:     zone,
		opts:     opts,
		validate: newValidator(),
		log:      logger.With("component", "intent_classifier"),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// The registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return category.IsValid(fl.Field().String())
	})
	return v
}

// Classify never fails: any model, parse or validation problem yields a
// Conversation carrying the fallback message.
func (c *Classifier) Classify(ctx context.Context, text string, now time.Time) Intent {
	callCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	raw, err := c.gen.Generate(callCtx, llm.Request{
		Prompt:          BuildPrompt(text, now, c.zone),
		Temperature:     c.opts.Temperature,
		MaxOutputTokens: c.opts.MaxOutputTokens,
		JSON:            true,
	})
	if err != nil {
		c.log.WarnContext(ctx, "Classification call failed", "error", err, "duration", time.Since(startTime))
		return c.fallback()
	}

	parsed, err := c.Parse(raw, now)
	if err != nil {
		c.log.WarnContext(ctx, "Discarding unusable classification", "error", err, "raw_preview", preview(raw))
		return c.fallback()
	}

	c.log.DebugContext(ctx, "Message classified", "type", parsed.Type(), "duration", time.Since(startTime))
	return parsed
}

func (c *Classifier) fallback() Intent {
	return Conversation{Message: c.opts.FallbackMessage}
}

type envelope struct {
	Type Type `json:"type"`
}

type expensePayload struct {
	Amount      json.RawMessage `json:"amount"`
	Category    string          `json:"category"    validate:"required,category"`
	Date        *string         `json:"date"`
	Description string          `json:"description" validate:"required"`
}

type rangePayload struct {
	Start                 string `json:"start"       validate:"required,datetime=2006-01-02"`
	End                   string `json:"end"         validate:"required,datetime=2006-01-02"`
	Description           string `json:"description" validate:"required"`
	ShowCategoryBreakdown *bool  `json:"showCategoryBreakdown"`
	Category              string `json:"category"    validate:"omitempty,category"`
}

type conversationPayload struct {
	Message string `json:"message"`
}

// Parse validates a raw model response into an Intent. It is exported so the
// decoding rules can be exercised without a model.
func (c *Classifier) Parse(raw string, now time.Time) (Intent, error) {
	obj, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(obj, &env); err != nil {
		return nil, fmt.Errorf("failed to decode intent type: %w", err)
	}

	switch env.Type {
	case TypeExpense:
		return c.parseExpense(obj, now)
	case TypeSpendingSummary:
		p, r, err := c.parseRange(obj)
		if err != nil {
			return nil, err
		}
		summary := SpendingSummary{Range: r, ShowCategoryBreakdown: true}
		if p.ShowCategoryBreakdown != nil {
			summary.ShowCategoryBreakdown = *p.ShowCategoryBreakdown
		}
		if p.Category != "" {
			cat := category.Category(p.Category)
			summary.Category = &cat
		}
		return summary, nil
	case TypeTransactionList:
		_, r, err := c.parseRange(obj)
		if err != nil {
			return nil, err
		}
		return TransactionList{Range: r}, nil
	case TypeConversation:
		var p conversationPayload
		if err := json.Unmarshal(obj, &p); err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %w", err)
		}
		msg := strings.TrimSpace(p.Message)
		if msg == "" {
			msg = c.opts.DefaultReply
		}
		return Conversation{Message: msg}, nil
	default:
		return nil, fmt.Errorf("unknown intent type %q", env.Type)
	}
}

func (c *Classifier) parseExpense(obj []byte, now time.Time) (Intent, error) {
	var p expensePayload
	if err := json.Unmarshal(obj, &p); err != nil {
		return nil, fmt.Errorf("failed to decode expense: %w", err)
	}
	p.Description = strings.TrimSpace(p.Description)
	if err := c.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid expense: %w", err)
	}

	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	date := now.UTC()
	if p.Date != nil && strings.TrimSpace(*p.Date) != "" {
		day, err := c.zone.ParseDay(strings.TrimSpace(*p.Date))
		if err != nil {
			return nil, fmt.Errorf("invalid expense date: %w", err)
		}
		if !c.zone.SameDay(day, now) {
			date = day.UTC()
		}
	}

	return Expense{
		Amount:      amount,
		Category:    category.Category(p.Category),
		Date:        date,
		Description: p.Description,
	}, nil
}

func (c *Classifier) parseRange(obj []byte) (rangePayload, TimeRange, error) {
	var p rangePayload
	if err := json.Unmarshal(obj, &p); err != nil {
		return p, TimeRange{}, fmt.Errorf("failed to decode range: %w", err)
	}
	p.Start = strings.TrimSpace(p.Start)
	p.End = strings.TrimSpace(p.End)
	p.Description = strings.TrimSpace(p.Description)
	if err := c.validate.Struct(p); err != nil {
		return p, TimeRange{}, fmt.Errorf("invalid range: %w", err)
	}

	start, end, err := c.zone.DayRange(p.Start, p.End)
	if err != nil {
		return p, TimeRange{}, err
	}
	if end.Before(start) {
		return p, TimeRange{}, errRangeReversed
	}
	return p, TimeRange{Start: start, End: end, Description: p.Description}, nil
}

// parseAmount accepts only JSON numbers, strictly positive once rounded to
// cents and no larger than MaxAmount.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || strings.HasPrefix(s, `"`) {
		return decimal.Zero, errAmountType
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", errAmountType, err)
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, errAmountRange
	}
	if amount.GreaterThan(MaxAmount) {
		return decimal.Zero, errAmountTooHigh
	}
	return amount, nil
}

// extractJSON returns the first JSON object in s, tolerating code fences and
// surrounding prose.
func extractJSON(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errNoJSON
	}
	if s == "null" {
		return nil, errNullResponse
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, errNoJSON
	}

	var obj json.RawMessage
	dec := json.NewDecoder(bytes.NewReader([]byte(s[start:])))
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("failed to decode model JSON: %w", err)
	}
	return obj, nil
}

func preview(s string) string {
	const maxLen = 200
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
