// Package assistant runs one conversational turn: it resolves the sender,
// classifies the text, acts on the intent and composes the reply.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/expensebot/internal/channel"
	"github.com/edgard/expensebot/internal/config"
	"github.com/edgard/expensebot/internal/intent"
	"github.com/edgard/expensebot/internal/ledger"
	"github.com/edgard/expensebot/internal/localtime"
	"github.com/edgard/expensebot/internal/reply"
)

// Classifier maps message text to an intent. It must not fail.
type Classifier interface {
	Classify(ctx context.Context, text string, now time.Time) intent.Intent
}

// Assistant is the channel.Handler shared by every platform adapter.
type Assistant struct {
	classifier Classifier
	ledger     *ledger.Ledger
	composer   *reply.Composer
	zone       *localtime.Zone
	messages   config.MessagesConfig
	now        func() time.Time
	log        *slog.Logger
}

// New creates an Assistant.
func New(classifier Classifier, l *ledger.Ledger, composer *reply.Composer, zone *localtime.Zone, messages config.MessagesConfig, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		classifier: classifier,
		ledger:     l,
		composer:   composer,
		zone:       zone,
		messages:   messages,
		now:        time.Now,
		log:        logger.With("component", "assistant"),
	}
}

// Handle runs a turn and sends the reply. Errors and panics are answered
// with the generic error message; send failures are only logged.
func (a *Assistant) Handle(ctx context.Context, sender channel.Sender, msg channel.InboundMessage) {
	log := a.log.With("conversation_id", msg.ConversationID, "platform_user_id", msg.PlatformUserID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Panic while handling message", "panic", r, "stack", string(debug.Stack()))
			a.send(ctx, log, sender, msg.ConversationID, a.messages.GeneralError)
		}
	}()

	text, err := a.Reply(ctx, msg)
	if err != nil {
		log.ErrorContext(ctx, "Failed to handle message", "error", err)
		text = a.messages.GeneralError
	}

	a.send(ctx, log, sender, msg.ConversationID, text)
	log.DebugContext(ctx, "Turn finished", "duration", time.Since(start))
}

func (a *Assistant) send(ctx context.Context, log *slog.Logger, sender channel.Sender, conversationID, text string) {
	if err := sender.SendText(ctx, conversationID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err)
	}
}

// Reply computes the answer to one message without sending it.
func (a *Assistant) Reply(ctx context.Context, msg channel.InboundMessage) (string, error) {
	log := a.log.With("request_id", uuid.NewString(), "platform_user_id", msg.PlatformUserID)

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		log.DebugContext(ctx, "Empty message")
		return a.messages.EmptyMessage, nil
	}

	user, err := a.ledger.ResolveUser(ctx, msg.PlatformUserID, msg.DisplayName)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}

	in := a.classifier.Classify(ctx, text, a.now())
	log.InfoContext(ctx, "Message classified", "user_id", user.ID, "intent", in.Type())

	switch v := in.(type) {
	case intent.Expense:
		return a.recordExpense(ctx, log, user.ID, v)

	case intent.SpendingSummary:
		b, err := a.ledger.SpendingBreakdown(ctx, user.ID, v.Range, v.Category)
		if err != nil {
			return "", fmt.Errorf("spending breakdown: %w", err)
		}
		return a.composer.SpendingBreakdown(ctx, b, v.ShowCategoryBreakdown), nil

	case intent.TransactionList:
		page, err := a.ledger.TransactionsList(ctx, user.ID, v.Range)
		if err != nil {
			return "", fmt.Errorf("list transactions: %w", err)
		}
		return a.composer.TransactionList(ctx, page), nil

	case intent.Conversation:
		return a.composer.Conversation(v), nil

	default:
		return "", fmt.Errorf("unhandled intent %T", in)
	}
}

func (a *Assistant) recordExpense(ctx context.Context, log *slog.Logger, userID int64, e intent.Expense) (string, error) {
	tx, err := a.ledger.RecordExpense(ctx, userID, e.Amount, e.Category, e.Description, e.Date)
	if err != nil {
		return "", fmt.Errorf("record expense: %w", err)
	}

	local := a.zone.In(tx.TransactionDate)
	year, month := local.Year(), local.Month()

	monthly, err := a.ledger.MonthlyTotal(ctx, userID, year, month)
	if err != nil {
		log.WarnContext(ctx, "Expense saved but monthly total failed", "transaction_id", tx.ID, "error", err)
		return a.composer.ExpenseSaved(tx.Amount, e.Category), nil
	}
	catTotal, err := a.ledger.CategoryTotal(ctx, userID, e.Category, year, month)
	if err != nil {
		log.WarnContext(ctx, "Expense saved but category total failed", "transaction_id", tx.ID, "error", err)
		return a.composer.ExpenseSaved(tx.Amount, e.Category), nil
	}

	return a.composer.ExpenseConfirmation(ctx, reply.Confirmation{
		Amount:        tx.Amount,
		Category:      e.Category,
		Description:   tx.Description,
		Month:         month,
		MonthlyTotal:  monthly,
		CategoryTotal: catTotal,
	}), nil
}
