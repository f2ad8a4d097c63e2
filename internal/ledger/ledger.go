// Package ledger records expenses and answers the aggregate questions asked
// about them. It works on UTC instants only; callers convert local dates first.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edgard/expensebot/internal/category"
	"github.com/edgard/expensebot/internal/database"
	"github.com/edgard/expensebot/internal/events"
	"github.com/edgard/expensebot/internal/intent"
	"github.com/edgard/expensebot/internal/localtime"
)

// PageSize is the number of transactions returned by TransactionsList.
const PageSize = 15

// Breakdown is the per-category aggregation of a range, largest total first.
// Category is set when the breakdown was restricted to one category.
type Breakdown struct {
	Range      intent.TimeRange
	Category   *category.Category
	Categories []database.CategoryTotal
	Total      decimal.Decimal
	Count      int
}

// Page is one bounded listing of transactions, newest first.
type Page struct {
	Range        intent.TimeRange
	Transactions []database.Transaction
	TotalCount   int
	HasMore      bool
}

// Ledger is the read and write surface over the store.
type Ledger struct {
	store     database.Store
	zone      *localtime.Zone
	publisher events.Publisher
	opTimeout time.Duration
	log       *slog.Logger
}

// New creates a Ledger. A nil publisher disables events; a zero opTimeout
// leaves store calls bounded only by the caller's context.
func New(store database.Store, zone *localtime.Zone, publisher events.Publisher, opTimeout time.Duration, logger *slog.Logger) *Ledger {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:     store,
		zone:      zone,
		publisher: publisher,
		opTimeout: opTimeout,
		log:       logger.With("component", "ledger"),
	}
}

func (l *Ledger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.opTimeout)
}

// ResolveUser returns the user for externalID, creating it on first contact.
func (l *Ledger) ResolveUser(ctx context.Context, externalID, username string) (*database.User, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	user, err := l.store.FindUserByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	user = &database.User{ExternalID: externalID, Username: username}
	if createErr := l.store.CreateUser(ctx, user); createErr != nil {
		// A concurrent first message may have created the row already.
		existing, findErr := l.store.FindUserByExternalID(ctx, externalID)
		if findErr == nil {
			return existing, nil
		}
		return nil, createErr
	}

	l.log.InfoContext(ctx, "Registered new user", "user_id", user.ID, "external_id", externalID)
	return user, nil
}

// RecordExpense inserts one transaction. Submitting the same expense twice
// creates two rows. The date is stored at millisecond precision, the
// resolution of the range bounds.
func (l *Ledger) RecordExpense(ctx context.Context, userID int64, amount decimal.Decimal, cat category.Category, description string, date time.Time) (*database.Transaction, error) {
	if !category.IsValid(string(cat)) {
		return nil, fmt.Errorf("unknown category %q", cat)
	}

	tx := &database.Transaction{
		UserID:          userID,
		Amount:          amount.Round(2),
		Category:        string(cat),
		Description:     description,
		TransactionDate: date.UTC().Truncate(time.Millisecond),
	}

	opCtx, cancel := l.withTimeout(ctx)
	defer cancel()
	if err := l.store.InsertTransaction(opCtx, tx); err != nil {
		return nil, err
	}

	l.log.InfoContext(ctx, "Expense recorded",
		"transaction_id", tx.ID,
		"user_id", userID,
		"amount", tx.Amount.StringFixed(2),
		"category", tx.Category)

	event := events.NewExpenseRecorded(tx.ID, tx.UserID, tx.Amount, tx.Category, tx.Description, tx.TransactionDate, tx.CreatedAt)
	if err := l.publisher.PublishExpenseRecorded(ctx, event); err != nil {
		l.log.WarnContext(ctx, "Failed to publish expense event", "transaction_id", tx.ID, "error", err)
	}
	return tx, nil
}

// MonthlyTotal sums the user's spending in a local calendar month. Zero when empty.
func (l *Ledger) MonthlyTotal(ctx context.Context, userID int64, year int, month time.Month) (decimal.Decimal, error) {
	start, end := l.zone.MonthBounds(year, month)
	return l.sum(ctx, database.TransactionFilter{UserID: userID, Start: start, End: end})
}

// CategoryTotal sums the user's spending in one category for a local calendar month.
func (l *Ledger) CategoryTotal(ctx context.Context, userID int64, cat category.Category, year int, month time.Month) (decimal.Decimal, error) {
	start, end := l.zone.MonthBounds(year, month)
	return l.sum(ctx, database.TransactionFilter{UserID: userID, Start: start, End: end, Category: string(cat)})
}

func (l *Ledger) sum(ctx context.Context, filter database.TransactionFilter) (decimal.Decimal, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	return l.store.SumAmount(ctx, filter)
}

// SpendingBreakdown groups the range by category, optionally restricted to cat.
func (l *Ledger) SpendingBreakdown(ctx context.Context, userID int64, r intent.TimeRange, cat *category.Category) (*Breakdown, error) {
	filter := database.TransactionFilter{UserID: userID, Start: r.Start, End: r.End}
	if cat != nil {
		filter.Category = string(*cat)
	}

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	groups, err := l.store.CategoryBreakdown(ctx, filter)
	if err != nil {
		return nil, err
	}

	b := &Breakdown{Range: r, Category: cat, Categories: groups, Total: decimal.Zero}
	for _, g := range groups {
		b.Total = b.Total.Add(g.Total)
		b.Count += g.Count
	}

	l.log.DebugContext(ctx, "Spending breakdown computed",
		"user_id", userID, "total", b.Total.StringFixed(2), "count", b.Count, "groups", len(groups))
	return b, nil
}

// TransactionsList returns up to PageSize transactions in the range. HasMore
// is determined by fetching one extra row.
func (l *Ledger) TransactionsList(ctx context.Context, userID int64, r intent.TimeRange) (*Page, error) {
	filter := database.TransactionFilter{UserID: userID, Start: r.Start, End: r.End}

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	total, err := l.store.CountTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	txs, err := l.store.ListTransactions(ctx, filter, PageSize+1)
	if err != nil {
		return nil, err
	}

	page := &Page{Range: r, TotalCount: total, HasMore: len(txs) > PageSize}
	if page.HasMore {
		txs = txs[:PageSize]
	}
	page.Transactions = txs
	return page, nil
}
