// Package events publishes notifications about recorded expenses so other
// systems can react to them. Publishing is optional and best effort.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseRecorded is emitted after an expense row is committed.
type ExpenseRecorded struct {
	EventID         string          `json:"event_id"`
	TransactionID   int64           `json:"transaction_id"`
	UserID          int64           `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	TransactionDate time.Time       `json:"transaction_date"`
	RecordedAt      time.Time       `json:"recorded_at"`
}

// NewExpenseRecorded stamps the event with a fresh ID.
func NewExpenseRecorded(transactionID, userID int64, amount decimal.Decimal, category, description string, transactionDate, recordedAt time.Time) ExpenseRecorded {
	return ExpenseRecorded{
		EventID:         uuid.NewString(),
		TransactionID:   transactionID,
		UserID:          userID,
		Amount:          amount,
		Category:        category,
		Description:     description,
		TransactionDate: transactionDate.UTC(),
		RecordedAt:      recordedAt.UTC(),
	}
}

// ToJSON encodes the event. Amount is written as a quoted decimal string.
func (e ExpenseRecorded) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers expense events.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, event ExpenseRecorded) error
	Close() error
}

// Noop discards every event. It is used when publishing is disabled.
type Noop struct{}

func (Noop) PublishExpenseRecorded(context.Context, ExpenseRecorded) error { return nil }
func (Noop) Close() error                                                  { return nil }
