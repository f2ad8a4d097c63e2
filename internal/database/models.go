package database

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// User is a chat participant identified by the platform-specific external ID
// (Telegram ID, Discord ID or phone number). Users are created on first contact
// and never deleted.
type User struct {
	ID         int64
	ExternalID string
	Username   string
	CreatedAt  time.Time
}

// Transaction is a single recorded expense belonging to a user.
// Amount always carries two fraction digits; TransactionDate is the instant
// the spend occurred, as opposed to CreatedAt which is when it was recorded.
type Transaction struct {
	ID              int64
	UserID          int64
	Amount          decimal.Decimal
	Category        string
	Description     string
	TransactionDate time.Time
	CreatedAt       time.Time
}

// CategoryTotal is one group of a per-category aggregation.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// TransactionFilter scopes aggregate queries to one user and an inclusive
// [Start, End] range of transaction dates. An empty Category matches all.
type TransactionFilter struct {
	UserID   int64
	Start    time.Time
	End      time.Time
	Category string
}

type userRow struct {
	ID         int64     `db:"id"`
	ExternalID string    `db:"external_id"`
	Username   string    `db:"username"`
	CreatedAt  timestamp `db:"created_at"`
}

func (r userRow) toModel() *User {
	return &User{
		ID:         r.ID,
		ExternalID: r.ExternalID,
		Username:   r.Username,
		CreatedAt:  r.CreatedAt.Time,
	}
}

type transactionRow struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	AmountCents     int64     `db:"amount_cents"`
	Category        string    `db:"category"`
	Description     string    `db:"description"`
	TransactionDate timestamp `db:"transaction_date"`
	CreatedAt       timestamp `db:"created_at"`
}

func (r transactionRow) toModel() Transaction {
	return Transaction{
		ID:              r.ID,
		UserID:          r.UserID,
		Amount:          FromCents(r.AmountCents),
		Category:        r.Category,
		Description:     r.Description,
		TransactionDate: r.TransactionDate.Time,
		CreatedAt:       r.CreatedAt.Time,
	}
}

type categoryTotalRow struct {
	Category   string `db:"category"`
	TotalCents int64  `db:"total_cents"`
	TxCount    int    `db:"tx_count"`
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ToCents converts a decimal amount to its exact count of hundredths,
// rounding half away from zero at the third fraction digit. Amounts whose
// cents do not fit in an int64 return ErrAmountOutOfRange.
func ToCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Round(2).Shift(2)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, amount.String())
	}
	return cents.IntPart(), nil
}

// FromCents converts a count of hundredths back to a two-digit decimal.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
