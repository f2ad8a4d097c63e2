// Package intent turns free-text chat messages into typed intents using a
// text-generation model.
package intent

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/edgard/expensebot/internal/category"
)

// Type discriminates the JSON payloads returned by the model.
type Type string

const (
	TypeExpense         Type = "expense"
	TypeSpendingSummary Type = "spending_summary"
	TypeTransactionList Type = "transaction_list"
	TypeConversation    Type = "conversation"
)

// Intent is one of Expense, SpendingSummary, TransactionList or Conversation.
type Intent interface {
	Type() Type
	sealed()
}

// TimeRange is an inclusive range of UTC instants aligned to local day boundaries.
type TimeRange struct {
	Start       time.Time
	End         time.Time
	Description string
}

// Expense is a spend to record. Date is the resolved UTC instant of the spend.
type Expense struct {
	Amount      decimal.Decimal
	Category    category.Category
	Date        time.Time
	Description string
}

// SpendingSummary asks for totals over a range, optionally restricted to one category.
type SpendingSummary struct {
	Range                 TimeRange
	Category              *category.Category
	ShowCategoryBreakdown bool
}

// TransactionList asks for the individual transactions in a range.
type TransactionList struct {
	Range TimeRange
}

// Conversation is a free-text reply relayed to the user as is.
type Conversation struct {
	Message string
}

func (Expense) Type() Type         { return TypeExpense }
func (SpendingSummary) Type() Type { return TypeSpendingSummary }
func (TransactionList) Type() Type { return TypeTransactionList }
func (Conversation) Type() Type    { return TypeConversation }

func (Expense) sealed()         {}
func (SpendingSummary) sealed() {}
func (TransactionList) sealed() {}
func (Conversation) sealed()    {}
