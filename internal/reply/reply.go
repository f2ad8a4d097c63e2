// Package reply renders ledger results as chat messages. Each reply may carry
// one model-written line for tone; the figures themselves are always
// formatted here so they stay exact.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edgard/expensebot/internal/category"
	"github.com/edgard/expensebot/internal/intent"
	"github.com/edgard/expensebot/internal/ledger"
	"github.com/edgard/expensebot/internal/llm"
	"github.com/edgard/expensebot/internal/localtime"
)

// Options tunes the flavor-text calls and the currency rendering.
type Options struct {
	CurrencySymbol  string
	Temperature     float32
	MaxOutputTokens int32
	Timeout         time.Duration
}

// Confirmation holds what an expense confirmation needs to mention.
type Confirmation struct {
	Amount        decimal.Decimal
	Category      category.Category
	Description   string
	Month         time.Month
	MonthlyTotal  decimal.Decimal
	CategoryTotal decimal.Decimal
}

// Composer builds reply texts.
type Composer struct {
	gen  llm.Generator
	zone *localtime.Zone
	opts Options
	log  *slog.Logger
}

// NewComposer creates a Composer. A nil generator disables flavor text.
func NewComposer(gen llm.Generator, zone *localtime.Zone, opts Options, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "$"
	}
	return &Composer{
		gen:  gen,
		zone: zone,
		opts: opts,
		log:  logger.With("component", "reply"),
	}
}

// Money formats an amount with the configured currency symbol and two decimals.
func (c *Composer) Money(d decimal.Decimal) string {
	return c.opts.CurrencySymbol + d.StringFixed(2)
}

// ExpenseConfirmation confirms a recorded expense.
func (c *Composer) ExpenseConfirmation(ctx context.Context, conf Confirmation) string {
	amount := c.Money(conf.Amount)
	monthly := c.Money(conf.MonthlyTotal)
	catTotal := c.Money(conf.CategoryTotal)
	month := conf.Month.String()

	fallback := fmt.Sprintf("Got it! Added %s under %s. Your total for %s is %s and %s total is %s.",
		amount, conf.Category, month, monthly, conf.Category, catTotal)

	prompt := fmt.Sprintf(`You are a friendly assistant that helps people track their expenses.
The user just recorded an expense of %s for %q in the category %s.
Their total spending for %s is now %s, and their %s total for %s is %s.

Write one short, upbeat sentence (two at most) confirming the expense and mentioning both totals exactly as written above.
Reply with the sentence only, no quotes.`,
		amount, conf.Description, conf.Category, month, monthly, conf.Category, month, catTotal)

	return c.flavor(ctx, "expense", prompt, fallback)
}

// ExpenseSaved confirms a recorded expense when the monthly totals are unavailable.
func (c *Composer) ExpenseSaved(amount decimal.Decimal, cat category.Category) string {
	return fmt.Sprintf("Got it! Added %s under %s.", c.Money(amount), cat)
}

// SpendingBreakdown renders totals for a range. When showCategories is set,
// each category gets a line with its share of the total.
func (c *Composer) SpendingBreakdown(ctx context.Context, b *ledger.Breakdown, showCategories bool) string {
	desc := b.Range.Description
	subject := "spending"
	if b.Category != nil {
		subject = string(*b.Category) + " spending"
	}

	if b.Total.IsZero() {
		if b.Category != nil {
			return fmt.Sprintf("No %s expenses recorded for %s.", *b.Category, desc)
		}
		return fmt.Sprintf("No expenses recorded for %s.", desc)
	}

	fallback := fmt.Sprintf("Here's your %s for %s:", subject, desc)
	prompt := fmt.Sprintf(`You are a friendly assistant that helps people track their expenses.
Write one short introductory line for a summary of the user's %s for %s.
They spent %s across %s.
Do not list individual categories. Reply with the line only, no quotes.`,
		subject, desc, c.Money(b.Total), plural(b.Count, "transaction"))

	var sb strings.Builder
	sb.WriteString(c.flavor(ctx, "spending_summary", prompt, fallback))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Total: %s\n", c.Money(b.Total))
	fmt.Fprintf(&sb, "Transactions: %d", b.Count)

	if showCategories && len(b.Categories) > 0 {
		sb.WriteString("\n\nBy category:")
		hundred := decimal.NewFromInt(100)
		for _, g := range b.Categories {
			share := g.Total.Mul(hundred).Div(b.Total)
			fmt.Fprintf(&sb, "\n• %s: %s (%s%%, %s)", g.Category, c.Money(g.Total), share.StringFixed(1), plural(g.Count, "transaction"))
		}
	}
	return sb.String()
}

// TransactionList renders one page of transactions, newest first.
func (c *Composer) TransactionList(ctx context.Context, p *ledger.Page) string {
	desc := p.Range.Description
	if len(p.Transactions) == 0 {
		return fmt.Sprintf("No transactions found for %s.", desc)
	}

	fallback := fmt.Sprintf("Here are your transactions for %s:", desc)
	prompt := fmt.Sprintf(`You are a friendly assistant that helps people track their expenses.
Write one short introductory line for a list of the user's transactions for %s (%s in total).
Reply with the line only, no quotes.`,
		desc, plural(p.TotalCount, "transaction"))

	var sb strings.Builder
	sb.WriteString(c.flavor(ctx, "transaction_list", prompt, fallback))
	sb.WriteString("\n")
	for i, tx := range p.Transactions {
		fmt.Fprintf(&sb, "\n%d. %s - %s", i+1, c.Money(tx.Amount), tx.Category)
		if tx.Description != "" {
			fmt.Fprintf(&sb, " - %s", tx.Description)
		}
		fmt.Fprintf(&sb, " (%s)", c.zone.FormatDate(tx.TransactionDate))
	}
	fmt.Fprintf(&sb, "\n\nShowing %d of %d transactions.", len(p.Transactions), p.TotalCount)
	return sb.String()
}

// Conversation relays the model's message unchanged.
func (c *Composer) Conversation(conv intent.Conversation) string {
	return conv.Message
}

// flavor asks the model for a short line and returns fallback on any failure.
func (c *Composer) flavor(ctx context.Context, kind, prompt, fallback string) string {
	if c.gen == nil {
		return fallback
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	text, err := c.gen.Generate(ctx, llm.Request{
		Prompt:          prompt,
		Temperature:     c.opts.Temperature,
		MaxOutputTokens: c.opts.MaxOutputTokens,
	})
	if err != nil {
		c.log.WarnContext(ctx, "Flavor text failed, using fallback", "kind", kind, "error", err)
		return fallback
	}

	text = strings.Trim(strings.TrimSpace(text), "\"")
	if text == "" {
		return fallback
	}
	return text
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
