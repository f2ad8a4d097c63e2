package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// ErrAmountOutOfRange is returned when an amount cannot be stored as int64 cents.
var ErrAmountOutOfRange = errors.New("amount out of range")

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// FindUserByExternalID returns the user with the given platform ID, or ErrNotFound.
	FindUserByExternalID(ctx context.Context, externalID string) (*User, error)

	// CreateUser inserts a new user and fills in its generated ID and CreatedAt.
	CreateUser(ctx context.Context, user *User) error

	// InsertTransaction inserts a new transaction and fills in its generated ID and CreatedAt.
	InsertTransaction(ctx context.Context, tx *Transaction) error

	// SumAmount returns the total amount of matching transactions, zero when none match.
	SumAmount(ctx context.Context, filter TransactionFilter) (decimal.Decimal, error)

	// CategoryBreakdown groups matching transactions by category, largest total first.
	CategoryBreakdown(ctx context.Context, filter TransactionFilter) ([]CategoryTotal, error)

	// CountTransactions returns the number of matching transactions.
	CountTransactions(ctx context.Context, filter TransactionFilter) (int, error)

	// ListTransactions returns up to limit matching transactions, newest first.
	ListTransactions(ctx context.Context, filter TransactionFilter, limit int) ([]Transaction, error)

	// RunMaintenance performs database maintenance tasks like VACUUM.
	RunMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance, its dialect and a logger.
func NewStore(db *sqlx.DB, dialect Dialect, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) FindUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	if externalID == "" {
		return nil, fmt.Errorf("external_id cannot be empty")
	}

	var row userRow
	query := s.db.Rebind(`
        SELECT id, external_id, username, created_at
        FROM users
        WHERE external_id = ?;
    `)
	err := s.db.GetContext(ctx, &row, query, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error looking up user", "external_id", externalID, "error", err)
		return nil, fmt.Errorf("failed to find user %q: %w", externalID, err)
	}
	return row.toModel(), nil
}

func (s *sqlxStore) CreateUser(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("cannot create nil user")
	}
	if user.ExternalID == "" {
		return fmt.Errorf("user must have a non-empty external_id")
	}

	user.CreatedAt = time.Now().UTC()
	query := s.db.Rebind(`
        INSERT INTO users (external_id, username, created_at)
        VALUES (?, ?, ?)
        RETURNING id;
    `)
	err := s.db.QueryRowxContext(ctx, query, user.ExternalID, user.Username, s.dialect.timeArg(user.CreatedAt)).Scan(&user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating user", "external_id", user.ExternalID, "error", err)
		return fmt.Errorf("failed to create user %q: %w", user.ExternalID, err)
	}

	s.logger.InfoContext(ctx, "User created", "user_id", user.ID, "external_id", user.ExternalID)
	return nil
}

func (s *sqlxStore) InsertTransaction(ctx context.Context, tx *Transaction) error {
	if tx == nil {
		return fmt.Errorf("cannot insert nil transaction")
	}
	if tx.UserID == 0 {
		return fmt.Errorf("transaction must have a non-zero user_id")
	}
	if tx.Category == "" {
		return fmt.Errorf("transaction must have a category")
	}
	if tx.TransactionDate.IsZero() {
		return fmt.Errorf("transaction must have a non-zero transaction_date")
	}

	cents, err := ToCents(tx.Amount)
	if err != nil {
		return err
	}

	tx.Amount = FromCents(cents)
	tx.TransactionDate = tx.TransactionDate.UTC().Truncate(time.Millisecond)
	tx.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	query := s.db.Rebind(`
        INSERT INTO transactions (user_id, amount_cents, category, description, transaction_date, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        RETURNING id;
    `)
	err = s.db.QueryRowxContext(ctx, query,
		tx.UserID,
		cents,
		tx.Category,
		tx.Description,
		s.dialect.timeArg(tx.TransactionDate),
		s.dialect.timeArg(tx.CreatedAt),
	).Scan(&tx.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting transaction", "user_id", tx.UserID, "error", err)
		return fmt.Errorf("failed to insert transaction for user %d: %w", tx.UserID, err)
	}

	s.logger.DebugContext(ctx, "Transaction inserted",
		"transaction_id", tx.ID, "user_id", tx.UserID, "amount", tx.Amount.StringFixed(2), "category", tx.Category)
	return nil
}

// where renders the shared filter predicate and its arguments.
func (s *sqlxStore) where(filter TransactionFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("WHERE user_id = ? AND transaction_date >= ? AND transaction_date <= ?")
	args := []any{filter.UserID, s.dialect.timeArg(filter.Start), s.dialect.timeArg(filter.End)}
	if filter.Category != "" {
		sb.WriteString(" AND category = ?")
		args = append(args, filter.Category)
	}
	return sb.String(), args
}

func (s *sqlxStore) SumAmount(ctx context.Context, filter TransactionFilter) (decimal.Decimal, error) {
	where, args := s.where(filter)
	query := s.db.Rebind("SELECT CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) FROM transactions " + where)

	var cents int64
	if err := s.db.GetContext(ctx, &cents, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error summing transactions", "user_id", filter.UserID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum transactions for user %d: %w", filter.UserID, err)
	}
	return FromCents(cents), nil
}

func (s *sqlxStore) CategoryBreakdown(ctx context.Context, filter TransactionFilter) ([]CategoryTotal, error) {
	where, args := s.where(filter)
	query := s.db.Rebind(`
        SELECT category, CAST(SUM(amount_cents) AS BIGINT) AS total_cents, COUNT(*) AS tx_count
        FROM transactions ` + where + `
        GROUP BY category
        ORDER BY SUM(amount_cents) DESC, category ASC;
    `)

	var rows []categoryTotalRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error aggregating transactions by category", "user_id", filter.UserID, "error", err)
		return nil, fmt.Errorf("failed to aggregate transactions for user %d: %w", filter.UserID, err)
	}

	totals := make([]CategoryTotal, 0, len(rows))
	for _, r := range rows {
		totals = append(totals, CategoryTotal{Category: r.Category, Total: FromCents(r.TotalCents), Count: r.TxCount})
	}
	return totals, nil
}

func (s *sqlxStore) CountTransactions(ctx context.Context, filter TransactionFilter) (int, error) {
	where, args := s.where(filter)
	query := s.db.Rebind("SELECT COUNT(*) FROM transactions " + where)

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error counting transactions", "user_id", filter.UserID, "error", err)
		return 0, fmt.Errorf("failed to count transactions for user %d: %w", filter.UserID, err)
	}
	return count, nil
}

func (s *sqlxStore) ListTransactions(ctx context.Context, filter TransactionFilter, limit int) ([]Transaction, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	where, args := s.where(filter)
	query := s.db.Rebind(`
        SELECT id, user_id, amount_cents, category, description, transaction_date, created_at
        FROM transactions ` + where + `
        ORDER BY transaction_date DESC, id DESC
        LIMIT ?;
    `)
	args = append(args, limit)

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error listing transactions", "user_id", filter.UserID, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to list transactions for user %d: %w", filter.UserID, err)
	}

	txs := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, r.toModel())
	}
	return txs, nil
}

// RunMaintenance executes VACUUM (SQLite) or VACUUM ANALYZE (Postgres).
// Both must run outside a transaction.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	stmt := "VACUUM;"
	if s.dialect == DialectPostgres {
		stmt = "VACUUM ANALYZE;"
	}

	s.logger.InfoContext(ctx, "Starting database maintenance", "statement", stmt)
	startTime := time.Now()
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance failed", "error", err)
		return fmt.Errorf("failed to run %s: %w", strings.TrimSuffix(stmt, ";"), err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(startTime))
	return nil
}
