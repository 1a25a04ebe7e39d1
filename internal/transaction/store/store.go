package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

var transactionColumns = []string{
	"t.id", "t.account_id", "t.date", "t.posting_date", "t.description", "t.amount", "t.currency",
	"t.merchant", "t.categories", "t.payment_method", "t.source_document", "t.confidence",
	"t.description_key", "t.fingerprint", "t.batch_id", "t.created_at", "t.updated_at",
}

// scanTransaction reads a row selected with transactionColumns. types decodes the categories
// array and must not be shared between goroutines.
func scanTransaction(s scanner, types *pgtype.Map) (*transaction.Transaction, error) {
	var (
		tx            transaction.Transaction
		postingDate   sql.NullTime
		merchant      sql.NullString
		categories    []string
		paymentMethod sql.NullString
		confidence    sql.NullFloat64
		fingerprint   string
		updatedAt     sql.NullTime
	)

	if err := s.Scan(
		&tx.ID, &tx.AccountID, &tx.Date, &postingDate, &tx.Description, &tx.Amount, &tx.Currency,
		&merchant, types.SQLScanner(&categories), &paymentMethod, &tx.SourceDocument, &confidence,
		&tx.DescriptionKey, &fingerprint, &tx.BatchID, &tx.CreatedAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	tx.Date = transaction.DateOnly(tx.Date)
	tx.Fingerprint = transaction.Fingerprint(fingerprint)

	if postingDate.Valid {
		tx.PostingDate = new(transaction.DateOnly(postingDate.Time))
	}

	if merchant.Valid {
		tx.Merchant = new(merchant.String)
	}

	if len(categories) > 0 {
		tx.Categories = categories
	}

	if paymentMethod.Valid {
		tx.PaymentMethod = new(paymentMethod.String)
	}

	if confidence.Valid {
		tx.Confidence = new(confidence.Float64)
	}

	if updatedAt.Valid {
		tx.UpdatedAt = new(updatedAt.Time)
	}

	return &tx, nil
}

func applyFilter(b sq.SelectBuilder, filter transaction.ListFilter) sq.SelectBuilder {
	if filter.AccountID != nil {
		b = b.Where(sq.Eq{"t.account_id": *filter.AccountID})
	}

	if filter.StartDate != nil {
		b = b.Where(sq.GtOrEq{"t.date": transaction.DateOnly(*filter.StartDate)})
	}

	if filter.EndDate != nil {
		b = b.Where(sq.LtOrEq{"t.date": transaction.DateOnly(*filter.EndDate)})
	}

	return b
}

func (s *Store) query(ctx context.Context, b sq.SelectBuilder) ([]*transaction.Transaction, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		txs   []*transaction.Transaction
		types = pgtype.NewMap()
	)

	for rows.Next() {
		tx, err := scanTransaction(rows, types)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return txs, nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query, args, err := psql.Select(transactionColumns...).
		From("transactions t").
		Where(sq.Eq{"t.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, args...), pgtype.NewMap())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	b := applyFilter(psql.Select(transactionColumns...).From("transactions t"), filter).
		OrderBy("t.date ASC", "t.created_at ASC")

	txs, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	return txs, nil
}

// FindInWindow returns the account's transactions dated within [from, to].
func (s *Store) FindInWindow(ctx context.Context, accountID string, from, to time.Time) ([]*transaction.Transaction, error) {
	b := psql.Select(transactionColumns...).
		From("transactions t").
		Where(sq.Eq{"t.account_id": accountID}).
		Where(sq.GtOrEq{"t.date": transaction.DateOnly(from)}).
		Where(sq.LtOrEq{"t.date": transaction.DateOnly(to)}).
		OrderBy("t.date ASC")

	txs, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("finding transactions in window: %w", err)
	}

	return txs, nil
}

// Insert stores tx unless a row with the same account and fingerprint exists.
// It reports whether a row was written and fills ID and CreatedAt when it was.
func (s *Store) Insert(ctx context.Context, tx *transaction.Transaction) (bool, error) {
	query := `
		INSERT INTO transactions (
			account_id, date, posting_date, description, amount, currency, merchant, categories,
			payment_method, source_document, confidence, description_key, fingerprint, batch_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (account_id, fingerprint) DO NOTHING
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		tx.AccountID,
		transaction.DateOnly(tx.Date),
		nullDate(tx.PostingDate),
		tx.Description,
		tx.Amount.StringFixed(2),
		tx.Currency,
		tx.Merchant,
		nullArray(tx.Categories),
		tx.PaymentMethod,
		tx.SourceDocument,
		tx.Confidence,
		tx.DescriptionKey,
		tx.Fingerprint.String(),
		tx.BatchID,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("inserting transaction: %w", err)
	}

	return true, nil
}

// BatchOf returns the batch that wrote the row holding the fingerprint.
func (s *Store) BatchOf(ctx context.Context, accountID string, fp transaction.Fingerprint) (uuid.UUID, error) {
	query := `SELECT batch_id FROM transactions WHERE account_id = $1 AND fingerprint = $2`

	var batchID uuid.UUID
	if err := s.db.QueryRowContext(ctx, query, accountID, fp.String()).Scan(&batchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, transaction.ErrNotFound
		}

		return uuid.Nil, fmt.Errorf("reading batch of fingerprint: %w", err)
	}

	return batchID, nil
}

func (s *Store) CountByBatch(ctx context.Context, batchID uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE batch_id = $1`, batchID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting batch: %w", err)
	}

	return n, nil
}

// UpdateEnrichment sets only the fields e carries. Nil Categories keeps the stored set; an empty
// non-nil slice clears it.
func (s *Store) UpdateEnrichment(ctx context.Context, id uuid.UUID, e transaction.Enrichment) error {
	query, args, err := enrichmentUpdate(id, e).ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating enrichment: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return transaction.ErrNotFound
	}

	return nil
}

func enrichmentUpdate(id uuid.UUID, e transaction.Enrichment) sq.UpdateBuilder {
	b := psql.Update("transactions").
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})

	if e.Merchant != nil {
		b = b.Set("merchant", *e.Merchant)
	}

	if e.Categories != nil {
		b = b.Set("categories", nullArray(e.Categories))
	}

	if e.Confidence != nil {
		b = b.Set("confidence", *e.Confidence)
	}

	return b
}

func (s *Store) SummarizeByCategory(ctx context.Context, filter transaction.ListFilter) ([]transaction.CategoryTotal, error) {
	b := psql.Select("COALESCE(c.category, 'Uncategorized') AS category", "SUM(t.amount) AS total", "COUNT(*)").
		From("transactions t").
		JoinClause("LEFT JOIN LATERAL unnest(t.categories) AS c(category) ON TRUE")
	b = applyFilter(b, filter).GroupBy("1").OrderBy("total DESC")

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summarizing by category: %w", err)
	}
	defer rows.Close()

	var totals []transaction.CategoryTotal

	for rows.Next() {
		var ct transaction.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total, &ct.Count); err != nil {
			return nil, fmt.Errorf("scanning category total: %w", err)
		}

		totals = append(totals, ct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category totals: %w", err)
	}

	return totals, nil
}

func (s *Store) UpsertStatement(ctx context.Context, st *transaction.Statement) error {
	query := `
		INSERT INTO statements (
			source_file, provider_name, account_last_4, period_start, period_end,
			opening_balance, closing_balance, total_credits, total_debits, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (source_file) DO UPDATE SET
			provider_name = EXCLUDED.provider_name,
			account_last_4 = EXCLUDED.account_last_4,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			opening_balance = EXCLUDED.opening_balance,
			closing_balance = EXCLUDED.closing_balance,
			total_credits = EXCLUDED.total_credits,
			total_debits = EXCLUDED.total_debits,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query,
		st.SourceFile,
		st.ProviderName,
		st.AccountLast4,
		nullDate(st.PeriodStart),
		nullDate(st.PeriodEnd),
		nullDecimal(st.OpeningBalance),
		nullDecimal(st.ClosingBalance),
		nullDecimal(st.TotalCredits),
		nullDecimal(st.TotalDebits),
	)
	if err != nil {
		return fmt.Errorf("upserting statement: %w", err)
	}

	return nil
}

func (s *Store) ListStatements(ctx context.Context) ([]*transaction.Statement, error) {
	query := `
		SELECT source_file, provider_name, account_last_4, period_start, period_end,
			opening_balance, closing_balance, total_credits, total_debits, updated_at
		FROM statements
		ORDER BY period_end DESC NULLS LAST, source_file ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing statements: %w", err)
	}
	defer rows.Close()

	var statements []*transaction.Statement

	for rows.Next() {
		var (
			st                     transaction.Statement
			provider, last4        sql.NullString
			periodStart, periodEnd sql.NullTime
			opening, closing       decimal.NullDecimal
			credits, debits        decimal.NullDecimal
		)

		if err := rows.Scan(
			&st.SourceFile, &provider, &last4, &periodStart, &periodEnd,
			&opening, &closing, &credits, &debits, &st.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning statement: %w", err)
		}

		if provider.Valid {
			st.ProviderName = new(provider.String)
		}

		if last4.Valid {
			st.AccountLast4 = new(last4.String)
		}

		if periodStart.Valid {
			st.PeriodStart = new(periodStart.Time)
		}

		if periodEnd.Valid {
			st.PeriodEnd = new(periodEnd.Time)
		}

		st.OpeningBalance = fromNullDecimal(opening)
		st.ClosingBalance = fromNullDecimal(closing)
		st.TotalCredits = fromNullDecimal(credits)
		st.TotalDebits = fromNullDecimal(debits)

		statements = append(statements, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating statements: %w", err)
	}

	return statements, nil
}

// nullArray stores an empty set as NULL. pgx encodes the slice as text[].
func nullArray(values []string) any {
	if len(values) == 0 {
		return nil
	}

	return values
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}

	return transaction.DateOnly(*t)
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}

	return d.StringFixed(2)
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}

	return new(d.Decimal)
}
