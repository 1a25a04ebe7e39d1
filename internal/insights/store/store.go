package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MrJamesThe3rd/expense-explorer/internal/insights"
)

// Insights are computed over the whole ledger, so each type has a single row.
const cacheKey = "all"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// debits selects spending rows, leaving out any transaction tagged with an excluded category.
func debits(b sq.SelectBuilder, exclude []string) sq.SelectBuilder {
	b = b.Where(sq.Gt{"amount": 0})
	if len(exclude) > 0 {
		b = b.Where("NOT (COALESCE(categories, '{}') && ?)", exclude)
	}

	return b
}

func recurringQuery(minOccurrences int, exclude []string) sq.SelectBuilder {
	b := psql.Select("account_id", "MIN(description)", "amount", "COUNT(*)", "MIN(date)", "MAX(date)").
		From("transactions")

	return debits(b, exclude).
		GroupBy("account_id", "description_key", "amount").
		Having("COUNT(*) >= ?", minOccurrences).
		OrderBy("COUNT(*) DESC", "MAX(date) DESC")
}

func expensesQuery(exclude []string) sq.SelectBuilder {
	b := psql.Select("date", "amount", "COALESCE(categories[1], 'Uncategorized')", "COALESCE(merchant, description)").
		From("transactions")

	return debits(b, exclude).OrderBy("date", "created_at", "id")
}

func monthlyQuery(exclude []string) sq.SelectBuilder {
	b := psql.Select("date_trunc('month', date)::date AS month", "SUM(amount)").
		From("transactions")

	return debits(b, exclude).GroupBy("1").OrderBy("1")
}

func (s *Store) RecurringCharges(ctx context.Context, minOccurrences int, exclude []string) ([]insights.RecurringCharge, error) {
	query, args, err := recurringQuery(minOccurrences, exclude).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying recurring charges: %w", err)
	}
	defer rows.Close()

	var charges []insights.RecurringCharge

	for rows.Next() {
		var c insights.RecurringCharge
		if err := rows.Scan(&c.AccountID, &c.Description, &c.Amount, &c.Occurrences, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning recurring charge: %w", err)
		}

		charges = append(charges, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recurring charges: %w", err)
	}

	return charges, nil
}

func (s *Store) Expenses(ctx context.Context, exclude []string) ([]insights.Expense, error) {
	query, args, err := expensesQuery(exclude).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying expenses: %w", err)
	}
	defer rows.Close()

	var expenses []insights.Expense

	for rows.Next() {
		var e insights.Expense
		if err := rows.Scan(&e.Date, &e.Amount, &e.Category, &e.Merchant); err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}

		expenses = append(expenses, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expenses: %w", err)
	}

	return expenses, nil
}

func (s *Store) MonthlyTotals(ctx context.Context, exclude []string) ([]insights.MonthTotal, error) {
	query, args, err := monthlyQuery(exclude).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying monthly totals: %w", err)
	}
	defer rows.Close()

	var totals []insights.MonthTotal

	for rows.Next() {
		var m insights.MonthTotal
		if err := rows.Scan(&m.Month, &m.Total); err != nil {
			return nil, fmt.Errorf("scanning monthly total: %w", err)
		}

		totals = append(totals, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating monthly totals: %w", err)
	}

	return totals, nil
}

// An entry is stale once it expires or once any transaction was written or enriched after it.
func cachedQuery(insightType string) sq.SelectBuilder {
	return psql.Select("value").
		From("insights").
		Where(sq.Eq{"insight_type": insightType, "key": cacheKey}).
		Where("expires_at > NOW()").
		Where("computed_at >= COALESCE((SELECT MAX(COALESCE(updated_at, created_at)) FROM transactions), '-infinity'::timestamptz)")
}

func (s *Store) CachedInsight(ctx context.Context, insightType string) ([]byte, error) {
	query, args, err := cachedQuery(insightType).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	var value []byte

	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading cached insight: %w", err)
	}

	return value, nil
}

func saveQuery(insightType string, value []byte, ttl time.Duration) sq.InsertBuilder {
	return psql.Insert("insights").
		Columns("insight_type", "key", "value", "computed_at", "expires_at").
		Values(insightType, cacheKey, string(value), sq.Expr("NOW()"), sq.Expr("NOW() + make_interval(secs => ?)", ttl.Seconds())).
		Suffix("ON CONFLICT (insight_type, key) DO UPDATE SET value = EXCLUDED.value, computed_at = EXCLUDED.computed_at, expires_at = EXCLUDED.expires_at")
}

func (s *Store) SaveInsight(ctx context.Context, insightType string, value []byte, ttl time.Duration) error {
	query, args, err := saveQuery(insightType, value, ttl).ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving insight: %w", err)
	}

	return nil
}
