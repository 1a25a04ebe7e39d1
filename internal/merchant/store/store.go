package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrJamesThe3rd/expense-explorer/internal/merchant"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateAlias(ctx context.Context, rawPattern, name string) error {
	query := `
		INSERT INTO merchant_aliases (raw_pattern, merchant, created_at)
		VALUES ($1, $2, NOW())
	`

	if _, err := s.db.ExecContext(ctx, query, rawPattern, name); err != nil {
		return fmt.Errorf("creating merchant alias: %w", err)
	}

	return nil
}

func (s *Store) ListAliases(ctx context.Context) ([]merchant.Alias, error) {
	query := `
		SELECT id, raw_pattern, merchant, created_at
		FROM merchant_aliases
		ORDER BY LENGTH(raw_pattern) DESC, created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing merchant aliases: %w", err)
	}
	defer rows.Close()

	var aliases []merchant.Alias

	for rows.Next() {
		var a merchant.Alias
		if err := rows.Scan(&a.ID, &a.RawPattern, &a.Merchant, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning merchant alias: %w", err)
		}

		aliases = append(aliases, a)
	}

	return aliases, rows.Err()
}
