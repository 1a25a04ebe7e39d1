// Package transactiontest provides an in-memory ledger with the same uniqueness guarantee as the
// Postgres store, for tests of the packages that read and write the ledger.
package transactiontest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

type key struct {
	account     string
	fingerprint transaction.Fingerprint
}

// Store is safe for concurrent use. Hooks must be set before the store is shared.
type Store struct {
	// BeforeInsert runs before every insert attempt; a non-nil error aborts the attempt without writing.
	BeforeInsert func(call int, tx *transaction.Transaction) error
	// AfterInsert runs after a row is written; a non-nil error is returned although the row stays committed.
	AfterInsert func(call int, tx *transaction.Transaction) error
	// CountErr, when set, makes CountByBatch fail.
	CountErr error

	mu          sync.Mutex
	rows        map[key]transaction.Transaction
	order       []key
	insertCalls int
	windowReads int
}

func New() *Store {
	return &Store{rows: make(map[key]transaction.Transaction)}
}

// Seed writes transactions directly, stamping missing IDs and batch IDs.
func (s *Store) Seed(txs ...*transaction.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		row := *tx
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}

		if row.BatchID == uuid.Nil {
			row.BatchID = uuid.New()
		}

		k := key{account: row.AccountID, fingerprint: row.Fingerprint}
		if _, exists := s.rows[k]; !exists {
			s.order = append(s.order, k)
		}

		s.rows[k] = row
	}
}

func (s *Store) FindInWindow(_ context.Context, accountID string, from, to time.Time) ([]*transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windowReads++

	from, to = transaction.DateOnly(from), transaction.DateOnly(to)

	var out []*transaction.Transaction

	for _, k := range s.order {
		row := s.rows[k]
		if row.AccountID != accountID || row.Date.Before(from) || row.Date.After(to) {
			continue
		}

		out = append(out, &row)
	}

	return out, nil
}

func (s *Store) Insert(_ context.Context, tx *transaction.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertCalls++
	call := s.insertCalls

	if s.BeforeInsert != nil {
		if err := s.BeforeInsert(call, tx); err != nil {
			return false, err
		}
	}

	k := key{account: tx.AccountID, fingerprint: tx.Fingerprint}
	if _, exists := s.rows[k]; exists {
		return false, nil
	}

	tx.ID = uuid.New()
	tx.CreatedAt = time.Now()
	s.rows[k] = *tx
	s.order = append(s.order, k)

	if s.AfterInsert != nil {
		if err := s.AfterInsert(call, tx); err != nil {
			return false, err
		}
	}

	return true, nil
}

func (s *Store) BatchOf(_ context.Context, accountID string, fp transaction.Fingerprint) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key{account: accountID, fingerprint: fp}]
	if !ok {
		return uuid.Nil, transaction.ErrNotFound
	}

	return row.BatchID, nil
}

func (s *Store) CountByBatch(_ context.Context, batchID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CountErr != nil {
		return 0, s.CountErr
	}

	n := 0

	for _, row := range s.rows {
		if row.BatchID == batchID {
			n++
		}
	}

	return n, nil
}

// All returns the stored rows in insertion order.
func (s *Store) All() []transaction.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]transaction.Transaction, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.rows[k])
	}

	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rows)
}

func (s *Store) InsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertCalls
}

func (s *Store) WindowReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.windowReads
}
