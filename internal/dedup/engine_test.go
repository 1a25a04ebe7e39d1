package dedup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/expense-explorer/internal/dedup"
	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction/transactiontest"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func newTx(account, description, amount string, day time.Time) *transaction.Transaction {
	return &transaction.Transaction{
		AccountID:   account,
		Date:        day,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
	}
}

func stamped(tx *transaction.Transaction) *transaction.Transaction {
	tx.Stamp(transaction.DefaultDescriptionPrefix)
	return tx
}

func TestEngine_Classify(t *testing.T) {
	existing := stamped(newTx("1234", "NAMECHEAP.COM", "12.98", date(2024, 3, 5)))

	type testCase struct {
		name          string
		seed          []*transaction.Transaction
		candidates    []*transaction.Transaction
		wantNew       int
		wantDuplicate int
	}

	tests := []testCase{
		{
			name:          "EmptyLedger",
			candidates:    []*transaction.Transaction{newTx("1234", "NAMECHEAP.COM", "12.98", date(2024, 3, 5))},
			wantNew:       1,
			wantDuplicate: 0,
		},
		{
			name:          "SameRecordAgain",
			seed:          []*transaction.Transaction{existing},
			candidates:    []*transaction.Transaction{newTx("1234", "NAMECHEAP.COM", "12.98", date(2024, 3, 5))},
			wantNew:       0,
			wantDuplicate: 1,
		},
		{
			name:          "TwoDaysApart",
			seed:          []*transaction.Transaction{existing},
			candidates:    []*transaction.Transaction{newTx("1234", "NAMECHEAP.COM", "12.98", date(2024, 3, 7))},
			wantNew:       0,
			wantDuplicate: 1,
		},
		{
			name:          "TenDaysApart",
			seed:          []*transaction.Transaction{existing},
			candidates:    []*transaction.Transaction{newTx("1234", "NAMECHEAP.COM", "12.98", date(2024, 3, 15))},
			wantNew:       1,
			wantDuplicate: 0,
		},
		{
			name:          "DifferentAmount",
			seed:          []*transaction.Transaction{existing},
			candidates:    []*transaction.Transaction{newTx("1234", "NAMECHEAP.COM", "12.99", date(2024, 3, 5))},
			wantNew:       1,
			wantDuplicate: 0,
		},
		{
			name:          "DifferentAccount",
			seed:          []*transaction.Transaction{existing},
			candidates:    []*transaction.Transaction{newTx("9999", "NAMECHEAP.COM", "12.98", date(2024, 3, 5))},
			wantNew:       1,
			wantDuplicate: 0,
		},
		{
			name:          "DescriptionNoise",
			seed:          []*transaction.Transaction{existing},
			candidates:    []*transaction.Transaction{newTx("1234", "  namecheap  com ", "12.980", date(2024, 3, 6))},
			wantNew:       0,
			wantDuplicate: 1,
		},
		{
			name: "RepeatWithinBatch",
			candidates: []*transaction.Transaction{
				newTx("1234", "SPOTIFY", "9.99", date(2024, 3, 1)),
				newTx("1234", "SPOTIFY", "9.99", date(2024, 3, 2)),
			},
			wantNew:       1,
			wantDuplicate: 1,
		},
		{
			name: "MonthlyChargesStaySeparate",
			candidates: []*transaction.Transaction{
				newTx("1234", "SPOTIFY", "9.99", date(2024, 3, 1)),
				newTx("1234", "SPOTIFY", "9.99", date(2024, 4, 1)),
			},
			wantNew:       2,
			wantDuplicate: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := transactiontest.New()
			store.Seed(tt.seed...)

			engine := dedup.NewEngine(store, dedup.DefaultPolicy())

			got, err := engine.Classify(context.Background(), tt.candidates)
			require.NoError(t, err)
			assert.Len(t, got.New, tt.wantNew)
			assert.Len(t, got.Duplicates, tt.wantDuplicate)

			for _, c := range tt.candidates {
				assert.NotEmpty(t, c.Fingerprint)
			}
		})
	}
}

func TestEngine_ClosestMatchWins(t *testing.T) {
	farther := stamped(newTx("1234", "COFFEE SHOP", "4.50", date(2024, 3, 1)))
	nearer := stamped(newTx("1234", "COFFEE SHOP", "4.50", date(2024, 3, 4)))

	store := transactiontest.New()
	store.Seed(farther, nearer)

	got, err := dedup.NewEngine(store, dedup.DefaultPolicy()).Classify(context.Background(),
		[]*transaction.Transaction{newTx("1234", "COFFEE SHOP", "4.50", date(2024, 3, 3))})
	require.NoError(t, err)
	require.Len(t, got.Duplicates, 1)
	assert.Equal(t, date(2024, 3, 4), got.Duplicates[0].Existing.Date)
}

func TestEngine_WindowIsConfigurable(t *testing.T) {
	store := transactiontest.New()
	store.Seed(stamped(newTx("1234", "GYM", "30.00", date(2024, 3, 1))))

	candidate := func() []*transaction.Transaction {
		return []*transaction.Transaction{newTx("1234", "GYM", "30.00", date(2024, 3, 6))}
	}

	got, err := dedup.NewEngine(store, dedup.DefaultPolicy()).Classify(context.Background(), candidate())
	require.NoError(t, err)
	assert.Len(t, got.New, 1)

	wide := dedup.Policy{Window: 7 * 24 * time.Hour, DescriptionPrefix: transaction.DefaultDescriptionPrefix}

	got, err = dedup.NewEngine(store, wide).Classify(context.Background(), candidate())
	require.NoError(t, err)
	assert.Len(t, got.Duplicates, 1)
}

func TestEngine_ReadsLedgerEveryCall(t *testing.T) {
	store := transactiontest.New()
	engine := dedup.NewEngine(store, dedup.DefaultPolicy())

	first, err := engine.Classify(context.Background(), []*transaction.Transaction{newTx("1234", "NAMECHEAP.COM", "12.98", date(2024, 3, 5))})
	require.NoError(t, err)
	require.Len(t, first.New, 1)

	store.Seed(first.New...)

	second, err := engine.Classify(context.Background(), []*transaction.Transaction{newTx("1234", "NAMECHEAP.COM", "12.98", date(2024, 3, 5))})
	require.NoError(t, err)
	assert.Empty(t, second.New)
	assert.Len(t, second.Duplicates, 1)
	assert.Equal(t, 2, store.WindowReads())
}

type failingStore struct{}

func (failingStore) FindInWindow(context.Context, string, time.Time, time.Time) ([]*transaction.Transaction, error) {
	return nil, errors.New("connection refused")
}

func TestEngine_StoreError(t *testing.T) {
	got, err := dedup.NewEngine(failingStore{}, dedup.DefaultPolicy()).Classify(context.Background(),
		[]*transaction.Transaction{newTx("1234", "X", "1.00", date(2024, 3, 5))})
	require.Error(t, err)
	assert.Nil(t, got)
}
