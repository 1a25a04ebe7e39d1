package transaction

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidEnrichment = errors.New("invalid enrichment")
)

// UnknownAccount is used when neither the record nor the statement names an account.
const UnknownAccount = "unknown"

// Transaction is the canonical ledger record.
type Transaction struct {
	ID             uuid.UUID
	AccountID      string
	Date           time.Time // calendar date, UTC midnight
	PostingDate    *time.Time
	Description    string
	Amount         decimal.Decimal // negative for credits and payments
	Currency       string
	Merchant       *string
	Categories     []string
	PaymentMethod  *string
	SourceDocument string
	Confidence     *float64
	DescriptionKey string
	Fingerprint    Fingerprint
	BatchID        uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// Enrichment holds the fields that may be backfilled after a transaction is persisted.
type Enrichment struct {
	Merchant   *string
	Categories []string
	Confidence *float64
}

// Statement is the summary block of one ingested document.
type Statement struct {
	SourceFile     string
	ProviderName   *string
	AccountLast4   *string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	OpeningBalance *decimal.Decimal
	ClosingBalance *decimal.Decimal
	TotalCredits   *decimal.Decimal
	TotalDebits    *decimal.Decimal
	UpdatedAt      time.Time
}

// CategoryTotal is the sum of amounts booked under one category.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
