// Package insights derives recurring charges, spending spikes and monthly trends from the ledger.
package insights

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecurringCharge is a group of debits on one account sharing a description key and amount.
type RecurringCharge struct {
	AccountID   string
	Description string
	Amount      decimal.Decimal
	Occurrences int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Subscription is a recurring charge that looks like a subscription, either by name or by
// repeating often enough.
type Subscription struct {
	AccountID   string
	Description string
	Amount      decimal.Decimal
	Occurrences int
	FirstSeen   time.Time
	LastSeen    time.Time
	// KeywordMatch is set when the description names a known subscription or billing term.
	KeywordMatch bool
}

// Expense is one debit as seen by anomaly detection. Merchant falls back to the description.
type Expense struct {
	Date     time.Time
	Amount   decimal.Decimal
	Category string
	Merchant string
}

type AnomalyType string

const (
	AnomalySpike       AnomalyType = "spike"
	AnomalyNewMerchant AnomalyType = "new_merchant"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Anomaly struct {
	Type     AnomalyType
	Severity Severity
	Category string
	Merchant string
	Amount   decimal.Decimal
	Date     time.Time
	// Average is the trailing category average a spike was measured against. Zero for new merchants.
	Average decimal.Decimal
}

// MonthTotal is the spending booked in the calendar month starting at Month.
type MonthTotal struct {
	Month time.Time
	Total decimal.Decimal
}

type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
)

type Trend struct {
	Direction     Direction
	ChangePercent float64
	CurrentMonth  decimal.Decimal
	PreviousMonth decimal.Decimal
	// Monthly holds at most the last twelve months, oldest first.
	Monthly []MonthTotal
}
