// Package extraction turns the loosely typed output of an ingest job into ledger-ready transactions.
package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

var ErrEmpty = errors.New("extraction produced no valid transactions")

// Reject explains why one raw record was dropped.
type Reject struct {
	Index  int
	Reason string
}

// ValidationError is returned when not a single record survived normalization.
type ValidationError struct {
	Rejects []Reject
}

func (e *ValidationError) Error() string {
	if len(e.Rejects) == 0 {
		return ErrEmpty.Error()
	}

	return fmt.Sprintf("%v: %d record(s) rejected, first: record %d: %s",
		ErrEmpty, len(e.Rejects), e.Rejects[0].Index, e.Rejects[0].Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrEmpty }

type Batch struct {
	Transactions []*transaction.Transaction
	Rejects      []Reject
	// Statement is nil when the extractor returned no summary.
	Statement *transaction.Statement
}

var (
	creditTypes = []string{"credit", "payment", "refund", "return", "reversal", "cashback", "adjustment credit"}
	debitTypes  = []string{"debit", "purchase", "sale", "fee", "charge", "interest", "withdrawal", "cash advance"}

	// Only consulted when the record carries no transaction type.
	creditPhrases = []string{"PAYMENT THANK YOU", "PAYMENT - THANK YOU", "AUTOPAY PAYMENT", "ONLINE PAYMENT"}
)

// Normalize validates raw records one by one. A record without a date, description or amount is
// rejected with a reason and the rest are kept. Amounts follow one convention: expenses positive,
// credits and payments negative. Fingerprints are left to the dedup engine.
func Normalize(raw Result, sourceDocumentID string) (*Batch, error) {
	summary := summaryOf(raw.Summary, sourceDocumentID)
	batch := &Batch{Statement: statementOf(summary, sourceDocumentID)}

	fallbackAccount := transaction.UnknownAccount
	if account, ok := summary.str("account_last_4", "account"); ok {
		fallbackAccount = account
	}

	for i, msg := range raw.Transactions {
		tx, err := normalizeRecord(msg, fallbackAccount, sourceDocumentID)
		if err != nil {
			batch.Rejects = append(batch.Rejects, Reject{Index: i, Reason: err.Error()})
			continue
		}

		batch.Transactions = append(batch.Transactions, tx)
	}

	if len(batch.Transactions) == 0 {
		return nil, &ValidationError{Rejects: batch.Rejects}
	}

	return batch, nil
}

func normalizeRecord(msg json.RawMessage, fallbackAccount, source string) (*transaction.Transaction, error) {
	var r record
	if err := json.Unmarshal(msg, &r); err != nil {
		return nil, errors.New("record is not an object")
	}

	dateText, ok := r.str("date", "transaction_date")
	if !ok {
		return nil, errors.New("missing date")
	}

	date, err := parseDate(dateText)
	if err != nil {
		return nil, err
	}

	description, ok := r.str("description", "raw_description")
	if !ok {
		return nil, errors.New("missing description")
	}

	amountRaw, ok := r["amount"]
	if !ok {
		return nil, errors.New("missing amount")
	}

	amount, err := parseAmount(amountRaw)
	if err != nil {
		return nil, err
	}

	typ, _ := r.str("transaction_type", "type")
	amount = signed(amount, typ, description)

	tx := &transaction.Transaction{
		AccountID:      fallbackAccount,
		Date:           date,
		PostingDate:    optDate(r.optStr("posting_date", "post_date")),
		Description:    description,
		Amount:         amount,
		Currency:       "USD",
		PaymentMethod:  r.optStr("payment_method"),
		SourceDocument: source,
		Confidence:     r.confidence(),
	}

	if account, ok := r.str("account_last_4", "account"); ok {
		tx.AccountID = account
	}

	if cur, ok := r.str("currency"); ok && len(cur) == 3 {
		tx.Currency = strings.ToUpper(cur)
	}

	merchantRaw, ok := r.str("merchant", "merchant_name")
	if !ok {
		merchantRaw = description
	}

	if m := NormalizeMerchant(merchantRaw); m != "" {
		tx.Merchant = &m
	}

	tx.Categories = categoriesOf(r, tx.Merchant, description)

	return tx, nil
}

// signed applies the sign convention. An explicit type wins over the sign the amount was written with.
func signed(amount decimal.Decimal, typ, description string) decimal.Decimal {
	t := strings.ToLower(strings.TrimSpace(typ))

	switch {
	case slices.Contains(creditTypes, t):
		return amount.Abs().Neg()
	case slices.Contains(debitTypes, t):
		return amount.Abs()
	case t == "":
		upper := strings.ToUpper(description)
		for _, p := range creditPhrases {
			if strings.Contains(upper, p) {
				return amount.Abs().Neg()
			}
		}
	}

	return amount
}

func categoriesOf(r record, merchant *string, description string) []string {
	var out []string

	add := func(c string) {
		c = strings.TrimSpace(c)
		if c == "" {
			return
		}

		for _, have := range out {
			if strings.EqualFold(have, c) {
				return
			}
		}

		out = append(out, c)
	}

	for _, c := range r.list("category") {
		add(c)
	}

	for _, c := range r.list("categories") {
		add(c)
	}

	for _, c := range r.list("tags") {
		add(c)
	}

	if len(out) == 0 {
		m := ""
		if merchant != nil {
			m = *merchant
		}

		add(InferCategory(m, description))
	}

	return out
}

// summaryOf reads the optional summary block. A summary that is not an object is dropped so the
// transactions still go through.
func summaryOf(raw json.RawMessage, source string) record {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		slog.Warn("ignoring malformed statement summary", "file", source, "error", err)
		return nil
	}

	return r
}

func statementOf(s record, source string) *transaction.Statement {
	if s == nil {
		return nil
	}

	return &transaction.Statement{
		SourceFile:     source,
		ProviderName:   s.optStr("provider_name", "provider"),
		AccountLast4:   s.optStr("account_last_4", "account"),
		PeriodStart:    optDate(s.optStr("period_start", "statement_start")),
		PeriodEnd:      optDate(s.optStr("period_end", "statement_end")),
		OpeningBalance: optDecimal(s["opening_balance"]),
		ClosingBalance: optDecimal(s["closing_balance"]),
		TotalCredits:   optDecimal(s["total_credits"]),
		TotalDebits:    optDecimal(s["total_debits"]),
	}
}
