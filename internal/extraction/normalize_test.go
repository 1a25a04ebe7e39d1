package extraction_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/expense-explorer/internal/extraction"
	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func records(t *testing.T, items ...string) []json.RawMessage {
	t.Helper()

	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		require.True(t, json.Valid([]byte(it)), it)
		out = append(out, json.RawMessage(it))
	}

	return out
}

func TestNormalize_SingleRecord(t *testing.T) {
	raw := extraction.Result{Transactions: records(t,
		`{"date":"2024-03-05","description":"NAMECHEAP.COM","amount":12.98,"transaction_type":"Debit","account_last_4":"1234"}`,
	)}

	batch, err := extraction.Normalize(raw, "statement-march.pdf")
	require.NoError(t, err)
	require.Len(t, batch.Transactions, 1)
	assert.Empty(t, batch.Rejects)
	assert.Nil(t, batch.Statement)

	tx := batch.Transactions[0]
	assert.Equal(t, "1234", tx.AccountID)
	assert.Equal(t, date(2024, 3, 5), tx.Date)
	assert.Equal(t, "NAMECHEAP.COM", tx.Description)
	assert.Equal(t, "12.98", tx.Amount.StringFixed(2))
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, "statement-march.pdf", tx.SourceDocument)
	require.NotNil(t, tx.Merchant)
	assert.Equal(t, "Namecheap", *tx.Merchant)
	assert.Equal(t, []string{"Software"}, tx.Categories)
	assert.Empty(t, tx.Fingerprint)
}

func TestNormalize_Amounts(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   string
	}{
		{"JSONNumber", `{"date":"2024-01-02","description":"x","amount":23.98}`, "23.98"},
		{"CurrencyString", `{"date":"2024-01-02","description":"x","amount":"$1,234.50"}`, "1234.50"},
		{"Parentheses", `{"date":"2024-01-02","description":"x","amount":"(23.98)"}`, "-23.98"},
		{"TrailingCR", `{"date":"2024-01-02","description":"x","amount":"23.98 CR"}`, "-23.98"},
		{"LeadingMinus", `{"date":"2024-01-02","description":"x","amount":"-5"}`, "-5.00"},
		{"CreditTypeForcesNegative", `{"date":"2024-01-02","description":"x","amount":40,"transaction_type":"Refund"}`, "-40.00"},
		{"PaymentTypeForcesNegative", `{"date":"2024-01-02","description":"x","amount":"500.00","transaction_type":"payment"}`, "-500.00"},
		{"DebitTypeForcesPositive", `{"date":"2024-01-02","description":"x","amount":-9.99,"transaction_type":"Purchase"}`, "9.99"},
		{"PaymentPhraseWithoutType", `{"date":"2024-01-02","description":"AUTOPAY PAYMENT","amount":120}`, "-120.00"},
		{"RoundsToCents", `{"date":"2024-01-02","description":"x","amount":"3.14159"}`, "3.14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := extraction.Normalize(extraction.Result{Transactions: records(t, tt.record)}, "doc")
			require.NoError(t, err)
			require.Len(t, batch.Transactions, 1)
			assert.Equal(t, tt.want, batch.Transactions[0].Amount.StringFixed(2))
		})
	}
}

func TestNormalize_Dates(t *testing.T) {
	layouts := []string{"2024-03-05", "2024/03/05", "03/05/2024", "3/5/2024", "03/05/24", "Mar 5, 2024", "March 5, 2024", "5 Mar 2024", "2024-03-05T14:30:00Z"}

	for _, layout := range layouts {
		t.Run(layout, func(t *testing.T) {
			rec := `{"date":"` + layout + `","description":"x","amount":1}`

			batch, err := extraction.Normalize(extraction.Result{Transactions: records(t, rec)}, "doc")
			require.NoError(t, err)
			assert.Equal(t, date(2024, 3, 5), batch.Transactions[0].Date)
		})
	}
}

func TestNormalize_RejectsInvalidRecords(t *testing.T) {
	raw := extraction.Result{Transactions: records(t,
		`{"description":"no date","amount":1}`,
		`{"date":"2024-01-02","description":"  ","amount":1}`,
		`{"date":"2024-01-02","description":"no amount"}`,
		`{"date":"someday","description":"bad date","amount":1}`,
		`{"date":"2024-01-02","description":"bad amount","amount":"twelve"}`,
		`"not an object"`,
		`{"date":"2024-01-02","description":"ok","amount":"7.00"}`,
	)}

	batch, err := extraction.Normalize(raw, "doc")
	require.NoError(t, err)
	require.Len(t, batch.Transactions, 1)
	assert.Equal(t, "ok", batch.Transactions[0].Description)

	require.Len(t, batch.Rejects, 6)

	for i, r := range batch.Rejects {
		assert.Equal(t, i, r.Index)
		assert.NotEmpty(t, r.Reason)
	}
}

func TestNormalize_Empty(t *testing.T) {
	tests := []struct {
		name        string
		raw         extraction.Result
		wantRejects int
	}{
		{"NoRecords", extraction.Result{}, 0},
		{"AllInvalid", extraction.Result{Transactions: records(t, `{"amount":1}`, `{"date":"2024-01-01"}`)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := extraction.Normalize(tt.raw, "doc")
			require.Error(t, err)
			assert.Nil(t, batch)
			assert.ErrorIs(t, err, extraction.ErrEmpty)

			var verr *extraction.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Rejects, tt.wantRejects)
		})
	}
}

func TestNormalize_AccountFallback(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		record  string
		want    string
	}{
		{"RecordAccount", `{"account_last_4":"9876"}`, `{"date":"2024-01-02","description":"x","amount":1,"account_last_4":"1111"}`, "1111"},
		{"SummaryAccount", `{"account_last_4":"9876"}`, `{"date":"2024-01-02","description":"x","amount":1}`, "9876"},
		{"NumericSummaryAccount", `{"account_last_4":9876}`, `{"date":"2024-01-02","description":"x","amount":1}`, "9876"},
		{"Unknown", ``, `{"date":"2024-01-02","description":"x","amount":1}`, transaction.UnknownAccount},
		{"MalformedSummary", `["not","an","object"]`, `{"date":"2024-01-02","description":"x","amount":1}`, transaction.UnknownAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := extraction.Result{Transactions: records(t, tt.record)}
			if tt.summary != "" {
				raw.Summary = json.RawMessage(tt.summary)
			}

			batch, err := extraction.Normalize(raw, "doc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, batch.Transactions[0].AccountID)
		})
	}
}

func TestNormalize_Categories(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   []string
	}{
		{"CategoryAndTags", `{"date":"2024-01-02","description":"x","amount":1,"category":"Dining","tags":["work","dining"]}`, []string{"Dining", "work"}},
		{"CommaSeparatedTags", `{"date":"2024-01-02","description":"x","amount":1,"tags":"travel, hotel"}`, []string{"travel", "hotel"}},
		{"InferredFromMerchant", `{"date":"2024-01-02","description":"WHOLEFDS MKT","merchant":"Whole Foods Market","amount":1}`, []string{"Groceries"}},
		{"NothingKnown", `{"date":"2024-01-02","description":"ZXQ 4471","amount":1}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := extraction.Normalize(extraction.Result{Transactions: records(t, tt.record)}, "doc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, batch.Transactions[0].Categories)
		})
	}
}

func TestNormalize_Statement(t *testing.T) {
	raw := extraction.Result{
		Transactions: records(t, `{"date":"2024-02-03","description":"x","amount":1}`),
		Summary: json.RawMessage(`{
			"provider_name": "Chase",
			"account_last_4": 4321,
			"period_start": "2024-02-01",
			"period_end": "2024-02-29",
			"opening_balance": "1,000.00",
			"closing_balance": 875.5,
			"total_debits": {"amount": 12}
		}`),
	}

	batch, err := extraction.Normalize(raw, "feb.pdf")
	require.NoError(t, err)
	require.NotNil(t, batch.Statement)

	st := batch.Statement
	assert.Equal(t, "feb.pdf", st.SourceFile)
	assert.Equal(t, "Chase", *st.ProviderName)
	assert.Equal(t, "4321", *st.AccountLast4)
	assert.Equal(t, date(2024, 2, 1), *st.PeriodStart)
	assert.Equal(t, date(2024, 2, 29), *st.PeriodEnd)
	assert.True(t, decimal.RequireFromString("1000").Equal(*st.OpeningBalance))
	assert.True(t, decimal.RequireFromString("875.50").Equal(*st.ClosingBalance))
	assert.Nil(t, st.TotalCredits)
	assert.Nil(t, st.TotalDebits)
}

func TestDecode_BadlyTypedSummaryKeepsTransactions(t *testing.T) {
	res, err := extraction.Decode([]byte(`{
		"transactions": [{"date":"2025-11-17","description":"NAMECHEAP","amount":23.98}],
		"summary": {"account_last_4": 1234, "closing_balance": true}
	}`))
	require.NoError(t, err)

	batch, err := extraction.Normalize(res, "nov.pdf")
	require.NoError(t, err)
	require.Len(t, batch.Transactions, 1)
	assert.Equal(t, "1234", batch.Transactions[0].AccountID)
	require.NotNil(t, batch.Statement)
	assert.Equal(t, "1234", *batch.Statement.AccountLast4)
	assert.Nil(t, batch.Statement.ClosingBalance)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{"Object", `{"transactions":[{"a":1},{"b":2}]}`, 2, false},
		{"BareArray", `[{"a":1}]`, 1, false},
		{"StringEncodedObject", `"{\"transactions\":[{\"a\":1}]}"`, 1, false},
		{"Empty", ``, 0, true},
		{"Number", `42`, 0, true},
		{"BrokenObject", `{"transactions":`, 0, true},
		{"DoubleEncoded", `"\"[]\""`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := extraction.Decode([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, extraction.ErrMalformed)
				return
			}

			require.NoError(t, err)
			assert.Len(t, res.Transactions, tt.wantLen)
		})
	}
}
