package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	time.RFC3339,
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return transaction.DateOnly(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

var amountNoise = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "",
	"USD", "", "EUR", "", "GBP", "",
	",", "", " ", "", " ", "",
)

// parseAmount accepts a JSON number or a string such as "$1,234.56", "(23.98)", "23.98 CR" or "-5".
// Numbers are read from their literal text so no float rounding is involved.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Decimal{}, errors.New("missing amount")
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Decimal{}, fmt.Errorf("amount: %w", err)
		}
	} else {
		text = string(raw)
	}

	s := strings.TrimSpace(text)
	neg := false

	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "CR") {
		neg = true
		s = strings.TrimSpace(s[:len(s)-2])
	} else if strings.HasSuffix(upper, "DR") {
		s = strings.TrimSpace(s[:len(s)-2])
	}

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}

	if strings.HasSuffix(s, "-") {
		neg = true
		s = strings.TrimSuffix(s, "-")
	}

	s = strings.Replace(s, "−", "-", 1)
	s = amountNoise.Replace(s)

	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimPrefix(s, "-")
	}

	s = strings.TrimPrefix(s, "+")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q is not numeric", text)
	}

	d = d.Abs().Round(2)
	if neg {
		return d.Neg(), nil
	}

	return d, nil
}

// record is one raw extraction record keyed by field name.
type record map[string]json.RawMessage

// str returns the first of keys holding a non-empty string. Numbers and booleans are returned as their literal text.
func (r record) str(keys ...string) (string, bool) {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}

		var s string
		if raw[0] == '"' {
			if err := json.Unmarshal(raw, &s); err != nil {
				continue
			}
		} else if raw[0] != '{' && raw[0] != '[' {
			s = string(raw)
		}

		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}

	return "", false
}

func (r record) optStr(keys ...string) *string {
	s, ok := r.str(keys...)
	if !ok {
		return nil
	}

	return &s
}

// list reads a field that may be an array of strings or a comma separated string.
func (r record) list(key string) []string {
	raw, ok := r[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var items []string
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
	} else if s, ok := r.str(key); ok {
		items = strings.Split(s, ",")
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}

	return out
}

func (r record) confidence() *float64 {
	raw, ok := r["confidence"]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || f < 0 || f > 1 {
		return nil
	}

	return &f
}

func optDecimal(raw json.RawMessage) *decimal.Decimal {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	d, err := parseAmount(raw)
	if err != nil {
		return nil
	}

	return &d
}

func optDate(s *string) *time.Time {
	if s == nil {
		return nil
	}

	t, err := parseDate(*s)
	if err != nil {
		return nil
	}

	return &t
}
