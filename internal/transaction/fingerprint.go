package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultDescriptionPrefix is the number of normalized description characters that take part in the fingerprint.
const DefaultDescriptionPrefix = 24

// Fingerprint identifies a real-world transaction across documents and extraction runs.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// DescriptionKey folds case, strips diacritics and punctuation, collapses whitespace and keeps
// the first prefix runes. Two descriptions with the same key are treated as the same merchant line.
func DescriptionKey(description string, prefix int) string {
	// Casers and transform chains are stateful, so they are built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())

	folded, _, err := transform.String(t, description)
	if err != nil {
		folded = strings.ToLower(description)
	}

	var sb strings.Builder

	space := false

	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}

			sb.WriteRune(r)

			space = false
		default:
			space = true
		}
	}

	key := []rune(sb.String())
	if prefix > 0 && len(key) > prefix {
		key = key[:prefix]
	}

	return strings.TrimSpace(string(key))
}

// NewFingerprint hashes the identifying fields of a transaction.
func NewFingerprint(accountID string, date time.Time, amount decimal.Decimal, descriptionKey string) Fingerprint {
	h := sha256.New()
	h.Write([]byte(accountID))
	h.Write([]byte{0})
	h.Write([]byte(DateOnly(date).Format(time.DateOnly)))
	h.Write([]byte{0})
	h.Write([]byte(amount.StringFixed(2)))
	h.Write([]byte{0})
	h.Write([]byte(descriptionKey))

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// Stamp fills DescriptionKey and Fingerprint from the transaction's current fields.
func (t *Transaction) Stamp(prefix int) {
	t.DescriptionKey = DescriptionKey(t.Description, prefix)
	t.Fingerprint = NewFingerprint(t.AccountID, t.Date, t.Amount, t.DescriptionKey)
}
