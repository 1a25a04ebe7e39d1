package extraction

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Card processors put their own tag before the merchant name.
var processorTags = map[string]bool{
	"SQ":     true,
	"TST":    true,
	"PAYPAL": true,
	"PP":     true,
	"SP":     true,
	"DD":     true,
	"PY":     true,
	"IC":     true,
	"GOOGLE": true,
}

var (
	paddedColumn = regexp.MustCompile(`\s{2,}`)
	storeNumber  = regexp.MustCompile(`\s*#\s*\d+$`)
	trailingID   = regexp.MustCompile(`\s+[0-9][0-9-]{2,}$`)
	corporate    = regexp.MustCompile(`(?i)[\s,]+(inc|llc|ltd|co|corp|corporation|company|gmbh)\.?$`)
	domain       = regexp.MustCompile(`(?i)\.(com|net|org|io|co)$`)
)

// NormalizeMerchant reduces a raw statement merchant string to a stable display name, e.g.
// "SQ *BLUE BOTTLE COFFEE" to "Blue Bottle Coffee" and "AMAZON.COM*2K1AB" to "Amazon".
func NormalizeMerchant(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if i := strings.Index(s, "*"); i >= 0 {
		head := strings.TrimSpace(s[:i])
		tail := strings.TrimSpace(s[i+1:])

		switch {
		case processorTags[strings.ToUpper(head)] || head == "":
			s = tail
		default:
			s = head
		}
	}

	s = paddedColumn.Split(s, 2)[0]

	for {
		before := s
		s = storeNumber.ReplaceAllString(s, "")
		s = trailingID.ReplaceAllString(s, "")
		s = corporate.ReplaceAllString(s, "")
		s = domain.ReplaceAllString(s, "")
		s = strings.TrimRight(strings.TrimSpace(s), ",.-")

		if s == before {
			break
		}
	}

	if s == "" {
		return ""
	}

	return cases.Title(language.English).String(cases.Fold().String(s))
}

type categoryRule struct {
	category string
	keywords []string
}

// Checked in order; the first rule with a keyword contained in the merchant or description wins.
var categoryRules = []categoryRule{
	{"Groceries", []string{"whole foods", "trader joe", "safeway", "kroger", "costco", "aldi", "grocery", "market"}},
	{"Dining", []string{"starbucks", "coffee", "cafe", "restaurant", "doordash", "grubhub", "uber eats", "mcdonald", "chipotle", "pizza"}},
	{"Transport", []string{"uber", "lyft", "shell", "chevron", "exxon", "parking", "transit", "airline", "delta", "united"}},
	{"Shopping", []string{"amazon", "target", "walmart", "best buy", "ebay", "etsy"}},
	{"Subscriptions", []string{"netflix", "spotify", "hulu", "disney", "apple.com", "youtube", "patreon"}},
	{"Software", []string{"namecheap", "github", "digitalocean", "aws", "google cloud", "heroku", "openai", "adobe"}},
	{"Utilities", []string{"comcast", "verizon", "at&t", "t-mobile", "electric", "water", "internet"}},
	{"Health", []string{"pharmacy", "cvs", "walgreens", "clinic", "dental", "gym", "fitness"}},
	{"Travel", []string{"airbnb", "hotel", "marriott", "hilton", "expedia", "booking.com"}},
}

// InferCategory guesses a category from the merchant and description, returning "" when no rule applies.
func InferCategory(merchant, description string) string {
	haystack := strings.ToLower(merchant + " " + description)

	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.category
			}
		}
	}

	return ""
}
