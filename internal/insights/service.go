package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=insights

const DefaultCacheTTL = 7 * 24 * time.Hour

const (
	minOccurrences      = 2
	frequentOccurrences = 3

	spikeWindow      = 10
	newMerchantAfter = 20
	maxAnomalies     = 5

	trendMonths = 12
	stableBand  = 5.0
)

var (
	spikeFactor     = decimal.NewFromFloat(2.5)
	highSpikeFactor = decimal.NewFromInt(5)
	spikeFloor      = decimal.NewFromInt(50)
	hundred         = decimal.NewFromInt(100)
)

var subscriptionKeywords = []string{
	"SUBSCRIPTION", "MEMBERSHIP", "MONTHLY", "NETFLIX", "SPOTIFY", "APPLE", "AMAZON PRIME",
	"HULU", "HBO", "DISNEY", "YOUTUBE", "INSURANCE",
}

// Money moved between the user's own accounts is not spending.
var excludedCategories = []string{"Credit Card Payment", "Internal Transfer"}

const (
	insightSubscriptions = "subscriptions"
	insightAnomalies     = "anomalies"
	insightTrends        = "trends"
)

type Repository interface {
	// RecurringCharges groups debits by account, description key and amount, keeping groups seen
	// at least minOccurrences times, most frequent first.
	RecurringCharges(ctx context.Context, minOccurrences int, exclude []string) ([]RecurringCharge, error)
	// Expenses returns every debit oldest first, categorised by its first category.
	Expenses(ctx context.Context, exclude []string) ([]Expense, error)
	// MonthlyTotals sums debits per calendar month, oldest first.
	MonthlyTotals(ctx context.Context, exclude []string) ([]MonthTotal, error)
	// CachedInsight returns the stored value of an insight, or nil when it is missing, expired or
	// older than the latest ledger write.
	CachedInsight(ctx context.Context, insightType string) ([]byte, error)
	SaveInsight(ctx context.Context, insightType string, value []byte, ttl time.Duration) error
}

type Service struct {
	repo Repository
	ttl  time.Duration
}

// NewService returns a Service caching results for ttl. A non-positive ttl uses DefaultCacheTTL.
func NewService(repo Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Service{repo: repo, ttl: ttl}
}

// Subscriptions returns recurring charges that carry a subscription keyword or repeat at least
// three times. refresh skips the cache.
func (s *Service) Subscriptions(ctx context.Context, refresh bool) ([]Subscription, error) {
	return cached(ctx, s, insightSubscriptions, refresh, func(ctx context.Context) ([]Subscription, error) {
		charges, err := s.repo.RecurringCharges(ctx, minOccurrences, excludedCategories)
		if err != nil {
			return nil, fmt.Errorf("listing recurring charges: %w", err)
		}

		return subscriptionsOf(charges), nil
	})
}

// Anomalies returns the latest spending spikes and first-time merchants.
func (s *Service) Anomalies(ctx context.Context, refresh bool) ([]Anomaly, error) {
	return cached(ctx, s, insightAnomalies, refresh, func(ctx context.Context) ([]Anomaly, error) {
		expenses, err := s.repo.Expenses(ctx, excludedCategories)
		if err != nil {
			return nil, fmt.Errorf("listing expenses: %w", err)
		}

		return anomaliesOf(expenses), nil
	})
}

// Trends returns monthly spending totals and the direction of the latest month against the one
// before it.
func (s *Service) Trends(ctx context.Context, refresh bool) (Trend, error) {
	return cached(ctx, s, insightTrends, refresh, func(ctx context.Context) (Trend, error) {
		months, err := s.repo.MonthlyTotals(ctx, excludedCategories)
		if err != nil {
			return Trend{}, fmt.Errorf("summing monthly totals: %w", err)
		}

		return trendOf(months), nil
	})
}

// cached serves insightType from the cache when it is fresh and otherwise computes and stores it.
// Cache failures are logged and never fail the request.
func cached[T any](ctx context.Context, s *Service, insightType string, refresh bool, compute func(context.Context) (T, error)) (T, error) {
	if !refresh {
		raw, err := s.repo.CachedInsight(ctx, insightType)

		switch {
		case err != nil:
			slog.Warn("failed to read cached insight", "type", insightType, "error", err)
		case raw != nil:
			var v T

			err := json.Unmarshal(raw, &v)
			if err == nil {
				return v, nil
			}

			slog.Warn("discarding unreadable cached insight", "type", insightType, "error", err)
		}
	}

	v, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to encode insight", "type", insightType, "error", err)
		return v, nil
	}

	if err := s.repo.SaveInsight(ctx, insightType, raw, s.ttl); err != nil {
		slog.Warn("failed to cache insight", "type", insightType, "error", err)
	}

	return v, nil
}

func subscriptionsOf(charges []RecurringCharge) []Subscription {
	subs := make([]Subscription, 0, len(charges))

	for _, c := range charges {
		keyword := hasSubscriptionKeyword(c.Description)
		if !keyword && c.Occurrences < frequentOccurrences {
			continue
		}

		subs = append(subs, Subscription{
			AccountID:    c.AccountID,
			Description:  c.Description,
			Amount:       c.Amount,
			Occurrences:  c.Occurrences,
			FirstSeen:    c.FirstSeen,
			LastSeen:     c.LastSeen,
			KeywordMatch: keyword,
		})
	}

	return subs
}

func hasSubscriptionKeyword(description string) bool {
	upper := strings.ToUpper(description)

	for _, kw := range subscriptionKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}

	return false
}

// anomaliesOf walks expenses in date order. A spike is a debit over 50 and more than 2.5 times
// the average of the previous ten in its category. A new merchant is only reported once more
// than twenty merchants have been seen.
func anomaliesOf(expenses []Expense) []Anomaly {
	var (
		history = make(map[string][]decimal.Decimal)
		seen    = make(map[string]struct{})
		found   = make([]Anomaly, 0)
	)

	for _, e := range expenses {
		recent := history[e.Category]

		if len(recent) > 0 {
			avg := decimal.Sum(recent[0], recent[1:]...).Div(decimal.NewFromInt(int64(len(recent))))

			if e.Amount.GreaterThan(avg.Mul(spikeFactor)) && e.Amount.GreaterThan(spikeFloor) {
				severity := SeverityMedium
				if e.Amount.GreaterThan(avg.Mul(highSpikeFactor)) {
					severity = SeverityHigh
				}

				found = append(found, Anomaly{
					Type:     AnomalySpike,
					Severity: severity,
					Category: e.Category,
					Merchant: e.Merchant,
					Amount:   e.Amount,
					Date:     e.Date,
					Average:  avg.Round(2),
				})
			}
		}

		key := strings.ToLower(e.Merchant)
		if _, ok := seen[key]; !ok && len(seen) > newMerchantAfter {
			found = append(found, Anomaly{
				Type:     AnomalyNewMerchant,
				Severity: SeverityLow,
				Category: e.Category,
				Merchant: e.Merchant,
				Amount:   e.Amount,
				Date:     e.Date,
			})
		}

		recent = append(recent, e.Amount)
		if len(recent) > spikeWindow {
			recent = recent[len(recent)-spikeWindow:]
		}

		history[e.Category] = recent
		seen[key] = struct{}{}
	}

	if len(found) > maxAnomalies {
		found = found[len(found)-maxAnomalies:]
	}

	return found
}

func trendOf(months []MonthTotal) Trend {
	t := Trend{Direction: DirectionStable, Monthly: months}
	if t.Monthly == nil {
		t.Monthly = []MonthTotal{}
	}

	if len(months) > trendMonths {
		t.Monthly = months[len(months)-trendMonths:]
	}

	n := len(months)
	if n == 0 {
		return t
	}

	t.CurrentMonth = months[n-1].Total

	if n < 2 {
		return t
	}

	t.PreviousMonth = months[n-2].Total

	if !t.PreviousMonth.IsZero() {
		change := t.CurrentMonth.Sub(t.PreviousMonth).Div(t.PreviousMonth.Abs()).Mul(hundred).Round(1)
		t.ChangePercent = change.InexactFloat64()
	}

	switch {
	case t.ChangePercent > stableBand:
		t.Direction = DirectionIncreasing
	case t.ChangePercent < -stableBand:
		t.Direction = DirectionDecreasing
	}

	return t
}
