package insights

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expense-explorer/internal/insights"
)

type subscriptionResponse struct {
	AccountID            string          `json:"account_id"`
	Description          string          `json:"description"`
	Amount               decimal.Decimal `json:"amount"`
	Occurrences          int             `json:"occurrences"`
	FirstSeen            string          `json:"first_seen"`
	LastSeen             string          `json:"last_seen"`
	IsLikelySubscription bool            `json:"is_likely_subscription"`
	EstimatedMonthlyCost decimal.Decimal `json:"estimated_monthly_cost"`
}

func toSubscriptionsResponse(subs []insights.Subscription) []subscriptionResponse {
	resp := make([]subscriptionResponse, len(subs))
	for i, s := range subs {
		resp[i] = subscriptionResponse{
			AccountID:            s.AccountID,
			Description:          s.Description,
			Amount:               s.Amount,
			Occurrences:          s.Occurrences,
			FirstSeen:            s.FirstSeen.Format(time.DateOnly),
			LastSeen:             s.LastSeen.Format(time.DateOnly),
			IsLikelySubscription: s.KeywordMatch,
			EstimatedMonthlyCost: s.Amount,
		}
	}

	return resp
}

type anomalyResponse struct {
	Type            insights.AnomalyType `json:"type"`
	Severity        insights.Severity    `json:"severity"`
	Category        string               `json:"category"`
	Merchant        string               `json:"merchant"`
	Amount          decimal.Decimal      `json:"amount"`
	Date            string               `json:"date"`
	CategoryAverage *decimal.Decimal     `json:"category_average,omitempty"`
}

func toAnomaliesResponse(found []insights.Anomaly) []anomalyResponse {
	resp := make([]anomalyResponse, len(found))
	for i, a := range found {
		resp[i] = anomalyResponse{
			Type:     a.Type,
			Severity: a.Severity,
			Category: a.Category,
			Merchant: a.Merchant,
			Amount:   a.Amount,
			Date:     a.Date.Format(time.DateOnly),
		}

		if a.Type == insights.AnomalySpike {
			resp[i].CategoryAverage = new(a.Average)
		}
	}

	return resp
}

type monthTotalResponse struct {
	Month string          `json:"month"`
	Total decimal.Decimal `json:"total"`
}

type trendResponse struct {
	Trend              insights.Direction   `json:"trend"`
	ChangePercentage   float64              `json:"change_percentage"`
	CurrentMonthTotal  decimal.Decimal      `json:"current_month_total"`
	PreviousMonthTotal decimal.Decimal      `json:"previous_month_total"`
	Monthly            []monthTotalResponse `json:"monthly"`
}

func toTrendResponse(t insights.Trend) trendResponse {
	monthly := make([]monthTotalResponse, len(t.Monthly))
	for i, m := range t.Monthly {
		monthly[i] = monthTotalResponse{Month: m.Month.Format("2006-01"), Total: m.Total.Round(2)}
	}

	return trendResponse{
		Trend:              t.Direction,
		ChangePercentage:   t.ChangePercent,
		CurrentMonthTotal:  t.CurrentMonth.Round(2),
		PreviousMonthTotal: t.PreviousMonth.Round(2),
		Monthly:            monthly,
	}
}
