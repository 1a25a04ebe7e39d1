package insights_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	insightsHandler "github.com/MrJamesThe3rd/expense-explorer/internal/http/insights"
	"github.com/MrJamesThe3rd/expense-explorer/internal/insights"
)

func serve(repo insights.Repository, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/insights", insightsHandler.NewHandler(insights.NewService(repo, 0)).Routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func TestHandler_Subscriptions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := insights.NewMockRepository(ctrl)
	repo.EXPECT().CachedInsight(gomock.Any(), "subscriptions").Return(nil, nil)
	repo.EXPECT().RecurringCharges(gomock.Any(), 2, gomock.Any()).Return([]insights.RecurringCharge{{
		AccountID:   "1234",
		Description: "SPOTIFY USA",
		Amount:      decimal.RequireFromString("11.99"),
		Occurrences: 2,
		FirstSeen:   time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
		LastSeen:    time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	}}, nil)
	repo.EXPECT().SaveInsight(gomock.Any(), "subscriptions", gomock.Any(), gomock.Any()).Return(nil)

	rec := serve(repo, httptest.NewRequest(http.MethodGet, "/insights/subscriptions", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "SPOTIFY USA", resp[0]["description"])
	assert.Equal(t, "11.99", resp[0]["amount"])
	assert.Equal(t, "2025-02-14", resp[0]["first_seen"])
	assert.Equal(t, true, resp[0]["is_likely_subscription"])
}

func TestHandler_Anomalies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	repo := insights.NewMockRepository(ctrl)
	repo.EXPECT().CachedInsight(gomock.Any(), "anomalies").Return(nil, nil)
	repo.EXPECT().Expenses(gomock.Any(), gomock.Any()).Return([]insights.Expense{
		{Date: day, Amount: decimal.RequireFromString("40"), Category: "Groceries", Merchant: "SAFEWAY"},
		{Date: day.AddDate(0, 0, 7), Amount: decimal.RequireFromString("40"), Category: "Groceries", Merchant: "SAFEWAY"},
		{Date: day.AddDate(0, 0, 14), Amount: decimal.RequireFromString("130"), Category: "Groceries", Merchant: "SAFEWAY"},
	}, nil)
	repo.EXPECT().SaveInsight(gomock.Any(), "anomalies", gomock.Any(), gomock.Any()).Return(nil)

	rec := serve(repo, httptest.NewRequest(http.MethodGet, "/insights/anomalies", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "spike", resp[0]["type"])
	assert.Equal(t, "medium", resp[0]["severity"])
	assert.Equal(t, "2025-03-15", resp[0]["date"])
	assert.Equal(t, "40", resp[0]["category_average"])
}

func TestHandler_Trends(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		setupMock func(m *insights.MockRepository)
		wantCode  int
		wantTrend string
	}{
		{
			name: "Computed",
			path: "/insights/trends",
			setupMock: func(m *insights.MockRepository) {
				m.EXPECT().CachedInsight(gomock.Any(), "trends").Return(nil, nil)
				m.EXPECT().MonthlyTotals(gomock.Any(), gomock.Any()).Return([]insights.MonthTotal{
					{Month: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("400")},
					{Month: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Total: decimal.RequireFromString("500")},
				}, nil)
				m.EXPECT().SaveInsight(gomock.Any(), "trends", gomock.Any(), gomock.Any()).Return(nil)
			},
			wantCode:  http.StatusOK,
			wantTrend: "increasing",
		},
		{
			name: "RefreshSkipsCache",
			path: "/insights/trends?refresh=true",
			setupMock: func(m *insights.MockRepository) {
				m.EXPECT().MonthlyTotals(gomock.Any(), gomock.Any()).Return(nil, nil)
				m.EXPECT().SaveInsight(gomock.Any(), "trends", gomock.Any(), gomock.Any()).Return(nil)
			},
			wantCode:  http.StatusOK,
			wantTrend: "stable",
		},
		{
			name:     "InvalidRefresh",
			path:     "/insights/trends?refresh=sometimes",
			wantCode: http.StatusBadRequest,
		},
		{
			name: "RepoError",
			path: "/insights/trends",
			setupMock: func(m *insights.MockRepository) {
				m.EXPECT().CachedInsight(gomock.Any(), "trends").Return(nil, nil)
				m.EXPECT().MonthlyTotals(gomock.Any(), gomock.Any()).Return(nil, errors.New("db error"))
			},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := insights.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			rec := serve(repo, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.wantCode, rec.Code)

			if tt.wantCode != http.StatusOK {
				return
			}

			var resp map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantTrend, resp["trend"])
			assert.NotNil(t, resp["monthly"])
		})
	}
}
