package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/expense-explorer/internal/http/insights"
	"github.com/MrJamesThe3rd/expense-explorer/internal/http/merchant"
	"github.com/MrJamesThe3rd/expense-explorer/internal/http/query"
	"github.com/MrJamesThe3rd/expense-explorer/internal/http/statement"
	"github.com/MrJamesThe3rd/expense-explorer/internal/http/transaction"
)

func New(
	allowedOrigins []string,
	transactionsV1 *transaction.Handler,
	statementsV1 *statement.Handler,
	queryV1 *query.Handler,
	merchantsV1 *merchant.Handler,
	insightsV1 *insights.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			transactionsV1.Routes(r)
		})

		r.Route("/statements", statementsV1.Routes)

		r.Route("/query", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			queryV1.Routes(r)
		})

		r.Route("/merchants", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			merchantsV1.Routes(r)
		})

		r.Route("/insights", insightsV1.Routes)
	})

	return router
}
