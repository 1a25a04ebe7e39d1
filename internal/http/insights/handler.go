package insights

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/expense-explorer/internal/insights"
)

type Handler struct {
	svc *insights.Service
}

func NewHandler(svc *insights.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/subscriptions", h.subscriptions)
	r.Get("/anomalies", h.anomalies)
	r.Get("/trends", h.trends)
}

// refreshParam reads the optional refresh query parameter.
func refreshParam(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("refresh")
	if v == "" {
		return false, nil
	}

	return strconv.ParseBool(v)
}

func (h *Handler) subscriptions(w http.ResponseWriter, r *http.Request) {
	refresh, err := refreshParam(r)
	if err != nil {
		http.Error(w, "invalid refresh parameter", http.StatusBadRequest)
		return
	}

	subs, err := h.svc.Subscriptions(r.Context(), refresh)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, toSubscriptionsResponse(subs))
}

func (h *Handler) anomalies(w http.ResponseWriter, r *http.Request) {
	refresh, err := refreshParam(r)
	if err != nil {
		http.Error(w, "invalid refresh parameter", http.StatusBadRequest)
		return
	}

	found, err := h.svc.Anomalies(r.Context(), refresh)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, toAnomaliesResponse(found))
}

func (h *Handler) trends(w http.ResponseWriter, r *http.Request) {
	refresh, err := refreshParam(r)
	if err != nil {
		http.Error(w, "invalid refresh parameter", http.StatusBadRequest)
		return
	}

	trend, err := h.svc.Trends(r.Context(), refresh)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, toTrendResponse(trend))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
