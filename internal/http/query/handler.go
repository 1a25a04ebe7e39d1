package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MrJamesThe3rd/expense-explorer/internal/job"
	"github.com/MrJamesThe3rd/expense-explorer/internal/query"
)

type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

type Handler struct {
	asker    Asker
	validate *validator.Validate
}

func NewHandler(asker Asker) *Handler {
	return &Handler{asker: asker, validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.ask)
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	answer, err := h.asker.Ask(r.Context(), req.Question)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(askResponse{Answer: answer}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func statusOf(err error) int {
	var subErr *job.SubmissionError

	switch {
	case errors.Is(err, query.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, job.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &subErr), errors.Is(err, job.ErrRemote), errors.Is(err, job.ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
