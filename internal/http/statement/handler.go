package statement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expense-explorer/internal/extraction"
	"github.com/MrJamesThe3rd/expense-explorer/internal/ingest"
	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

type Ingester interface {
	IngestAll(ctx context.Context, docs []ingest.Document) []*ingest.Report
}

type Lister interface {
	Statements(ctx context.Context) ([]*transaction.Statement, error)
}

type Handler struct {
	ingester Ingester
	lister   Lister
	maxBytes int64
}

// NewHandler caps the whole multipart body at maxBytes.
func NewHandler(ingester Ingester, lister Lister, maxBytes int64) *Handler {
	return &Handler{ingester: ingester, lister: lister, maxBytes: maxBytes}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.upload)
	r.Get("/", h.list)
}

type rejectResponse struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type resultResponse struct {
	Filename   string           `json:"filename"`
	Status     ingest.Status    `json:"status"`
	Message    string           `json:"message"`
	JobID      string           `json:"job_id,omitempty"`
	BatchID    *uuid.UUID       `json:"batch_id,omitempty"`
	Extracted  int              `json:"extracted"`
	Inserted   int              `json:"inserted"`
	Duplicates int              `json:"duplicates"`
	Verified   bool             `json:"verified"`
	Rejected   []rejectResponse `json:"rejected,omitempty"`
}

type uploadResponse struct {
	Results []resultResponse `json:"results"`
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}

		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)

		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}

	docs := make([]ingest.Document, 0, len(files))

	for _, fh := range files {
		doc, err := readDocument(fh)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		docs = append(docs, doc)
	}

	reports := h.ingester.IngestAll(r.Context(), docs)

	resp := uploadResponse{Results: make([]resultResponse, len(reports))}
	for i, rep := range reports {
		resp.Results[i] = toResultResponse(rep)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(uploadStatus(reports))

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// uploadStatus is 201 when every document went in completely, 422 when every one was rejected
// as unsupported content and 207 otherwise.
func uploadStatus(reports []*ingest.Report) int {
	complete, unsupported := 0, 0

	for _, rep := range reports {
		switch {
		case rep.Status() == ingest.StatusComplete:
			complete++
		case errors.Is(rep.Err, ingest.ErrUnsupportedContent):
			unsupported++
		}
	}

	switch len(reports) {
	case complete:
		return http.StatusCreated
	case unsupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusMultiStatus
	}
}

func readDocument(fh *multipart.FileHeader) (ingest.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.Document{}, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ingest.Document{}, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}

	return ingest.Document{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Bytes:       data,
	}, nil
}

func toResultResponse(rep *ingest.Report) resultResponse {
	resp := resultResponse{
		Filename:   rep.Filename,
		Status:     rep.Status(),
		Message:    rep.Message(),
		JobID:      rep.JobID,
		Extracted:  rep.Extracted,
		Inserted:   rep.Inserted,
		Duplicates: rep.Duplicates,
		Verified:   rep.Verified,
	}

	if rep.BatchID != uuid.Nil {
		resp.BatchID = new(rep.BatchID)
	}

	for _, rej := range rep.Rejected {
		resp.Rejected = append(resp.Rejected, toRejectResponse(rej))
	}

	return resp
}

func toRejectResponse(r extraction.Reject) rejectResponse {
	return rejectResponse{Index: r.Index, Reason: r.Reason}
}

type statementResponse struct {
	SourceFile     string           `json:"source_file"`
	ProviderName   *string          `json:"provider_name,omitempty"`
	AccountLast4   *string          `json:"account_last4,omitempty"`
	PeriodStart    *string          `json:"period_start,omitempty"`
	PeriodEnd      *string          `json:"period_end,omitempty"`
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`
	TotalCredits   *decimal.Decimal `json:"total_credits,omitempty"`
	TotalDebits    *decimal.Decimal `json:"total_debits,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	statements, err := h.lister.Statements(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]statementResponse, len(statements))
	for i, st := range statements {
		resp[i] = statementResponse{
			SourceFile:     st.SourceFile,
			ProviderName:   st.ProviderName,
			AccountLast4:   st.AccountLast4,
			PeriodStart:    formatDate(st.PeriodStart),
			PeriodEnd:      formatDate(st.PeriodEnd),
			OpeningBalance: st.OpeningBalance,
			ClosingBalance: st.ClosingBalance,
			TotalCredits:   st.TotalCredits,
			TotalDebits:    st.TotalDebits,
			UpdatedAt:      st.UpdatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}

	return new(t.Format(time.DateOnly))
}
