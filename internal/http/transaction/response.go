package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

type transactionResponse struct {
	ID             uuid.UUID       `json:"id"`
	AccountID      string          `json:"account_id"`
	Date           string          `json:"date"`
	PostingDate    *string         `json:"posting_date,omitempty"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Merchant       *string         `json:"merchant,omitempty"`
	Categories     []string        `json:"categories,omitempty"`
	PaymentMethod  *string         `json:"payment_method,omitempty"`
	SourceDocument string          `json:"source_document"`
	Confidence     *float64        `json:"confidence,omitempty"`
	BatchID        uuid.UUID       `json:"batch_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
}

func toResponse(tx *transaction.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:             tx.ID,
		AccountID:      tx.AccountID,
		Date:           tx.Date.Format(time.DateOnly),
		Description:    tx.Description,
		Amount:         tx.Amount,
		Currency:       tx.Currency,
		Merchant:       tx.Merchant,
		Categories:     tx.Categories,
		PaymentMethod:  tx.PaymentMethod,
		SourceDocument: tx.SourceDocument,
		Confidence:     tx.Confidence,
		BatchID:        tx.BatchID,
		CreatedAt:      tx.CreatedAt,
		UpdatedAt:      tx.UpdatedAt,
	}

	if tx.PostingDate != nil {
		resp.PostingDate = new(tx.PostingDate.Format(time.DateOnly))
	}

	return resp
}

func toResponseList(txs []*transaction.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = toResponse(tx)
	}

	return resp
}

type categoryTotalResponse struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

func toSummaryResponse(totals []transaction.CategoryTotal) []categoryTotalResponse {
	resp := make([]categoryTotalResponse, len(totals))
	for i, t := range totals {
		resp[i] = categoryTotalResponse{Category: t.Category, Total: t.Total.Round(2), Count: t.Count}
	}

	return resp
}
