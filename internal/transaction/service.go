package transaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=transaction
type Repository interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error)
	UpdateEnrichment(ctx context.Context, id uuid.UUID, e Enrichment) error
	SummarizeByCategory(ctx context.Context, filter ListFilter) ([]CategoryTotal, error)

	UpsertStatement(ctx context.Context, st *Statement) error
	ListStatements(ctx context.Context) ([]*Statement, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type ListFilter struct {
	AccountID *string
	StartDate *time.Time
	EndDate   *time.Time
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// Enrich backfills merchant, categories and confidence. Fields left nil keep their stored value;
// other fields are immutable once persisted.
func (s *Service) Enrich(ctx context.Context, id uuid.UUID, e Enrichment) (*Transaction, error) {
	if e.Merchant == nil && e.Categories == nil && e.Confidence == nil {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidEnrichment)
	}

	if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1) {
		return nil, fmt.Errorf("%w: confidence %v out of range [0, 1]", ErrInvalidEnrichment, *e.Confidence)
	}

	e.Categories = cleanCategories(e.Categories)

	if err := s.repo.UpdateEnrichment(ctx, id, e); err != nil {
		return nil, err
	}

	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) Summary(ctx context.Context, filter ListFilter) ([]CategoryTotal, error) {
	return s.repo.SummarizeByCategory(ctx, filter)
}

func (s *Service) SaveStatement(ctx context.Context, st *Statement) error {
	if st == nil {
		return nil
	}

	return s.repo.UpsertStatement(ctx, st)
}

func (s *Service) Statements(ctx context.Context) ([]*Statement, error) {
	return s.repo.ListStatements(ctx)
}

func cleanCategories(in []string) []string {
	if in == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))

	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}

		if _, dup := seen[strings.ToLower(c)]; dup {
			continue
		}

		seen[strings.ToLower(c)] = struct{}{}
		out = append(out, c)
	}

	return out
}
