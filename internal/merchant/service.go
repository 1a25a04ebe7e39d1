package merchant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=merchant

var ErrInvalidAlias = errors.New("raw pattern and merchant are required")

// Alias maps any description containing RawPattern, case-insensitively, to Merchant.
type Alias struct {
	ID         int64
	RawPattern string
	Merchant   string
	CreatedAt  time.Time
}

type Repository interface {
	CreateAlias(ctx context.Context, rawPattern, merchant string) error
	// ListAliases returns aliases longest pattern first, newest first among equal lengths.
	ListAliases(ctx context.Context) ([]Alias, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest returns the merchant of the longest alias matching description, or "" when none does.
// It matches exactly as Apply does.
func (s *Service) Suggest(ctx context.Context, description string) (string, error) {
	aliases, err := s.repo.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("listing merchant aliases: %w", err)
	}

	if a, ok := match(aliases, description); ok {
		return a.Merchant, nil
	}

	return "", nil
}

func (s *Service) Learn(ctx context.Context, rawPattern, merchant string) error {
	rawPattern, merchant = strings.TrimSpace(rawPattern), strings.TrimSpace(merchant)
	if rawPattern == "" || merchant == "" {
		return ErrInvalidAlias
	}

	return s.repo.CreateAlias(ctx, rawPattern, merchant)
}

func (s *Service) Aliases(ctx context.Context) ([]Alias, error) {
	return s.repo.ListAliases(ctx)
}

// Apply overwrites the merchant of every transaction whose description matches an alias and
// returns how many were changed. Aliases are read once per call.
func (s *Service) Apply(ctx context.Context, txs []*transaction.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	aliases, err := s.repo.ListAliases(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing merchant aliases: %w", err)
	}

	if len(aliases) == 0 {
		return 0, nil
	}

	changed := 0

	for _, tx := range txs {
		a, ok := match(aliases, tx.Description)
		if !ok {
			continue
		}

		tx.Merchant = &a.Merchant
		changed++
	}

	return changed, nil
}

// match returns the first alias whose pattern is a literal, case-insensitive substring of
// description. aliases must already be ordered longest pattern first.
func match(aliases []Alias, description string) (Alias, bool) {
	desc := strings.ToLower(description)

	for _, a := range aliases {
		if strings.Contains(desc, strings.ToLower(a.RawPattern)) {
			return a, true
		}
	}

	return Alias{}, false
}
