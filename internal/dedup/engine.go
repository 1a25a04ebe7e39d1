package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

// Store is the read side of the ledger. The engine queries it on every call and keeps nothing between calls.
type Store interface {
	FindInWindow(ctx context.Context, accountID string, from, to time.Time) ([]*transaction.Transaction, error)
}

// Policy controls how far apart two records may be and still describe the same event.
type Policy struct {
	Window            time.Duration
	DescriptionPrefix int
}

func DefaultPolicy() Policy {
	return Policy{
		Window:            72 * time.Hour,
		DescriptionPrefix: transaction.DefaultDescriptionPrefix,
	}
}

// Duplicate pairs a rejected candidate with the record it repeats.
type Duplicate struct {
	Candidate *transaction.Transaction
	Existing  *transaction.Transaction
}

type Classification struct {
	New        []*transaction.Transaction
	Duplicates []Duplicate
}

type Engine struct {
	store  Store
	policy Policy
}

func NewEngine(store Store, policy Policy) *Engine {
	if policy.Window < 0 {
		policy.Window = -policy.Window
	}

	return &Engine{store: store, policy: policy}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

type matchKey struct {
	amount         string
	descriptionKey string
}

type span struct {
	min, max time.Time
}

// Classify stamps every candidate with its fingerprint and splits the batch into records that are
// new to the ledger and records that repeat an existing one. A candidate repeats a record when both
// share account, amount and description key and their dates are within the policy window; with
// several matches the closest date wins. Earlier new candidates of the same batch count as existing.
//
// The result is advisory: concurrent batches may both see a record as new, and the ledger's
// uniqueness constraint decides which write lands.
func (e *Engine) Classify(ctx context.Context, candidates []*transaction.Transaction) (*Classification, error) {
	result := &Classification{}
	if len(candidates) == 0 {
		return result, nil
	}

	spans := make(map[string]*span)
	accounts := make([]string, 0)

	for _, c := range candidates {
		c.Stamp(e.policy.DescriptionPrefix)

		sp, ok := spans[c.AccountID]
		if !ok {
			spans[c.AccountID] = &span{min: c.Date, max: c.Date}
			accounts = append(accounts, c.AccountID)

			continue
		}

		if c.Date.Before(sp.min) {
			sp.min = c.Date
		}

		if c.Date.After(sp.max) {
			sp.max = c.Date
		}
	}

	index := make(map[string]map[matchKey][]*transaction.Transaction, len(accounts))

	for _, account := range accounts {
		sp := spans[account]

		existing, err := e.store.FindInWindow(ctx, account, sp.min.Add(-e.policy.Window), sp.max.Add(e.policy.Window))
		if err != nil {
			return nil, fmt.Errorf("reading ledger window for account %s: %w", account, err)
		}

		byKey := make(map[matchKey][]*transaction.Transaction, len(existing))
		for _, x := range existing {
			k := keyOf(x, e.policy.DescriptionPrefix)
			byKey[k] = append(byKey[k], x)
		}

		index[account] = byKey
	}

	for _, c := range candidates {
		byKey := index[c.AccountID]
		k := keyOf(c, e.policy.DescriptionPrefix)

		if match := e.closest(c, byKey[k]); match != nil {
			result.Duplicates = append(result.Duplicates, Duplicate{Candidate: c, Existing: match})
			continue
		}

		byKey[k] = append(byKey[k], c)
		result.New = append(result.New, c)
	}

	return result, nil
}

func (e *Engine) closest(c *transaction.Transaction, pool []*transaction.Transaction) *transaction.Transaction {
	var (
		best     *transaction.Transaction
		bestDist time.Duration
	)

	for _, x := range pool {
		d := absDuration(c.Date.Sub(x.Date))
		if d > e.policy.Window {
			continue
		}

		if best == nil || d < bestDist {
			best, bestDist = x, d
		}
	}

	return best
}

// keyOf derives the key from the description so rows stamped under an older prefix length still match.
func keyOf(t *transaction.Transaction, prefix int) matchKey {
	return matchKey{
		amount:         t.Amount.StringFixed(2),
		descriptionKey: transaction.DescriptionKey(t.Description, prefix),
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
