package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/expense-explorer/internal/database"
	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

var (
	// ErrRejected marks a failure that retrying cannot fix: a malformed record or a constraint the row breaks.
	ErrRejected = errors.New("rejected by ledger")
	// ErrExhausted marks a transient failure that outlasted the retry budget or the caller's context.
	ErrExhausted = errors.New("ledger retries exhausted")
)

// Store is the write side of the ledger. Insert must be guarded by a uniqueness constraint over
// (account, fingerprint) and report false, without error, when the constraint skipped the row.
type Store interface {
	Insert(ctx context.Context, tx *transaction.Transaction) (bool, error)
	BatchOf(ctx context.Context, accountID string, fp transaction.Fingerprint) (uuid.UUID, error)
	CountByBatch(ctx context.Context, batchID uuid.UUID) (int, error)
}

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// PersistError reports a batch that stopped early. Committed is the number of rows of the batch
// found in the ledger afterwards; Verified is false when that count could not be read and
// Committed is the writer's own tally instead.
type PersistError struct {
	Kind        error
	BatchID     uuid.UUID
	Transaction *transaction.Transaction
	Attempts    int
	Committed   int
	Verified    bool
	Err         error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%v after %d attempt(s), %d record(s) committed: %v", e.Kind, e.Attempts, e.Committed, e.Err)
}

func (e *PersistError) Is(target error) bool { return target == e.Kind }

func (e *PersistError) Unwrap() error { return e.Err }

type Result struct {
	BatchID uuid.UUID
	// Inserted is read back from the ledger, not counted in memory.
	Inserted int
	Verified bool
	// Raced holds records another batch committed between classification and insert.
	Raced []*transaction.Transaction
}

type Writer struct {
	store       Store
	policy      Policy
	isTransient func(error) bool
}

func NewWriter(store Store, policy Policy) *Writer {
	def := DefaultPolicy()

	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = def.MaxAttempts
	}

	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = def.InitialBackoff
	}

	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}

	if policy.AttemptTimeout <= 0 {
		policy.AttemptTimeout = def.AttemptTimeout
	}

	return &Writer{
		store:       store,
		policy:      policy,
		isTransient: database.IsTransient,
	}
}

// Persist writes txs under a fresh batch ID. Each insert is retried on transient failures and is
// idempotent per fingerprint, so a retry after a commit whose acknowledgement was lost counts the
// row once. The first failure that cannot be retried stops the batch.
func (w *Writer) Persist(ctx context.Context, txs []*transaction.Transaction) (*Result, error) {
	res := &Result{BatchID: uuid.New(), Verified: true}
	if len(txs) == 0 {
		return res, nil
	}

	tally := 0

	for _, tx := range txs {
		if err := validate(tx); err != nil {
			return res, w.fail(ctx, res, tally, &PersistError{Kind: ErrRejected, Transaction: tx, Err: err})
		}

		tx.BatchID = res.BatchID

		written, attempts, permanent, err := w.insert(ctx, tx)
		if err != nil {
			kind := ErrExhausted
			if permanent && ctx.Err() == nil {
				kind = ErrRejected
			}

			return res, w.fail(ctx, res, tally, &PersistError{Kind: kind, Transaction: tx, Attempts: attempts, Err: err})
		}

		if !written {
			res.Raced = append(res.Raced, tx)
			continue
		}

		tally++
	}

	res.Inserted, res.Verified = w.committed(ctx, res.BatchID, tally)

	return res, nil
}

func (w *Writer) fail(ctx context.Context, res *Result, tally int, perr *PersistError) error {
	perr.BatchID = res.BatchID
	perr.Committed, perr.Verified = w.committed(ctx, res.BatchID, tally)
	res.Inserted, res.Verified = perr.Committed, perr.Verified

	slog.Error("ledger batch stopped",
		"batch_id", res.BatchID,
		"kind", perr.Kind,
		"attempts", perr.Attempts,
		"committed", perr.Committed,
		"verified", perr.Verified,
		"error", perr.Err,
	)

	return perr
}

// insert runs one record through the retry policy. permanent reports whether the final error was
// classified as non-retryable.
func (w *Writer) insert(ctx context.Context, tx *transaction.Transaction) (written bool, attempts int, permanent bool, err error) {
	op := func() error {
		attempts++

		actx, cancel := context.WithTimeout(ctx, w.policy.AttemptTimeout)
		defer cancel()

		ok, err := w.store.Insert(actx, tx)
		if err != nil && !database.IsUniqueViolation(err) {
			return w.classify(ctx, err, &permanent)
		}

		if ok && err == nil {
			written = true
			return nil
		}

		// The constraint skipped the row: either an earlier attempt of this batch committed it or
		// a concurrent batch got there first.
		owner, err := w.store.BatchOf(actx, tx.AccountID, tx.Fingerprint)
		if err != nil {
			return w.classify(ctx, err, &permanent)
		}

		written = owner == tx.BatchID

		return nil
	}

	notify := func(err error, next time.Duration) {
		slog.Warn("retrying ledger insert",
			"fingerprint", tx.Fingerprint,
			"attempt", attempts,
			"backoff", next,
			"error", err,
		)
	}

	err = backoff.RetryNotify(op, w.backoff(ctx), notify)

	return written, attempts, permanent, err
}

func (w *Writer) classify(ctx context.Context, err error, permanent *bool) error {
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || w.isTransient(err)) {
		*permanent = false
		return err
	}

	*permanent = true

	return backoff.Permanent(err)
}

func (w *Writer) backoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.policy.InitialBackoff
	eb.MaxInterval = w.policy.MaxBackoff
	eb.MaxElapsedTime = 0
	eb.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(w.policy.MaxAttempts-1)), ctx)
}

// committed reads the authoritative row count of the batch. The read outlives a cancelled caller
// so a partial failure can still be reported accurately.
func (w *Writer) committed(ctx context.Context, batchID uuid.UUID, tally int) (int, bool) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.policy.AttemptTimeout)
	defer cancel()

	var n int

	err := backoff.Retry(func() error {
		var err error

		n, err = w.store.CountByBatch(cctx, batchID)
		if err != nil && !w.isTransient(err) {
			return backoff.Permanent(err)
		}

		return err
	}, w.backoff(cctx))
	if err != nil {
		slog.Warn("could not verify committed count", "batch_id", batchID, "tally", tally, "error", err)
		return tally, false
	}

	return n, true
}

func validate(tx *transaction.Transaction) error {
	switch {
	case tx == nil:
		return errors.New("nil transaction")
	case strings.TrimSpace(tx.AccountID) == "":
		return errors.New("missing account")
	case tx.Date.IsZero():
		return errors.New("missing date")
	case strings.TrimSpace(tx.Description) == "":
		return errors.New("empty description")
	case tx.Fingerprint == "":
		return errors.New("missing fingerprint")
	}

	return nil
}
