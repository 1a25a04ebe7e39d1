// Package query forwards natural-language questions about spending to the remote query application.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/expense-explorer/internal/job"
)

//go:generate mockgen -source=router.go -destination=jobs_mock.go -package=query

var ErrEmptyQuestion = errors.New("question is empty")

type Jobs interface {
	Submit(ctx context.Context, kind job.Kind, payload any) (*job.Job, error)
	AwaitOutcome(ctx context.Context, j *job.Job, timeout time.Duration) (json.RawMessage, error)
}

// Router holds no state of its own; the remote application owns the ledger access.
type Router struct {
	jobs    Jobs
	timeout time.Duration
}

func NewRouter(jobs Jobs, timeout time.Duration) *Router {
	return &Router{jobs: jobs, timeout: timeout}
}

// Ask submits the question once and returns the remote answer verbatim. An answer that is not a
// JSON string is returned as its JSON text.
func (r *Router) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}

	j, err := r.jobs.Submit(ctx, job.KindQuery, question)
	if err != nil {
		return "", err
	}

	out, err := r.jobs.AwaitOutcome(ctx, j, r.timeout)
	if err != nil {
		return "", fmt.Errorf("answering question: %w", err)
	}

	slog.Info("question answered", "job_id", j.ID, "answer_bytes", len(out))

	return answerText(out), nil
}

func answerText(out json.RawMessage) string {
	out = bytes.TrimSpace(out)

	var s string
	if len(out) > 0 && out[0] == '"' && json.Unmarshal(out, &s) == nil {
		return s
	}

	return string(out)
}
