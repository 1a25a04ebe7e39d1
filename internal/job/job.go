// Package job submits work to the remote compute service and waits for its outcome.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindIngest Kind = "ingest"
	KindQuery  Kind = "query"
)

type State int

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is the decoded state of a remote job. Value is set once a succeeded job's output has
// been fetched; Reason only for failed jobs.
type Outcome struct {
	State  State
	Value  json.RawMessage
	Reason string
}

// Job is a handle to one remote request. It is updated by polling only and is not safe for
// concurrent use; distinct jobs share nothing.
type Job struct {
	ID           string
	Kind         Kind
	App          string
	SubmittedAt  time.Time
	LastPolledAt time.Time
	Outcome      Outcome
}

var (
	ErrTimeout  = errors.New("job timed out")
	ErrRemote   = errors.New("job failed remotely")
	ErrProtocol = errors.New("unexpected job response")

	ErrUnknownKind = errors.New("no application configured for job kind")
)

// SubmissionError means the job was never accepted by the remote service.
type SubmissionError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submitting %s job: status %d: %v", e.Kind, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("submitting %s job: %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// JobError reports an accepted job that did not produce a usable result. Kind is one of
// ErrTimeout, ErrRemote or ErrProtocol; Reason carries the remote failure text verbatim.
type JobError struct {
	Kind   error
	JobID  string
	Reason string
	Err    error
}

func (e *JobError) Error() string {
	msg := fmt.Sprintf("job %s: %v", e.JobID, e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *JobError) Is(target error) bool { return target == e.Kind }

func (e *JobError) Unwrap() error { return e.Err }
