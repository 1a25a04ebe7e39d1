package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/expense-explorer/internal/extraction"
)

type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
)

// Report describes the outcome of one document. Inserted is the number of rows the ledger holds
// for this ingestion's batch, read back after writing.
type Report struct {
	Filename   string
	JobID      string
	BatchID    uuid.UUID
	Extracted  int
	Rejected   []extraction.Reject
	Duplicates int
	Inserted   int
	Verified   bool
	Err        error
}

func (r *Report) Status() Status {
	switch {
	case r.Err == nil:
		return StatusComplete
	case r.Inserted > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// Message is a one-line summary meant for the person who uploaded the document.
func (r *Report) Message() string {
	var sb strings.Builder

	switch r.Status() {
	case StatusComplete:
		fmt.Fprintf(&sb, "added %d new transaction(s), skipped %d duplicate(s)", r.Inserted, r.Duplicates)

		if len(r.Rejected) > 0 {
			fmt.Fprintf(&sb, ", ignored %d unreadable record(s)", len(r.Rejected))
		}
	case StatusPartial:
		fmt.Fprintf(&sb, "wrote %d transaction(s) before failing: %v", r.Inserted, r.Err)
	default:
		fmt.Fprintf(&sb, "nothing was written: %v", r.Err)
	}

	if !r.Verified && r.BatchID != uuid.Nil {
		sb.WriteString(" (count could not be verified)")
	}

	return sb.String()
}
