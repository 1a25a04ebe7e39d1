package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("malformed extraction result")

// Result is the output of an ingest job before validation. Records and the summary stay raw so
// one badly typed field cannot fail the decoding of the rest.
type Result struct {
	Transactions []json.RawMessage `json:"transactions"`
	Summary      json.RawMessage   `json:"summary,omitempty"`
}

// Decode reads a job output value. It accepts the result object, a bare array of records, or
// either of those encoded once more as a JSON string.
func Decode(data []byte) (Result, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty output", ErrMalformed)
	}

	switch data[0] {
	case '"':
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		if len(bytes.TrimSpace([]byte(inner))) > 0 && bytes.TrimSpace([]byte(inner))[0] == '"' {
			return Result{}, fmt.Errorf("%w: string nested more than once", ErrMalformed)
		}

		return Decode([]byte(inner))
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		return Result{Transactions: records}, nil
	case '{':
		var res Result
		if err := json.Unmarshal(data, &res); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		return res, nil
	}

	return Result{}, fmt.Errorf("%w: unexpected value starting with %q", ErrMalformed, data[0])
}
