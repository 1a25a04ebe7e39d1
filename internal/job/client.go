package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/expense-explorer/internal/encoding"
)

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultMaxOutputBytes = 32 << 20

	maxErrorBody = 4 << 10
)

var errAwaitTimeout = errors.New("await timeout")

type Config struct {
	BaseURL string
	// APIKey is sent as a bearer token when set.
	APIKey         string
	Apps           map[Kind]string
	PollInterval   time.Duration
	// MaxOutputBytes caps a job's output. Larger outputs are a protocol error.
	MaxOutputBytes int64
	HTTPClient     *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	baseURL        string
	apiKey         string
	apps           map[Kind]string
	pollInterval   time.Duration
	maxOutputBytes int64
	client         *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote base url %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		apps:           make(map[Kind]string, len(cfg.Apps)),
		pollInterval:   cfg.PollInterval,
		maxOutputBytes: cfg.MaxOutputBytes,
		client:         cfg.HTTPClient,
	}

	for k, app := range cfg.Apps {
		c.apps[k] = app
	}

	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}

	if c.maxOutputBytes <= 0 {
		c.maxOutputBytes = DefaultMaxOutputBytes
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}

	return c, nil
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

// Submit posts payload as JSON to the application registered for kind and returns as soon as the
// service acknowledges the request. It never retries.
func (c *Client) Submit(ctx context.Context, kind Kind, payload any) (*Job, error) {
	app, ok := c.apps[kind]
	if !ok || app == "" {
		return nil, &SubmissionError{Kind: kind, Err: ErrUnknownKind}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &SubmissionError{Kind: kind, Err: fmt.Errorf("encoding payload: %w", err)}
	}

	req, err := c.newRequest(ctx, http.MethodPost, bytes.NewReader(body), "applications", app)
	if err != nil {
		return nil, &SubmissionError{Kind: kind, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &SubmissionError{Kind: kind, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SubmissionError{Kind: kind, StatusCode: resp.StatusCode, Err: errors.New(readErrorBody(resp.Body))}
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &SubmissionError{Kind: kind, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if sr.RequestID == "" {
		return nil, &SubmissionError{Kind: kind, StatusCode: resp.StatusCode, Err: errors.New("response carries no request_id")}
	}

	j := &Job{
		ID:          sr.RequestID,
		Kind:        kind,
		App:         app,
		SubmittedAt: time.Now(),
	}

	slog.Info("job submitted", "job_id", j.ID, "kind", kind, "app", app, "payload_bytes", len(body))

	return j, nil
}

// AwaitOutcome polls j until it leaves the pending state or timeout elapses, and returns the job's
// output for a succeeded job. The first poll is immediate. A zero timeout waits until ctx is done.
// Giving up leaves the remote job running.
func (c *Client) AwaitOutcome(ctx context.Context, j *Job, timeout time.Duration) (json.RawMessage, error) {
	wctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		wctx, cancel = context.WithTimeoutCause(ctx, timeout, errAwaitTimeout)
	}
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for polls := 1; ; polls++ {
		outcome, err := c.status(wctx, j)
		if err != nil {
			return nil, c.stopped(ctx, wctx, j, err)
		}

		j.LastPolledAt = time.Now()
		j.Outcome = outcome

		switch outcome.State {
		case StateSucceeded:
			out, err := c.output(wctx, j)
			if err != nil {
				return nil, c.stopped(ctx, wctx, j, err)
			}

			j.Outcome.Value = out
			slog.Info("job succeeded", "job_id", j.ID, "kind", j.Kind, "polls", polls, "elapsed", time.Since(j.SubmittedAt))

			return out, nil
		case StateFailed:
			slog.Warn("job failed", "job_id", j.ID, "kind", j.Kind, "reason", outcome.Reason)
			return nil, &JobError{Kind: ErrRemote, JobID: j.ID, Reason: outcome.Reason}
		}

		select {
		case <-wctx.Done():
			return nil, c.stopped(ctx, wctx, j, nil)
		case <-ticker.C:
		}
	}
}

// stopped maps a polling failure to the error the caller sees. Once the wait context is done its
// cause wins over whatever the in-flight request reported.
func (c *Client) stopped(ctx, wctx context.Context, j *Job, err error) error {
	if wctx.Err() == nil {
		return err
	}

	if ctx.Err() != nil {
		return fmt.Errorf("awaiting job %s: %w", j.ID, ctx.Err())
	}

	if errors.Is(context.Cause(wctx), errAwaitTimeout) {
		slog.Warn("job wait timed out", "job_id", j.ID, "kind", j.Kind, "last_polled_at", j.LastPolledAt)
		return &JobError{Kind: ErrTimeout, JobID: j.ID}
	}

	return fmt.Errorf("awaiting job %s: %w", j.ID, wctx.Err())
}

type statusResponse struct {
	Outcome      json.RawMessage `json:"outcome"`
	RequestError *struct {
		Message string `json:"message"`
	} `json:"request_error"`
}

func (c *Client) status(ctx context.Context, j *Job) (Outcome, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil, "applications", j.App, "requests", j.ID)
	if err != nil {
		return Outcome{}, c.protocolErr(j, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Outcome{}, c.protocolErr(j, fmt.Errorf("polling: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Outcome{}, c.protocolErr(j, fmt.Errorf("polling: status %d: %s", resp.StatusCode, readErrorBody(resp.Body)))
	}

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Outcome{}, c.protocolErr(j, fmt.Errorf("decoding status: %w", err))
	}

	// Only an object can say the outcome is absent; null or any other value is corrupt.
	if body = bytes.TrimSpace(body); len(body) == 0 || body[0] != '{' {
		return Outcome{}, c.protocolErr(j, fmt.Errorf("status is not an object: %.64s", body))
	}

	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return Outcome{}, c.protocolErr(j, fmt.Errorf("decoding status: %w", err))
	}

	return decodeOutcome(j, sr)
}

func decodeOutcome(j *Job, sr statusResponse) (Outcome, error) {
	raw := bytes.TrimSpace(sr.Outcome)
	if len(raw) == 0 || string(raw) == "null" {
		return Outcome{State: StatePending}, nil
	}

	var detail string
	if sr.RequestError != nil {
		detail = sr.RequestError.Message
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Outcome{}, &JobError{Kind: ErrProtocol, JobID: j.ID, Err: err}
		}

		switch s {
		case "success":
			return Outcome{State: StateSucceeded}, nil
		case "failure":
			return Outcome{State: StateFailed, Reason: joinReason(s, detail)}, nil
		}
	case '{':
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return Outcome{}, &JobError{Kind: ErrProtocol, JobID: j.ID, Err: err}
		}

		return Outcome{State: StateFailed, Reason: joinReason(compact.String(), detail)}, nil
	}

	return Outcome{}, &JobError{Kind: ErrProtocol, JobID: j.ID, Reason: fmt.Sprintf("unrecognized outcome %s", raw)}
}

func joinReason(outcome, detail string) string {
	if detail == "" {
		return outcome
	}

	return outcome + ": " + detail
}

// output fetches the job's result exactly once. Plain text bodies are decoded to UTF-8 and
// returned as a JSON string.
func (c *Client) output(ctx context.Context, j *Job) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil, "applications", j.App, "requests", j.ID, "output")
	if err != nil {
		return nil, c.protocolErr(j, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.protocolErr(j, fmt.Errorf("fetching output: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.protocolErr(j, fmt.Errorf("fetching output: status %d: %s", resp.StatusCode, readErrorBody(resp.Body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxOutputBytes+1))
	if err != nil {
		return nil, c.protocolErr(j, fmt.Errorf("reading output: %w", err))
	}

	if int64(len(data)) > c.maxOutputBytes {
		return nil, c.protocolErr(j, fmt.Errorf("output exceeds %d bytes", c.maxOutputBytes))
	}

	if mediaType, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "text/plain" {
		text, err := encoding.ReadString(bytes.NewReader(data), params["charset"])
		if err != nil {
			return nil, c.protocolErr(j, fmt.Errorf("reading text output: %w", err))
		}

		out, err := json.Marshal(text)
		if err != nil {
			return nil, c.protocolErr(j, err)
		}

		return out, nil
	}

	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, c.protocolErr(j, errors.New("output is not valid JSON"))
	}

	return json.RawMessage(data), nil
}

func (c *Client) protocolErr(j *Job, err error) error {
	return &JobError{Kind: ErrProtocol, JobID: j.ID, Err: err}
}

func (c *Client) newRequest(ctx context.Context, method string, body io.Reader, segments ...string) (*http.Request, error) {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.Join(escaped, "/"), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return req, nil
}

func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if s := strings.TrimSpace(string(b)); s != "" {
		return s
	}

	return "empty body"
}
