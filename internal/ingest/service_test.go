package ingest_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/expense-explorer/internal/dedup"
	"github.com/MrJamesThe3rd/expense-explorer/internal/extraction"
	"github.com/MrJamesThe3rd/expense-explorer/internal/ingest"
	"github.com/MrJamesThe3rd/expense-explorer/internal/job"
	"github.com/MrJamesThe3rd/expense-explorer/internal/ledger"
	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction/transactiontest"
)

var fakePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

const namecheapOutput = `{
	"transactions": [
		{"date": "2024-03-05", "description": "NAMECHEAP.COM", "amount": 12.98, "transaction_type": "Debit", "account_last_4": "1234"}
	],
	"summary": {"provider_name": "Chase", "account_last_4": "1234", "period_start": "2024-02-06", "period_end": "2024-03-05"}
}`

// extractor fakes the remote ingest application: every job succeeds immediately with output.
type extractor struct {
	output  string
	outcome string

	mu       sync.Mutex
	payloads []map[string]string
	submits  atomic.Int32
}

func (e *extractor) server(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /applications/{app}", func(w http.ResponseWriter, r *http.Request) {
		n := e.submits.Add(1)

		var p map[string]string
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &p)

		e.mu.Lock()
		e.payloads = append(e.payloads, p)
		e.mu.Unlock()

		fmt.Fprintf(w, `{"request_id":"ingest-%d"}`, n)
	})
	mux.HandleFunc("GET /applications/{app}/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		outcome := e.outcome
		if outcome == "" {
			outcome = `"success"`
		}

		fmt.Fprintf(w, `{"outcome":%s}`, outcome)
	})
	mux.HandleFunc("GET /applications/{app}/requests/{id}/output", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(e.output))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

type pipeline struct {
	svc    *ingest.Service
	store  *transactiontest.Store
	remote *extractor
}

func newPipeline(t *testing.T, remote *extractor, concurrency int) *pipeline {
	t.Helper()

	client, err := job.NewClient(job.Config{
		BaseURL:      remote.server(t).URL,
		Apps:         map[job.Kind]string{job.KindIngest: "expense_ingestion_app"},
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	store := transactiontest.New()

	svc := ingest.NewService(ingest.Deps{
		Jobs:   client,
		Dedup:  dedup.NewEngine(store, dedup.DefaultPolicy()),
		Ledger: ledger.NewWriter(store, ledger.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}),
	}, ingest.Config{Timeout: time.Second, Concurrency: concurrency})

	return &pipeline{svc: svc, store: store, remote: remote}
}

func statementDoc(name string) ingest.Document {
	return ingest.Document{Filename: name, ContentType: "application/pdf", Bytes: fakePDF}
}

func TestService_Ingest_SingleTransaction(t *testing.T) {
	p := newPipeline(t, &extractor{output: namecheapOutput}, 1)

	report, err := p.svc.Ingest(context.Background(), statementDoc("march.pdf"))
	require.NoError(t, err)

	assert.Equal(t, ingest.StatusComplete, report.Status())
	assert.Equal(t, 1, report.Extracted)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 0, report.Duplicates)
	assert.True(t, report.Verified)
	assert.Equal(t, "ingest-1", report.JobID)
	assert.Equal(t, "added 1 new transaction(s), skipped 0 duplicate(s)", report.Message())

	rows := p.store.All()
	require.Len(t, rows, 1)
	assert.Equal(t, "1234", rows[0].AccountID)
	assert.Equal(t, "12.98", rows[0].Amount.StringFixed(2))
	assert.Equal(t, "NAMECHEAP.COM", rows[0].Description)
	assert.Equal(t, "march.pdf", rows[0].SourceDocument)
	assert.Equal(t, report.BatchID, rows[0].BatchID)

	require.Len(t, p.remote.payloads, 1)
	assert.Equal(t, "march.pdf", p.remote.payloads[0]["filename"])
	assert.Equal(t, "application/pdf", p.remote.payloads[0]["content_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(fakePDF), p.remote.payloads[0]["file_b64"])
}

func TestService_Ingest_Idempotent(t *testing.T) {
	p := newPipeline(t, &extractor{output: namecheapOutput}, 1)

	first, err := p.svc.Ingest(context.Background(), statementDoc("march.pdf"))
	require.NoError(t, err)
	require.Equal(t, 1, first.Inserted)

	second, err := p.svc.Ingest(context.Background(), statementDoc("march-copy.pdf"))
	require.NoError(t, err)

	assert.Equal(t, ingest.StatusComplete, second.Status())
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Duplicates)
	assert.Equal(t, 1, p.store.Len())
}

func TestService_IngestAll_OverlappingDocuments(t *testing.T) {
	const n = 6

	records := make([]string, 0, n)
	for i := range n {
		records = append(records, fmt.Sprintf(
			`{"date":"2024-03-%02d","description":"MERCHANT %d","amount":"%d.50","account_last_4":"1234"}`, i+1, i, 10+i))
	}

	output := `{"transactions":[` + strings.Join(records, ",") + `]}`

	p := newPipeline(t, &extractor{output: output}, 2)

	reports := p.svc.IngestAll(context.Background(), []ingest.Document{statementDoc("a.pdf"), statementDoc("b.pdf")})
	require.Len(t, reports, 2)

	inserted, duplicates := 0, 0

	for _, r := range reports {
		require.NoError(t, r.Err)
		assert.Equal(t, ingest.StatusComplete, r.Status())

		inserted += r.Inserted
		duplicates += r.Duplicates
	}

	assert.Equal(t, n, inserted)
	assert.Equal(t, n, duplicates)
	assert.Equal(t, n, p.store.Len())
	assert.Equal(t, "a.pdf", reports[0].Filename)
	assert.Equal(t, "b.pdf", reports[1].Filename)
}

func TestService_IngestAll_IsolatesFailures(t *testing.T) {
	p := newPipeline(t, &extractor{output: namecheapOutput}, 3)

	reports := p.svc.IngestAll(context.Background(), []ingest.Document{
		{Filename: "notes.txt", ContentType: "text/plain", Bytes: []byte("hello")},
		statementDoc("march.pdf"),
	})
	require.Len(t, reports, 2)

	assert.ErrorIs(t, reports[0].Err, ingest.ErrUnsupportedContent)
	assert.Equal(t, ingest.StatusFailed, reports[0].Status())
	assert.NoError(t, reports[1].Err)
	assert.Equal(t, 1, reports[1].Inserted)
}

func TestService_Ingest_UnsupportedContent(t *testing.T) {
	tests := []struct {
		name string
		doc  ingest.Document
	}{
		{"DeclaredText", ingest.Document{Filename: "a.txt", ContentType: "text/plain", Bytes: fakePDF}},
		{"DeclaredPDFButPNG", ingest.Document{Filename: "a.pdf", ContentType: "application/pdf", Bytes: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")}},
		{"Empty", ingest.Document{Filename: "a.pdf", ContentType: "application/pdf"}},
		{"NoContentType", ingest.Document{Filename: "a.pdf", Bytes: fakePDF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, &extractor{output: namecheapOutput}, 1)

			report, err := p.svc.Ingest(context.Background(), tt.doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, ingest.ErrUnsupportedContent)
			assert.Equal(t, ingest.StatusFailed, report.Status())
			assert.Equal(t, int32(0), p.remote.submits.Load())
			assert.Zero(t, p.store.Len())
		})
	}
}

func TestService_Ingest_Failures(t *testing.T) {
	tests := []struct {
		name        string
		remote      *extractor
		wantErr     error
		wantRejects int
	}{
		{
			name:    "RemoteFailure",
			remote:  &extractor{outcome: `{"failure":"FunctionError"}`},
			wantErr: job.ErrRemote,
		},
		{
			name:    "MalformedOutput",
			remote:  &extractor{output: `"not a result"`},
			wantErr: extraction.ErrMalformed,
		},
		{
			name:        "NoValidRecords",
			remote:      &extractor{output: `{"transactions":[{"description":"no date","amount":1}]}`},
			wantErr:     extraction.ErrEmpty,
			wantRejects: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, tt.remote, 1)

			report, err := p.svc.Ingest(context.Background(), statementDoc("march.pdf"))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, ingest.StatusFailed, report.Status())
			assert.Contains(t, report.Message(), "nothing was written")
			assert.Len(t, report.Rejected, tt.wantRejects)
			assert.Zero(t, p.store.Len())
		})
	}
}

func TestService_Ingest_PartialWrite(t *testing.T) {
	output := `{"transactions":[
		{"date":"2024-03-01","description":"FIRST","amount":1,"account_last_4":"1234"},
		{"date":"2024-03-02","description":"SECOND","amount":2,"account_last_4":"1234"},
		{"date":"2024-03-03","description":"THIRD","amount":3,"account_last_4":"1234"}
	]}`

	p := newPipeline(t, &extractor{output: output}, 1)
	p.store.BeforeInsert = func(call int, _ *transaction.Transaction) error {
		if call >= 2 {
			return &pgconn.PgError{Code: "08006", Message: "connection failure"}
		}

		return nil
	}

	report, err := p.svc.Ingest(context.Background(), statementDoc("march.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrExhausted)

	assert.Equal(t, ingest.StatusPartial, report.Status())
	assert.Equal(t, 1, report.Inserted)
	assert.True(t, report.Verified)
	assert.Contains(t, report.Message(), "wrote 1 transaction(s) before failing")
	assert.Equal(t, 1, p.store.Len())
}

func TestService_Ingest_Enrichment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobs := ingest.NewMockJobs(ctrl)
	merchants := ingest.NewMockEnricher(ctrl)
	statements := ingest.NewMockStatementSaver(ctrl)

	j := &job.Job{ID: "ingest-1", Kind: job.KindIngest}
	jobs.EXPECT().Submit(gomock.Any(), job.KindIngest, gomock.Any()).Return(j, nil)
	jobs.EXPECT().AwaitOutcome(gomock.Any(), j, 5*time.Second).Return(json.RawMessage(namecheapOutput), nil)

	merchants.EXPECT().Apply(gomock.Any(), gomock.Len(1)).
		DoAndReturn(func(_ context.Context, txs []*transaction.Transaction) (int, error) {
			name := "Namecheap Inc"
			txs[0].Merchant = &name

			return 1, nil
		})

	statements.EXPECT().SaveStatement(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, st *transaction.Statement) error {
			assert.Equal(t, "march.pdf", st.SourceFile)
			assert.Equal(t, "Chase", *st.ProviderName)

			return nil
		})

	store := transactiontest.New()
	svc := ingest.NewService(ingest.Deps{
		Jobs:       jobs,
		Dedup:      dedup.NewEngine(store, dedup.DefaultPolicy()),
		Ledger:     ledger.NewWriter(store, ledger.DefaultPolicy()),
		Merchants:  merchants,
		Statements: statements,
	}, ingest.Config{Timeout: 5 * time.Second})

	report, err := svc.Ingest(context.Background(), statementDoc("march.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)

	rows := store.All()
	require.Len(t, rows, 1)
	assert.Equal(t, "Namecheap Inc", *rows[0].Merchant)
}

func TestService_Ingest_EnrichmentFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobs := ingest.NewMockJobs(ctrl)
	merchants := ingest.NewMockEnricher(ctrl)

	j := &job.Job{ID: "ingest-1"}
	jobs.EXPECT().Submit(gomock.Any(), job.KindIngest, gomock.Any()).Return(j, nil)
	jobs.EXPECT().AwaitOutcome(gomock.Any(), j, gomock.Any()).Return(json.RawMessage(namecheapOutput), nil)
	merchants.EXPECT().Apply(gomock.Any(), gomock.Any()).Return(0, errors.New("aliases unavailable"))

	store := transactiontest.New()
	svc := ingest.NewService(ingest.Deps{
		Jobs:      jobs,
		Dedup:     dedup.NewEngine(store, dedup.DefaultPolicy()),
		Ledger:    ledger.NewWriter(store, ledger.DefaultPolicy()),
		Merchants: merchants,
	}, ingest.Config{})

	report, err := svc.Ingest(context.Background(), statementDoc("march.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
}

func TestDocument_SourceID(t *testing.T) {
	assert.Equal(t, "march.pdf", statementDoc("march.pdf").SourceID())

	unnamed := ingest.Document{Bytes: fakePDF}
	assert.Equal(t, unnamed.SourceID(), ingest.Document{Bytes: fakePDF}.SourceID())
	assert.Contains(t, unnamed.SourceID(), "sha256:")
}
