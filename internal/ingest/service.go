// Package ingest runs a statement document through extraction, dedup and the ledger.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/expense-explorer/internal/dedup"
	"github.com/MrJamesThe3rd/expense-explorer/internal/extraction"
	"github.com/MrJamesThe3rd/expense-explorer/internal/job"
	"github.com/MrJamesThe3rd/expense-explorer/internal/ledger"
	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=ingest

const pdfType = "application/pdf"

var ErrUnsupportedContent = errors.New("unsupported content: only PDF statements are accepted")

type Document struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// SourceID names the document in the ledger. Unnamed documents are named after their content.
func (d Document) SourceID() string {
	if d.Filename != "" {
		return d.Filename
	}

	sum := sha256.Sum256(d.Bytes)

	return "sha256:" + hex.EncodeToString(sum[:8])
}

type Jobs interface {
	Submit(ctx context.Context, kind job.Kind, payload any) (*job.Job, error)
	AwaitOutcome(ctx context.Context, j *job.Job, timeout time.Duration) (json.RawMessage, error)
}

type Classifier interface {
	Classify(ctx context.Context, candidates []*transaction.Transaction) (*dedup.Classification, error)
}

type Writer interface {
	Persist(ctx context.Context, txs []*transaction.Transaction) (*ledger.Result, error)
}

// Enricher rewrites merchants from known aliases. Failures are logged and ingestion carries on.
type Enricher interface {
	Apply(ctx context.Context, txs []*transaction.Transaction) (int, error)
}

type StatementSaver interface {
	SaveStatement(ctx context.Context, st *transaction.Statement) error
}

// Deps wires the service. Merchants and Statements are optional.
type Deps struct {
	Jobs       Jobs
	Dedup      Classifier
	Ledger     Writer
	Merchants  Enricher
	Statements StatementSaver
}

type Config struct {
	// Timeout bounds the wait for one extraction job.
	Timeout     time.Duration
	Concurrency int
}

type Service struct {
	deps Deps
	cfg  Config
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return &Service{deps: deps, cfg: cfg}
}

type payload struct {
	FileB64     string `json:"file_b64"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

// Ingest processes one document. The returned report is never nil; on failure its Err is the
// returned error and Inserted says how many records were committed before the failure.
func (s *Service) Ingest(ctx context.Context, doc Document) (*Report, error) {
	report := &Report{Filename: doc.SourceID()}

	err := s.ingest(ctx, doc, report)
	if err != nil {
		report.Err = err

		slog.Error("statement ingestion failed",
			"file", report.Filename,
			"job_id", report.JobID,
			"status", report.Status(),
			"inserted", report.Inserted,
			"error", err,
		)

		return report, err
	}

	slog.Info("statement ingested",
		"file", report.Filename,
		"job_id", report.JobID,
		"extracted", report.Extracted,
		"rejected", len(report.Rejected),
		"duplicates", report.Duplicates,
		"inserted", report.Inserted,
	)

	return report, nil
}

func (s *Service) ingest(ctx context.Context, doc Document, report *Report) error {
	if err := checkPDF(doc); err != nil {
		return err
	}

	j, err := s.deps.Jobs.Submit(ctx, job.KindIngest, payload{
		FileB64:     base64.StdEncoding.EncodeToString(doc.Bytes),
		ContentType: pdfType,
		Filename:    report.Filename,
	})
	if err != nil {
		return err
	}

	report.JobID = j.ID

	out, err := s.deps.Jobs.AwaitOutcome(ctx, j, s.cfg.Timeout)
	if err != nil {
		return err
	}

	raw, err := extraction.Decode(out)
	if err != nil {
		return fmt.Errorf("reading extraction output: %w", err)
	}

	batch, err := extraction.Normalize(raw, report.Filename)
	if err != nil {
		var verr *extraction.ValidationError
		if errors.As(err, &verr) {
			report.Rejected = verr.Rejects
		}

		return err
	}

	report.Extracted = len(batch.Transactions)
	report.Rejected = batch.Rejects

	if s.deps.Merchants != nil {
		if _, err := s.deps.Merchants.Apply(ctx, batch.Transactions); err != nil {
			slog.Warn("merchant aliases not applied", "file", report.Filename, "error", err)
		}
	}

	cls, err := s.deps.Dedup.Classify(ctx, batch.Transactions)
	if err != nil {
		return fmt.Errorf("classifying transactions: %w", err)
	}

	report.Duplicates = len(cls.Duplicates)

	res, err := s.deps.Ledger.Persist(ctx, cls.New)
	if res != nil {
		report.BatchID = res.BatchID
		report.Inserted = res.Inserted
		report.Verified = res.Verified
		report.Duplicates += len(res.Raced)
	}

	if err != nil {
		return err
	}

	if batch.Statement != nil && s.deps.Statements != nil {
		if err := s.deps.Statements.SaveStatement(ctx, batch.Statement); err != nil {
			slog.Warn("statement summary not saved", "file", report.Filename, "error", err)
		}
	}

	return nil
}

// IngestAll processes documents concurrently, at most Config.Concurrency at a time. A failing
// document does not affect the others; reports are returned in input order.
func (s *Service) IngestAll(ctx context.Context, docs []Document) []*Report {
	reports := make([]*Report, len(docs))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i, doc := range docs {
		g.Go(func() error {
			reports[i], _ = s.Ingest(ctx, doc)
			return nil
		})
	}

	_ = g.Wait()

	return reports
}

func checkPDF(doc Document) error {
	declared, _, err := mime.ParseMediaType(doc.ContentType)
	if err != nil || declared != pdfType {
		return fmt.Errorf("%w: declared type %q", ErrUnsupportedContent, doc.ContentType)
	}

	if len(doc.Bytes) == 0 {
		return fmt.Errorf("%w: empty document", ErrUnsupportedContent)
	}

	if detected := mimetype.Detect(doc.Bytes); !detected.Is(pdfType) {
		return fmt.Errorf("%w: content looks like %s", ErrUnsupportedContent, detected.String())
	}

	return nil
}
