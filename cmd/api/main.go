package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/expense-explorer/internal/config"
	"github.com/MrJamesThe3rd/expense-explorer/internal/database"
	"github.com/MrJamesThe3rd/expense-explorer/internal/dedup"
	apiHttp "github.com/MrJamesThe3rd/expense-explorer/internal/http"
	insightsHandler "github.com/MrJamesThe3rd/expense-explorer/internal/http/insights"
	merchantHandler "github.com/MrJamesThe3rd/expense-explorer/internal/http/merchant"
	queryHandler "github.com/MrJamesThe3rd/expense-explorer/internal/http/query"
	statementHandler "github.com/MrJamesThe3rd/expense-explorer/internal/http/statement"
	txHandler "github.com/MrJamesThe3rd/expense-explorer/internal/http/transaction"
	"github.com/MrJamesThe3rd/expense-explorer/internal/ingest"
	"github.com/MrJamesThe3rd/expense-explorer/internal/insights"
	insightsStore "github.com/MrJamesThe3rd/expense-explorer/internal/insights/store"
	"github.com/MrJamesThe3rd/expense-explorer/internal/job"
	"github.com/MrJamesThe3rd/expense-explorer/internal/ledger"
	"github.com/MrJamesThe3rd/expense-explorer/internal/merchant"
	merchantStore "github.com/MrJamesThe3rd/expense-explorer/internal/merchant/store"
	"github.com/MrJamesThe3rd/expense-explorer/internal/query"
	"github.com/MrJamesThe3rd/expense-explorer/internal/transaction"
	txStore "github.com/MrJamesThe3rd/expense-explorer/internal/transaction/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	jobs, err := job.NewClient(job.Config{
		BaseURL: cfg.Remote.BaseURL,
		APIKey:  cfg.Remote.APIKey,
		Apps: map[job.Kind]string{
			job.KindIngest: cfg.Remote.IngestApp,
			job.KindQuery:  cfg.Remote.QueryApp,
		},
		PollInterval: cfg.Remote.PollInterval,
	})
	if err != nil {
		return err
	}

	ledgerStore := txStore.New(db)

	var (
		transactionService = transaction.NewService(ledgerStore)
		merchantService    = merchant.NewService(merchantStore.New(db))
		dedupEngine        = dedup.NewEngine(ledgerStore, dedup.Policy{
			Window:            cfg.Dedup.Window,
			DescriptionPrefix: cfg.Dedup.DescriptionPrefix,
		})
		ledgerWriter = ledger.NewWriter(ledgerStore, ledger.Policy{
			MaxAttempts:    cfg.Writer.MaxAttempts,
			InitialBackoff: cfg.Writer.InitialBackoff,
			MaxBackoff:     cfg.Writer.MaxBackoff,
			AttemptTimeout: cfg.Writer.AttemptTimeout,
		})
		ingestService = ingest.NewService(ingest.Deps{
			Jobs:       jobs,
			Dedup:      dedupEngine,
			Ledger:     ledgerWriter,
			Merchants:  merchantService,
			Statements: transactionService,
		}, ingest.Config{
			Timeout:     cfg.Remote.IngestTimeout,
			Concurrency: cfg.Ingest.Concurrency,
		})
		queryRouter     = query.NewRouter(jobs, cfg.Remote.QueryTimeout)
		insightsService = insights.NewService(insightsStore.New(db), cfg.Insights.CacheTTL)
	)

	var (
		transactionH = txHandler.NewHandler(transactionService)
		statementH   = statementHandler.NewHandler(ingestService, transactionService, cfg.Ingest.MaxUploadBytes)
		queryH       = queryHandler.NewHandler(queryRouter)
		merchantH    = merchantHandler.NewHandler(merchantService)
		insightsH    = insightsHandler.NewHandler(insightsService)
	)

	router := apiHttp.New(cfg.Server.AllowedOrigins, transactionH, statementH, queryH, merchantH, insightsH)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads wait for remote extraction, so writes get the ingest timeout on top.
		WriteTimeout: cfg.Server.Timeout + cfg.Remote.IngestTimeout,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "app", cfg.App.Name, "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
