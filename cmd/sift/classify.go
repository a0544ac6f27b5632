package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/sift/internal/cli"
	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/engine"
	"github.com/Veraticus/sift/internal/ledger"
	"github.com/Veraticus/sift/internal/llm"
	"github.com/Veraticus/sift/internal/metrics"
	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/progress"
	"github.com/Veraticus/sift/internal/service"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify pending invoices",
		Long: `Classify every pending invoice of the current user.

Documents are sent to the configured model a few at a time. Each invoice is
typed, given a VAT operation and, when an account book is imported, matched
against it. A document that fails is marked as an error and the batch goes
on. Interrupting the run leaves unfinished invoices pending.`,
		RunE: runClassify,
	}

	cmd.Flags().Int("workers", 0, "documents classified concurrently (default: classification.workers)")
	cmd.Flags().Int("limit", 0, "maximum number of invoices to classify")
	cmd.Flags().Bool("retry-failed", false, "reset invoices in error back to pending before classifying")
	cmd.Flags().String("redis-addr", "", "publish progress snapshots to this Redis server")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")

	_ = viper.BindPFlag("classification.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("redis.addr", cmd.Flags().Lookup("redis-addr"))
	_ = viper.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr"))

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	retryFailed, _ := cmd.Flags().GetBool("retry-failed")

	userID, err := currentUser()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	if retryFailed {
		if err := resetFailed(ctx, store, userID); err != nil {
			return err
		}
	}

	pending, err := store.ListInvoices(ctx, service.InvoiceFilter{
		UserID: userID,
		Status: model.StatusPending,
		Limit:  limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list pending invoices: %w", err)
	}
	if len(pending) == 0 {
		return common.NewUserError("No pending invoices to classify.", common.ErrNoInvoices)
	}

	docs, err := initDocumentStore()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)
	if addr := viper.GetString("metrics.addr"); addr != "" {
		shutdown := serveMetrics(addr, registry)
		defer shutdown()
	}

	caller, err := createCaller(m)
	if err != nil {
		return err
	}

	eng := engine.New(store, docs, llm.NewClassifier(caller, slog.Default()),
		engine.WithMatcher(ledger.TokenContainment{}),
		engine.WithHistory(engine.NewCorrectionHistory(store, viper.GetInt("classification.history_limit"))),
		engine.WithEngineLogger(slog.Default()))

	tracker := engine.NewProgressTracker(cli.NewProgressBar(os.Stderr))
	if addr := viper.GetString("redis.addr"); addr != "" {
		client, err := progress.Connect(ctx, addr, viper.GetString("redis.password"), viper.GetInt("redis.db"))
		if err != nil {
			slog.Warn("Progress publishing disabled", "addr", addr, "error", err)
		} else {
			defer func() { _ = client.Close() }()
			tracker.Subscribe(progress.NewPublisher(client, progress.WithUser(userID)))
		}
	}

	scheduler := engine.NewBatchScheduler(eng,
		engine.WithWorkers(viper.GetInt("classification.workers")),
		engine.WithProgress(tracker),
		engine.WithBatchMetrics(m))

	items := make([]engine.BatchItem, len(pending))
	for i, inv := range pending {
		items[i] = engine.BatchItem{InvoiceID: inv.ID, FileName: inv.FileName}
	}

	interrupts := cli.NewInterruptHandler(os.Stderr)
	runCtx, stop := interrupts.HandleInterrupts(ctx)
	defer stop()

	report := scheduler.Run(runCtx, items)
	printReport(report)

	if interrupts.WasInterrupted() || errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d invoices failed", report.Failed, len(items))
	}
	return nil
}

func resetFailed(ctx context.Context, store service.Storage, userID string) error {
	failed, err := store.ListInvoices(ctx, service.InvoiceFilter{UserID: userID, Status: model.StatusError})
	if err != nil {
		return fmt.Errorf("failed to list failed invoices: %w", err)
	}
	for _, inv := range failed {
		if err := store.ResetClassification(ctx, inv.ID); err != nil {
			return fmt.Errorf("failed to reset invoice %s: %w", inv.ID, err)
		}
	}
	if len(failed) > 0 {
		slog.Info("Reset failed invoices", "count", len(failed))
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("Serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func printReport(report *engine.BatchReport) {
	summary := report.Summary()

	//nolint:forbidigo // User-facing output
	fmt.Println(cli.FormatTitle(fmt.Sprintf("Classified %d invoices in %s", summary.Total, summary.Duration.Round(time.Millisecond))))
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("%d succeeded", summary.Succeeded))) //nolint:forbidigo // User-facing output
	if summary.Failed > 0 {
		fmt.Println(cli.FormatError(fmt.Sprintf("%d failed", summary.Failed))) //nolint:forbidigo // User-facing output
	}
	if summary.Skipped > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d skipped (still pending)", summary.Skipped))) //nolint:forbidigo // User-facing output
	}

	for _, o := range report.Outcomes {
		if o.Success || o.Skipped {
			continue
		}
		fmt.Println(cli.FormatSubtle(fmt.Sprintf("  %s: %v", o.FileName, o.Err))) //nolint:forbidigo // User-facing output
	}
}
