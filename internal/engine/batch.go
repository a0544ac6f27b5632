package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/sift/internal/metrics"
	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/service"
)

// DefaultBatchWorkers is the number of documents classified concurrently.
const DefaultBatchWorkers = 3

// BatchItem is one pending invoice handed to the scheduler.
type BatchItem struct {
	InvoiceID string
	FileName  string
}

// BatchReport summarizes a batch run. Outcomes are in input order.
type BatchReport struct {
	Outcomes  []model.DocumentOutcome
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Summary returns the aggregate counts.
func (r *BatchReport) Summary() service.BatchSummary {
	return service.BatchSummary{
		Total:     len(r.Outcomes),
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Skipped:   r.Skipped,
		Duration:  r.Duration,
	}
}

// BatchScheduler runs an InvoiceProcessor over many invoices with a fixed
// number of workers sharing one queue.
type BatchScheduler struct {
	processor InvoiceProcessor
	tracker   *ProgressTracker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	workers   int
}

// BatchOption customizes a BatchScheduler.
type BatchOption func(*BatchScheduler)

// WithWorkers sets the worker count. Values below one are ignored.
func WithWorkers(n int) BatchOption {
	return func(s *BatchScheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithProgress reports progress on tracker.
func WithProgress(tracker *ProgressTracker) BatchOption {
	return func(s *BatchScheduler) {
		s.tracker = tracker
	}
}

// WithBatchMetrics records document outcomes on m.
func WithBatchMetrics(m *metrics.Metrics) BatchOption {
	return func(s *BatchScheduler) {
		s.metrics = m
	}
}

// WithBatchLogger sets the scheduler's logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(s *BatchScheduler) {
		s.logger = logger
	}
}

// NewBatchScheduler creates a scheduler around processor.
func NewBatchScheduler(processor InvoiceProcessor, opts ...BatchOption) *BatchScheduler {
	s := &BatchScheduler{
		processor: processor,
		workers:   DefaultBatchWorkers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracker == nil {
		s.tracker = NewProgressTracker()
	}
	return s
}

// Progress returns the tracker the scheduler reports to.
func (s *BatchScheduler) Progress() *ProgressTracker {
	return s.tracker
}

// workQueue hands out item indexes; each index is popped exactly once.
type workQueue struct {
	mu   sync.Mutex
	next int
	size int
}

func (q *workQueue) pop() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= q.size {
		return 0, false
	}
	i := q.next
	q.next++
	return i, true
}

// Run classifies every item once. Failures are recorded and never stop the
// batch. When ctx is canceled workers stop taking new items and whatever was
// not started is reported as skipped. Observers have seen the final progress
// by the time Run returns.
func (s *BatchScheduler) Run(ctx context.Context, items []BatchItem) *BatchReport {
	start := time.Now()
	s.metrics.BatchStarted()
	s.tracker.Reset(len(items))

	s.logger.Info("Starting batch classification",
		"documents", len(items),
		"workers", s.workers)

	outcomes := make([]model.DocumentOutcome, len(items))
	attempted := make([]bool, len(items))
	queue := &workQueue{size: len(items)}

	var g errgroup.Group
	for w := 0; w < min(s.workers, max(len(items), 1)); w++ {
		g.Go(func() error {
			for ctx.Err() == nil {
				i, ok := queue.pop()
				if !ok {
					return nil
				}
				attempted[i] = true
				outcomes[i] = s.process(ctx, items[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	s.tracker.Flush()

	report := &BatchReport{Outcomes: outcomes}
	for i, item := range items {
		if !attempted[i] {
			outcomes[i] = model.DocumentOutcome{
				InvoiceID: item.InvoiceID,
				FileName:  item.FileName,
				Skipped:   true,
				Err:       ctx.Err(),
			}
			s.metrics.ObserveDocument(metrics.DocumentOutcomeSkipped, nil)
		}

		switch {
		case outcomes[i].Skipped:
			report.Skipped++
		case outcomes[i].Success:
			report.Succeeded++
		default:
			report.Failed++
		}
	}
	report.Duration = time.Since(start)
	s.metrics.BatchFinished(report.Duration)

	s.logger.Info("Batch classification finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration)

	return report
}

func (s *BatchScheduler) process(ctx context.Context, item BatchItem) model.DocumentOutcome {
	s.metrics.WorkerBusy(1)
	defer s.metrics.WorkerBusy(-1)

	s.tracker.Started(item.FileName)
	defer s.tracker.Completed()

	outcome := model.DocumentOutcome{
		InvoiceID: item.InvoiceID,
		FileName:  item.FileName,
	}

	if _, err := s.processor.ClassifyInvoice(ctx, item.InvoiceID); err != nil {
		outcome.Err = err
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// interrupted mid-flight; the invoice is still pending
			outcome.Skipped = true
			s.metrics.ObserveDocument(metrics.DocumentOutcomeSkipped, err)
			return outcome
		}
		s.metrics.ObserveDocument(metrics.DocumentOutcomeFailed, err)
		s.logger.Warn("Document failed",
			"invoice_id", item.InvoiceID,
			"file", item.FileName,
			"error", err)
		return outcome
	}

	outcome.Success = true
	s.metrics.ObserveDocument(metrics.DocumentOutcomeClassified, nil)
	return outcome
}
