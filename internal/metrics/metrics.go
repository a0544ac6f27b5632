// Package metrics exposes Prometheus instruments for the classification pipeline.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Veraticus/sift/internal/common"
)

// AI call outcomes.
const (
	CallOutcomeSuccess   = "success"
	CallOutcomeTransient = "transient"
	CallOutcomeTerminal  = "terminal"
)

// Document outcomes.
const (
	DocumentOutcomeClassified = "classified"
	DocumentOutcomeFailed     = "failed"
	DocumentOutcomeSkipped    = "skipped"
)

// Failure reasons kept low-cardinality for labels.
const (
	ReasonMissingContext = "missing_context"
	ReasonMalformed      = "malformed_output"
	ReasonRetries        = "retries_exhausted"
	ReasonUnreadable     = "unreadable_document"
	ReasonCanceled       = "canceled"
	ReasonUnknown        = "unknown"
)

// Metrics holds the pipeline's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	aiCalls      *prometheus.CounterVec
	aiRetries    prometheus.Counter
	aiLatency    prometheus.Histogram
	documents    *prometheus.CounterVec
	failures     *prometheus.CounterVec
	batchRuns    prometheus.Counter
	workersBusy  prometheus.Gauge
	batchLatency prometheus.Histogram
}

// New creates the instruments and registers them with registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		aiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_ai_calls_total",
			Help: "AI classification call attempts by outcome.",
		}, []string{"outcome"}),
		aiRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_ai_retries_total",
			Help: "Retries performed after transient AI failures.",
		}),
		aiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_ai_call_duration_seconds",
			Help:    "Latency of a single AI call attempt.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_documents_total",
			Help: "Documents processed by the batch scheduler by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_document_failures_total",
			Help: "Document classification failures by reason.",
		}, []string{"reason"}),
		batchRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_batch_runs_total",
			Help: "Batch classification runs started.",
		}),
		workersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sift_batch_workers_busy",
			Help: "Workers currently classifying a document.",
		}),
		batchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_batch_duration_seconds",
			Help:    "Wall time of a batch classification run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}

	registerer.MustRegister(
		m.aiCalls,
		m.aiRetries,
		m.aiLatency,
		m.documents,
		m.failures,
		m.batchRuns,
		m.workersBusy,
		m.batchLatency,
	)

	return m
}

// ObserveAICall records one AI call attempt.
func (m *Metrics) ObserveAICall(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.aiCalls.WithLabelValues(outcome).Inc()
	m.aiLatency.Observe(elapsed.Seconds())
}

// IncRetry records one retry after a transient failure.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.aiRetries.Inc()
}

// ObserveDocument records the outcome of one document in a batch.
func (m *Metrics) ObserveDocument(outcome string, err error) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(outcome).Inc()
	if outcome == DocumentOutcomeFailed {
		m.failures.WithLabelValues(FailureReason(err)).Inc()
	}
}

// BatchStarted records the start of a batch run.
func (m *Metrics) BatchStarted() {
	if m == nil {
		return
	}
	m.batchRuns.Inc()
}

// BatchFinished records the wall time of a batch run.
func (m *Metrics) BatchFinished(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchLatency.Observe(elapsed.Seconds())
}

// WorkerBusy adjusts the busy worker gauge by delta.
func (m *Metrics) WorkerBusy(delta float64) {
	if m == nil {
		return
	}
	m.workersBusy.Add(delta)
}

// FailureReason maps a document error to a low-cardinality label.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, common.ErrMissingContext):
		return ReasonMissingContext
	case errors.Is(err, common.ErrMalformedModelOutput):
		return ReasonMalformed
	case errors.Is(err, common.ErrMaxRetries):
		return ReasonRetries
	case errors.Is(err, common.ErrUnreadableDocument):
		return ReasonUnreadable
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonUnknown
	}
}
