package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/sift/internal/common"
)

func TestFailureReason(t *testing.T) {
	cases := []struct {
		err  error
		name string
		want string
	}{
		{name: "missing context", err: fmt.Errorf("invoice x: %w", common.ErrMissingContext), want: ReasonMissingContext},
		{name: "malformed", err: fmt.Errorf("parse: %w", common.ErrMalformedModelOutput), want: ReasonMalformed},
		{name: "retries", err: fmt.Errorf("%w after 4 retries: boom", common.ErrMaxRetries), want: ReasonRetries},
		{name: "unreadable", err: common.ErrUnreadableDocument, want: ReasonUnreadable},
		{name: "canceled", err: context.Canceled, want: ReasonCanceled},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
		{name: "nil", err: nil, want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FailureReason(tc.err))
		})
	}
}

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAICall(CallOutcomeTransient, time.Second)
	m.ObserveAICall(CallOutcomeSuccess, time.Second)
	m.IncRetry()
	m.ObserveDocument(DocumentOutcomeClassified, nil)
	m.ObserveDocument(DocumentOutcomeFailed, common.ErrMalformedModelOutput)
	m.WorkerBusy(1)
	m.WorkerBusy(-1)

	assert.InDelta(t, 1, testutil.ToFloat64(m.aiCalls.WithLabelValues(CallOutcomeTransient)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.aiRetries), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.documents.WithLabelValues(DocumentOutcomeFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.failures.WithLabelValues(ReasonMalformed)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.workersBusy), 0)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAICall(CallOutcomeSuccess, time.Second)
		m.IncRetry()
		m.ObserveDocument(DocumentOutcomeSkipped, nil)
		m.BatchStarted()
		m.BatchFinished(time.Second)
		m.WorkerBusy(1)
	})
}
