package cli

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/sift/internal/model"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestInterruptHandler(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	var subscribed chan<- os.Signal
	ready := make(chan struct{})
	handler.notify = func(c chan<- os.Signal, _ ...os.Signal) {
		subscribed = c
		close(ready)
	}
	stopped := false
	handler.stop = func(chan<- os.Signal) { stopped = true }

	ctx, stop := handler.HandleInterrupts(context.Background())
	<-ready
	assert.False(t, handler.WasInterrupted())

	subscribed <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not canceled")
	}
	assert.True(t, handler.WasInterrupted())
	assert.Contains(t, output.String(), "Interrupted")
	assert.Contains(t, output.String(), "stay pending")

	stop()
	stop()
	assert.True(t, stopped)
}

func TestInterruptHandler_StopWithoutSignal(t *testing.T) {
	handler := NewInterruptHandler(&syncBuffer{})
	handler.notify = func(chan<- os.Signal, ...os.Signal) {}
	handler.stop = func(chan<- os.Signal) {}

	ctx, stop := handler.HandleInterrupts(context.Background())
	stop()

	require.Error(t, ctx.Err())
	assert.False(t, handler.WasInterrupted())
}

func TestProgressBar(t *testing.T) {
	var out bytes.Buffer
	bar := NewProgressBar(&out)

	bar.OnProgress(model.Progress{})
	assert.Empty(t, out.String(), "nothing is drawn before the batch size is known")

	bar.OnProgress(model.Progress{Total: 2})
	bar.OnProgress(model.Progress{Total: 2, CurrentFileName: "factura-enero.pdf"})
	bar.OnProgress(model.Progress{Total: 2, Current: 1, CurrentFileName: "factura-enero.pdf"})
	bar.OnProgress(model.Progress{Total: 2, Current: 2, CurrentFileName: "factura-febrero.pdf"})

	assert.Contains(t, out.String(), "2/2")
	assert.Contains(t, out.String(), "factura-febrero.pdf")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short.pdf", truncate("short.pdf", 32))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ñandú…", truncate("ñandúes-del-sur", 6))
}

func TestFormatStatus(t *testing.T) {
	for _, status := range []model.ClassificationStatus{model.StatusPending, model.StatusClassified, model.StatusError} {
		assert.True(t, strings.Contains(FormatStatus(status), string(status)))
	}
	assert.Contains(t, FormatField("Invoice type", ""), "-")
	assert.Contains(t, FormatField("Invoice type", "received"), "received")
}

func TestFormatAmount(t *testing.T) {
	total := decimal.RequireFromString("1210")
	vat := decimal.RequireFromString("21.105")

	assert.Equal(t, "1210.00 EUR", FormatAmount(&total, "EUR"))
	assert.Equal(t, "21.11", FormatAmount(&vat, ""))
	assert.Empty(t, FormatAmount(nil, "EUR"))
	assert.Contains(t, FormatField("Total", FormatAmount(nil, "EUR")), "-")
}
