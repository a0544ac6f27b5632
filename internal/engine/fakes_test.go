package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/sift/internal/ledger"
	"github.com/Veraticus/sift/internal/llm"
	"github.com/Veraticus/sift/internal/model"
	"github.com/Veraticus/sift/internal/service"
)

// pdfBytes is enough of a PDF for content sniffing.
var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

// fakeDocuments is an in-memory DocumentStore.
type fakeDocuments struct {
	files map[string][]byte
	mu    sync.Mutex
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{files: make(map[string][]byte)}
}

func (d *fakeDocuments) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.files[path]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", path)
	}
	return data, nil
}

func (d *fakeDocuments) Put(_ context.Context, path string, data []byte, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[path] = data
	return nil
}

func (d *fakeDocuments) AccessURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "mem://" + path, nil
}

var _ service.DocumentStore = (*fakeDocuments)(nil)

// fakeCompleter answers every model call with respond and records the requests.
type fakeCompleter struct {
	respond  func(ctx context.Context, req llm.Request) (string, error)
	requests []llm.Request
	mu       sync.Mutex
}

func (c *fakeCompleter) Call(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	return c.respond(ctx, req)
}

func (c *fakeCompleter) calls() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.requests...)
}

// answer returns a completer that always replies with text.
func answer(text string) *fakeCompleter {
	return &fakeCompleter{respond: func(context.Context, llm.Request) (string, error) {
		return text, nil
	}}
}

// countingMatcher wraps the production matcher and counts invocations.
type countingMatcher struct {
	inner ledger.Matcher
	calls int
	mu    sync.Mutex
}

func (m *countingMatcher) Match(description string, accounts []model.Account) ledger.Match {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.inner.Match(description, accounts)
}

func (m *countingMatcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// modelJSON builds a model answer with the given overrides on top of a
// received-invoice default.
func modelJSON(fields map[string]string) string {
	base := map[string]string{
		"invoice_type":   "received",
		"operation_type": "interiores_iva_deducible",
		"issuer_name":    "Beta Suministros SA",
		"recipient_name": "ACME SL",
		"description":    "material de oficina",
		"reasoning":      "ACME is the buyer",
	}
	for k, v := range fields {
		base[k] = v
	}

	parts := make([]string, 0, len(base)+1)
	for k, v := range base {
		parts = append(parts, fmt.Sprintf("%q: %q", k, v))
	}
	parts = append(parts, `"confidence": 0.9`)
	return "{" + strings.Join(parts, ", ") + "}"
}
