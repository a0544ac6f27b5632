package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is a single classification call: an instruction prompt plus the
// document it refers to.
type Request struct {
	System   string
	Prompt   string
	Document *Document
}

// Document is a binary attachment sent inline with the prompt.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Response contains the model's raw text output.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// StatusOverloaded is Anthropic's "overloaded" status code.
const StatusOverloaded = 529

// APIError is returned by providers when the upstream API answers with a
// non-200 status.
type APIError struct {
	Provider   string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Transient reports whether the status signals rate limiting or overload.
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, StatusOverloaded:
		return true
	default:
		return false
	}
}
