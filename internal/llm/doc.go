// Package llm provides language model access for document classification.
// It supports OpenAI and Anthropic vision models, with retry logic for
// transient upstream failures and client-side rate limiting.
package llm
