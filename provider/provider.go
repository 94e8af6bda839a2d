// Package provider defines MadSpark's Provider Port (spec.md §4.B): the
// single interface every LLM backend adapter implements, so the rest of the
// orchestrator never branches on vendor.
package provider

import (
	"context"
	"time"
)

// Port is the unified LLM adapter interface every backend implements.
type Port interface {
	// GenerateStructured sends prompt + schema to the backend and returns the
	// raw JSON object the model produced, forced to conform to schemaJSON's
	// shape (the mechanism — native JSON mode vs. tool-forced output — is an
	// adapter concern).
	GenerateStructured(ctx context.Context, req StructuredRequest) (StructuredResponse, error)

	// GenerateText sends a plain prompt and returns the raw text completion.
	GenerateText(ctx context.Context, req TextRequest) (TextResponse, error)

	// Health performs a lightweight health check.
	Health(ctx context.Context) (HealthStatus, error)

	// Name returns the provider's unique identifier, e.g. "anthropic".
	Name() string

	// Model returns the model identifier this adapter is configured for.
	Model() string

	// SupportsAttachments reports whether this adapter can forward file/URL
	// attachments alongside the prompt.
	SupportsAttachments() bool

	// CostPerToken returns the adapter's (input, output) per-token USD cost,
	// used to estimate WorkflowResult.Usage.EstimatedCost.
	CostPerToken() (input, output float64)
}

// StructuredRequest asks a provider to produce JSON conforming to SchemaJSON.
type StructuredRequest struct {
	SystemPrompt   string
	Prompt         string
	SchemaName     string
	SchemaJSON     []byte
	Temperature    float32
	MaxTokens      int
	Attachments    []string
}

// StructuredResponse is a provider's structured-output result.
type StructuredResponse struct {
	RawJSON []byte
	Usage   Usage
}

// TextRequest asks a provider for a plain-text completion.
type TextRequest struct {
	SystemPrompt string
	Prompt       string
	Temperature  float32
	MaxTokens    int
}

// TextResponse is a provider's plain-text completion result.
type TextResponse struct {
	Text  string
	Usage Usage
}

// Usage is per-call token and latency accounting, surfaced up into
// domain.UsageSummary by the monitoring collector.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMS        float64
	Cached           bool
}

// HealthStatus reports a provider's current reachability.
type HealthStatus struct {
	Healthy bool
	Latency time.Duration
}
