// Package mock implements a deterministic provider.Port used by tests and by
// config.MockMode, so the full orchestrator pipeline is exercisable without
// network access or API keys (spec.md §4.L).
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/madspark/orchestrator/errs"
	"github.com/madspark/orchestrator/provider"
)

// Fixture is a canned structured response keyed by schema name and a hashed
// prefix of the prompt that produced it.
type Fixture struct {
	SchemaName   string
	PromptPrefix string
	Response     map[string]any
}

// Provider returns fixtures registered ahead of time, falling back to a
// placeholder object built from the schema's required properties for
// schemas with no fixture. It reports zero tokens and zero latency.
type Provider struct {
	mu       sync.RWMutex
	fixtures map[string]map[string]any
}

// New builds an empty mock provider. Register fixtures with AddFixture, or
// rely on the generic fallback responses.
func New() *Provider {
	return &Provider{fixtures: make(map[string]map[string]any)}
}

// AddFixture registers a canned response for the given schema name and
// prompt-prefix key.
func (p *Provider) AddFixture(f Fixture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fixtures[fixtureKey(f.SchemaName, f.PromptPrefix)] = f.Response
}

func fixtureKey(schemaName, promptPrefix string) string {
	sum := sha256.Sum256([]byte(promptPrefix))
	return schemaName + ":" + hex.EncodeToString(sum[:8])
}

func (p *Provider) Name() string              { return "mock" }
func (p *Provider) Model() string             { return "mock-1" }
func (p *Provider) SupportsAttachments() bool { return true }
func (p *Provider) CostPerToken() (float64, float64) { return 0, 0 }

func (p *Provider) Health(ctx context.Context) (provider.HealthStatus, error) {
	return provider.HealthStatus{Healthy: true}, nil
}

// GenerateStructured returns a registered fixture if one matches, otherwise a
// generic placeholder value for every required property declared in
// req.SchemaJSON — enough to drive the full pipeline deterministically.
func (p *Provider) GenerateStructured(ctx context.Context, req provider.StructuredRequest) (provider.StructuredResponse, error) {
	key := fixtureKey(req.SchemaName, promptPrefix(req.Prompt))

	p.mu.RLock()
	fixture, ok := p.fixtures[key]
	p.mu.RUnlock()

	if !ok {
		generic, err := genericFixture(req.SchemaJSON)
		if err != nil {
			return provider.StructuredResponse{}, err
		}
		fixture = generic
	}

	raw, err := json.Marshal(fixture)
	if err != nil {
		return provider.StructuredResponse{}, errs.New(errs.ProviderInvalid, "mock fixture not serializable").WithCause(err)
	}

	return provider.StructuredResponse{
		RawJSON: raw,
		Usage:   provider.Usage{},
	}, nil
}

func (p *Provider) GenerateText(ctx context.Context, req provider.TextRequest) (provider.TextResponse, error) {
	return provider.TextResponse{
		Text:  fmt.Sprintf("mock response to: %.40s", req.Prompt),
		Usage: provider.Usage{},
	}, nil
}

func promptPrefix(prompt string) string {
	if len(prompt) > 64 {
		return prompt[:64]
	}
	return prompt
}

// genericFixture builds a minimal object satisfying schemaJSON's required
// fields with placeholders ("mock-<name>" for strings, 1 for numbers, an
// empty array, false, or nil for other types), so an unregistered schema still
// produces a structurally valid response.
func genericFixture(schemaJSON []byte) (map[string]any, error) {
	var schema struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return nil, errs.New(errs.ConfigurationError, "invalid schema JSON for mock fixture").WithCause(err)
	}

	out := make(map[string]any)
	for _, name := range schema.Required {
		prop, ok := schema.Properties[name]
		if !ok {
			out[name] = nil
			continue
		}
		switch prop.Type {
		case "string":
			out[name] = "mock-" + name
		case "number", "integer":
			out[name] = 1
		case "array":
			out[name] = []any{}
		case "boolean":
			out[name] = false
		default:
			out[name] = nil
		}
	}
	return out, nil
}
