package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madspark/orchestrator/provider"
)

func TestProvider_GenerateStructured_RegisteredFixture(t *testing.T) {
	p := New()
	p.AddFixture(Fixture{
		SchemaName:   "idea",
		PromptPrefix: "generate 3 ideas about solar bikes",
		Response:     map[string]any{"idea_index": 0, "text": "a solar-powered bike lock"},
	})

	resp, err := p.GenerateStructured(context.Background(), provider.StructuredRequest{
		SchemaName: "idea",
		Prompt:     "generate 3 ideas about solar bikes",
	})
	require.NoError(t, err)
	assert.Contains(t, string(resp.RawJSON), "solar-powered bike lock")
}

func TestProvider_GenerateStructured_GenericFallback(t *testing.T) {
	p := New()
	schemaJSON := []byte(`{"type":"object","properties":{"text":{"type":"string"},"score":{"type":"number"}},"required":["text","score"]}`)

	resp, err := p.GenerateStructured(context.Background(), provider.StructuredRequest{
		SchemaName: "evaluation",
		Prompt:     "unregistered prompt",
		SchemaJSON: schemaJSON,
	})
	require.NoError(t, err)
	assert.Contains(t, string(resp.RawJSON), "score")
}

func TestProvider_GenerateText(t *testing.T) {
	p := New()
	resp, err := p.GenerateText(context.Background(), provider.TextRequest{Prompt: "summarize this"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
}
