package inference

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madspark/orchestrator/config"
	"github.com/madspark/orchestrator/domain"
	"github.com/madspark/orchestrator/provider/mock"
	"github.com/madspark/orchestrator/schema"
)

func newTestEngine(cfg config.InferenceConfig) (*Engine, *mock.Provider) {
	p := mock.New()
	registry := schema.NewRegistry()
	e := New(p, registry, nil, nil, config.DefaultRetryConfig().Inference, cfg, nil)
	return e, p
}

func inferPrompt(ideas []domain.Idea, topic, ideaContext string, kind domain.InferenceType) string {
	return fmt.Sprintf("%s\n%s\nPerform a %s logical inference over each idea: trace an inference chain, state a conclusion, give a confidence in [0,1], and suggest refinements.",
		fmtContextBlock(topic, ideaContext), renderIdeaList(ideas), kind)
}

func promptPrefixFor(prompt string) string {
	if len(prompt) > 64 {
		return prompt[:64]
	}
	return prompt
}

func TestInfer_DefaultsToFullAndParsesChain(t *testing.T) {
	e, p := newTestEngine(config.InferenceConfig{ConfidenceThreshold: 0.0})
	ideas := []domain.Idea{{ID: "i1", Text: "a solar bike lock", OrderIndex: 0}}
	prompt := inferPrompt(ideas, "mobility", "", domain.InferenceFull)
	p.AddFixture(mock.Fixture{
		SchemaName:   "inference",
		PromptPrefix: promptPrefixFor(prompt),
		Response: map[string]any{"items": []any{
			map[string]any{
				"idea_index":       0,
				"inference_chain":  []any{"solar panels are cheap", "bike theft is common", "a lock that charges itself adds no upkeep cost"},
				"conclusion":       "viable with minor hardware risk",
				"confidence":       0.8,
				"suggestions":      []any{"weatherproof the solar cell"},
				"type":             "FULL",
			},
		}},
	})

	results, warnings, err := e.Infer(context.Background(), ideas, "mobility", "", "")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, results, 1)
	assert.Equal(t, "i1", results[0].Result.IdeaID)
	assert.Equal(t, domain.InferenceFull, results[0].Result.Type)
	assert.InDelta(t, 0.8, results[0].Result.Confidence, 1e-9)
	assert.False(t, results[0].FellBelowThreshold)
	assert.Len(t, results[0].Result.InferenceChain, 3)
}

func TestInfer_LowConfidenceStillIncludedButFlagged(t *testing.T) {
	e, p := newTestEngine(config.InferenceConfig{ConfidenceThreshold: 0.5})
	ideas := []domain.Idea{{ID: "i1", Text: "a speculative idea", OrderIndex: 0}}
	prompt := inferPrompt(ideas, "x", "", domain.InferenceCausal)
	p.AddFixture(mock.Fixture{
		SchemaName:   "inference",
		PromptPrefix: promptPrefixFor(prompt),
		Response: map[string]any{"items": []any{
			map[string]any{
				"idea_index": 0,
				"conclusion": "uncertain",
				"confidence": 0.2,
				"type":       "CAUSAL",
			},
		}},
	})

	results, warnings, err := e.Infer(context.Background(), ideas, "x", "", domain.InferenceCausal)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].FellBelowThreshold)
	assert.NotEmpty(t, warnings)
}

func TestInfer_MissingItemOmittedNotPlaceholdered(t *testing.T) {
	e, p := newTestEngine(config.InferenceConfig{ConfidenceThreshold: 0.0})
	ideas := []domain.Idea{
		{ID: "i1", Text: "idea one", OrderIndex: 0},
		{ID: "i2", Text: "idea two", OrderIndex: 1},
	}
	prompt := inferPrompt(ideas, "x", "", domain.InferenceFull)
	p.AddFixture(mock.Fixture{
		SchemaName:   "inference",
		PromptPrefix: promptPrefixFor(prompt),
		Response: map[string]any{"items": []any{
			map[string]any{"idea_index": 0, "conclusion": "fine", "confidence": 0.9, "type": "FULL"},
		}},
	})

	results, warnings, err := e.Infer(context.Background(), ideas, "x", "", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "i1", results[0].Result.IdeaID)
	assert.NotEmpty(t, warnings)
}

func TestInfer_EmptyIdeasReturnsNoResults(t *testing.T) {
	e, _ := newTestEngine(config.InferenceConfig{ConfidenceThreshold: 0.0})
	results, warnings, err := e.Infer(context.Background(), nil, "x", "", "")
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Nil(t, warnings)
}
