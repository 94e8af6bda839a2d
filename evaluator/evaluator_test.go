package evaluator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madspark/orchestrator/config"
	"github.com/madspark/orchestrator/domain"
	"github.com/madspark/orchestrator/provider/mock"
	"github.com/madspark/orchestrator/schema"
)

func TestEvaluateBatch_WeightedOverallAndSafetyInversion(t *testing.T) {
	p := mock.New()
	registry := schema.NewRegistry()
	ideas := []domain.Idea{{ID: "i1", Text: "a solar bike lock", OrderIndex: 0}}

	prompt := "Topic: mobility\nContext: \n" + renderIdeas(ideas) + "Score each idea on all 7 dimensions, each in [0,10]. \"risk\" should be high when the idea is risky (it will be inverted to a safety score)."
	p.AddFixture(mock.Fixture{
		SchemaName:   "dimension_scores",
		PromptPrefix: prompt[:min(64, len(prompt))],
		Response: map[string]any{"items": []any{
			map[string]any{
				"idea_index": 0, "feasibility": 8.0, "innovation": 6.0, "impact": 7.0,
				"cost_effectiveness": 5.0, "scalability": 6.0, "risk": 2.0, "timeline": 7.0,
			},
		}},
	})

	e := New(p, registry, nil, nil, config.DefaultRetryConfig().MultiDimEval, config.DefaultDimensionWeights(), nil)
	results, warnings, err := e.EvaluateBatch(context.Background(), ideas, "mobility", "")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, results, 1)
	assert.Equal(t, 8.0, results[0].Scores.Safety) // 10 - risk(2)
	assert.InDelta(t, (8.0+6.0+7.0+5.0+6.0+8.0+7.0)/7.0, results[0].Overall, 1e-9)
}

func TestEvaluateBatch_MissingItemKeepsBaseScore(t *testing.T) {
	p := mock.New()
	registry := schema.NewRegistry()
	ideas := []domain.Idea{
		{ID: "i1", Text: "idea one", OrderIndex: 0},
		{ID: "i2", Text: "idea two", OrderIndex: 1},
	}

	prompt := "Topic: x\nContext: \n" + renderIdeas(ideas) + "Score each idea on all 7 dimensions, each in [0,10]. \"risk\" should be high when the idea is risky (it will be inverted to a safety score)."
	p.AddFixture(mock.Fixture{
		SchemaName:   "dimension_scores",
		PromptPrefix: prompt[:min(64, len(prompt))],
		Response: map[string]any{"items": []any{
			map[string]any{
				"idea_index": 0, "feasibility": 5.0, "innovation": 5.0, "impact": 5.0,
				"cost_effectiveness": 5.0, "scalability": 5.0, "risk": 5.0, "timeline": 5.0,
			},
		}},
	})

	e := New(p, registry, nil, nil, config.DefaultRetryConfig().MultiDimEval, config.DefaultDimensionWeights(), nil)
	results, warnings, err := e.EvaluateBatch(context.Background(), ideas, "x", "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "i2", results[1].IdeaID)
	assert.Equal(t, 0.0, results[1].Overall)
	assert.NotEmpty(t, warnings)
}
