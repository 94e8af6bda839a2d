// Package evaluator implements MadSpark's multi-dimensional evaluator
// (spec.md §4.G): one batch call scores every idea across 7 fixed
// dimensions, combined into a weighted overall score.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/madspark/orchestrator/cache"
	"github.com/madspark/orchestrator/config"
	"github.com/madspark/orchestrator/domain"
	"github.com/madspark/orchestrator/monitoring"
	"github.com/madspark/orchestrator/provider"
	"github.com/madspark/orchestrator/retry"
	"github.com/madspark/orchestrator/schema"
)

// Evaluator scores ideas along feasibility, innovation, impact,
// cost_effectiveness, scalability, safety, and timeline.
type Evaluator struct {
	provider  provider.Port
	registry  *schema.Registry
	respCache *cache.ResponseCache
	collector *monitoring.Collector
	policy    config.AgentRetryPolicy
	weights   config.DimensionWeights
	logger    *zap.Logger
}

// New builds an Evaluator. respCache and collector may be nil.
func New(p provider.Port, registry *schema.Registry, respCache *cache.ResponseCache, collector *monitoring.Collector, policy config.AgentRetryPolicy, weights config.DimensionWeights, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		provider:  p,
		registry:  registry,
		respCache: respCache,
		collector: collector,
		policy:    policy,
		weights:   weights,
		logger:    logger,
	}
}

// ScoredCandidate pairs an idea's 7-dimension scores with its weighted
// overall score.
type ScoredCandidate struct {
	IdeaID  string
	Scores  domain.DimensionScores
	Overall float64
}

// EvaluateBatch scores all ideas in one call. A parse failure on a single
// item keeps that idea's base score (all dimensions zero, overall zero) and
// is reported as a warning; other items are unaffected.
func (e *Evaluator) EvaluateBatch(ctx context.Context, ideas []domain.Idea, topic, ideaContext string) ([]ScoredCandidate, []string, error) {
	prompt := fmt.Sprintf("Topic: %s\nContext: %s\n%s\nScore each idea on all 7 dimensions, each in [0,10]. \"risk\" should be high when the idea is risky (it will be inverted to a safety score).",
		topic, ideaContext, renderIdeas(ideas))

	batchSchemaJSON, err := e.registry.BatchSchemaJSON(schema.DimensionScoresID)
	if err != nil {
		return nil, nil, err
	}

	key := cache.Key(string(schema.DimensionScoresID), e.provider.Model(), 0.0, multiDimSystemPrompt, prompt)

	var raw []byte
	if e.respCache != nil {
		if cached, ok, _ := e.respCache.Get(ctx, key); ok {
			raw = cached
			if e.collector != nil {
				e.collector.RecordCall("multi_dim_eval", 0, 0, 0, true)
			}
		}
	}

	if raw == nil {
		supervisor := retry.NewSupervisor(e.policy, e.logger)
		var resp provider.StructuredResponse
		attempts := 0
		err := supervisor.Do(ctx, func(ctx context.Context, strict bool) error {
			attempts++
			systemPrompt := multiDimSystemPrompt
			if strict {
				systemPrompt = retry.StrictSchemaReminder + systemPrompt
			}
			var callErr error
			resp, callErr = e.provider.GenerateStructured(ctx, provider.StructuredRequest{
				SystemPrompt: systemPrompt,
				Prompt:       prompt,
				SchemaName:   string(schema.DimensionScoresID),
				SchemaJSON:   batchSchemaJSON,
				Temperature:  0.0,
			})
			return callErr
		})
		if attempts > 1 && e.collector != nil {
			e.collector.RecordRetry("multi_dim_eval")
		}
		if err != nil {
			return nil, nil, err
		}
		if e.collector != nil {
			e.collector.RecordCall("multi_dim_eval", resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.LatencyMS, false)
		}
		if e.respCache != nil {
			_ = e.respCache.Set(ctx, key, resp.RawJSON)
		}
		raw = resp.RawJSON
	}

	itemsByIndex, warnings := e.parseItems(raw)

	results := make([]ScoredCandidate, len(ideas))
	for i, idea := range ideas {
		item, ok := itemsByIndex[i]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("multi_dim_eval: missing scores for idea %q, using base score", idea.ID))
			results[i] = ScoredCandidate{IdeaID: idea.ID}
			continue
		}
		results[i] = ScoredCandidate{
			IdeaID:  idea.ID,
			Scores:  item,
			Overall: e.weightedOverall(item),
		}
	}
	return results, warnings, nil
}

func (e *Evaluator) parseItems(raw []byte) (map[int]domain.DimensionScores, []string) {
	var envelope struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, []string{"multi_dim_eval: malformed batch response"}
	}

	itemsByIndex := make(map[int]domain.DimensionScores, len(envelope.Items))
	var warnings []string
	for _, rawItem := range envelope.Items {
		encoded, err := json.Marshal(rawItem)
		if err != nil {
			continue
		}
		obj, err := e.registry.Validate(encoded, schema.DimensionScoresID)
		if err != nil {
			warnings = append(warnings, "multi_dim_eval: "+err.Error())
			continue
		}

		idx, ok := floatField(obj, "idea_index")
		if !ok {
			continue
		}
		risk, _ := floatField(obj, "risk")
		feasibility, _ := floatField(obj, "feasibility")
		innovation, _ := floatField(obj, "innovation")
		impact, _ := floatField(obj, "impact")
		costEffectiveness, _ := floatField(obj, "cost_effectiveness")
		scalability, _ := floatField(obj, "scalability")
		timeline, _ := floatField(obj, "timeline")

		itemsByIndex[int(idx)] = domain.DimensionScores{
			Feasibility:       feasibility,
			Innovation:        innovation,
			Impact:            impact,
			CostEffectiveness: costEffectiveness,
			Scalability:       scalability,
			Safety:            10 - risk,
			Timeline:          timeline,
		}
	}
	return itemsByIndex, warnings
}

func (e *Evaluator) weightedOverall(s domain.DimensionScores) float64 {
	w := e.weights
	return s.Feasibility*w.Feasibility +
		s.Innovation*w.Innovation +
		s.Impact*w.Impact +
		s.CostEffectiveness*w.CostEffectiveness +
		s.Scalability*w.Scalability +
		s.Safety*w.Safety +
		s.Timeline*w.Timeline
}

func floatField(obj map[string]any, name string) (float64, bool) {
	v, ok := obj[name]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func renderIdeas(ideas []domain.Idea) string {
	out := ""
	for i, idea := range ideas {
		out += fmt.Sprintf("[%d] %s\n", i, idea.Text)
	}
	return out
}

const multiDimSystemPrompt = "You are MadSpark's multi-dimensional evaluator: score every idea on feasibility, innovation, impact, cost_effectiveness, scalability, risk, and timeline, each 0-10."
