// Package inference implements MadSpark's logical inference engine
// (spec.md §4.H): one batch call reasons over every improved idea and
// returns a typed inference chain with a confidence score.
package inference

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

// Engine runs the logical inference engine's batched analysis.
type Engine struct {
	provider  provider.Port
	registry  *schema.Registry
	respCache *cache.ResponseCache
	collector *monitoring.Collector
	policy    config.AgentRetryPolicy
	threshold float64
	logger    *zap.Logger
}

// New builds an Engine. respCache and collector may be nil.
func New(p provider.Port, registry *schema.Registry, respCache *cache.ResponseCache, collector *monitoring.Collector, policy config.AgentRetryPolicy, cfg config.InferenceConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		provider:  p,
		registry:  registry,
		respCache: respCache,
		collector: collector,
		policy:    policy,
		threshold: cfg.ConfidenceThreshold,
		logger:    logger,
	}
}

// Infer runs one analysis kind across all ideas in a single call. A result
// whose confidence falls below the configured threshold is still included,
// but FellBelowThreshold is set so the caller can flag it rather than drop
// it (spec.md §4.H). A missing item is omitted from the result slice
// entirely, not placeholdered — the orchestrator treats inference as
// best-effort and degrades gracefully on a whole-call failure.
func (e *Engine) Infer(ctx context.Context, ideas []domain.Idea, topic, ideaContext string, kind domain.InferenceType) ([]Result, []string, error) {
	if kind == "" {
		kind = domain.InferenceFull
	}
	if len(ideas) == 0 {
		return nil, nil, nil
	}

	prompt := fmt.Sprintf("%s\n%s\nPerform a %s logical inference over each idea: trace an inference chain, state a conclusion, give a confidence in [0,1], and suggest refinements.",
		fmtContextBlock(topic, ideaContext), renderIdeaList(ideas), kind)

	batchSchemaJSON, err := e.registry.BatchSchemaJSON(schema.InferenceID)
	if err != nil {
		return nil, nil, err
	}

	key := cache.Key(string(schema.InferenceID)+":"+string(kind), e.provider.Model(), 0.2, inferenceSystemPrompt, prompt)

	var raw []byte
	if e.respCache != nil {
		if cached, ok, _ := e.respCache.Get(ctx, key); ok {
			raw = cached
			if e.collector != nil {
				e.collector.RecordCall("inference", 0, 0, 0, true)
			}
		}
	}

	if raw == nil {
		supervisor := retry.NewSupervisor(e.policy, e.logger)
		var resp provider.StructuredResponse
		attempts := 0
		err := supervisor.Do(ctx, func(ctx context.Context, strict bool) error {
			attempts++
			systemPrompt := inferenceSystemPrompt
			if strict {
				systemPrompt = retry.StrictSchemaReminder + systemPrompt
			}
			var callErr error
			resp, callErr = e.provider.GenerateStructured(ctx, provider.StructuredRequest{
				SystemPrompt: systemPrompt,
				Prompt:       prompt,
				SchemaName:   string(schema.InferenceID),
				SchemaJSON:   batchSchemaJSON,
				Temperature:  0.2,
			})
			return callErr
		})
		if attempts > 1 && e.collector != nil {
			e.collector.RecordRetry("inference")
		}
		if err != nil {
			if e.collector != nil {
				e.collector.RecordFallback("inference")
			}
			return nil, nil, err
		}
		if e.collector != nil {
			e.collector.RecordCall("inference", resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.LatencyMS, false)
		}
		if e.respCache != nil {
			_ = e.respCache.Set(ctx, key, resp.RawJSON)
		}
		raw = resp.RawJSON
	}

	itemsByIndex, warnings := e.parseItems(raw, kind)

	var results []Result
	for i, idea := range ideas {
		item, ok := itemsByIndex[i]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("inference: no result for idea %q", idea.ID))
			continue
		}
		item.Result.IdeaID = idea.ID
		if item.Result.Confidence < e.threshold {
			item.FellBelowThreshold = true
			warnings = append(warnings, fmt.Sprintf("inference: idea %q confidence %.2f below threshold %.2f", idea.ID, item.Result.Confidence, e.threshold))
		}
		results = append(results, item)
	}
	return results, warnings, nil
}

// Result pairs an inference result with whether it fell below the
// configured confidence threshold. It is still returned either way
// (spec.md §4.H): the caller decides what to do with a low-confidence
// result, the engine only flags it.
type Result struct {
	Result             domain.InferenceResult
	FellBelowThreshold bool
}

func (e *Engine) parseItems(raw []byte, kind domain.InferenceType) (map[int]Result, []string) {
	var envelope struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, []string{"inference: malformed batch response"}
	}

	itemsByIndex := make(map[int]Result, len(envelope.Items))
	var warnings []string
	for _, rawItem := range envelope.Items {
		encoded, err := json.Marshal(rawItem)
		if err != nil {
			continue
		}
		obj, err := e.registry.Validate(encoded, schema.InferenceID)
		if err != nil {
			warnings = append(warnings, "inference: "+err.Error())
			continue
		}

		idx, ok := floatField(obj, "idea_index")
		if !ok {
			continue
		}
		conclusion, _ := obj["conclusion"].(string)
		confidence, _ := floatField(obj, "confidence")
		chain := stringSlice(obj["inference_chain"])
		suggestions := stringSlice(obj["suggestions"])

		itemsByIndex[int(idx)] = Result{Result: domain.InferenceResult{
			InferenceChain: chain,
			Conclusion:     conclusion,
			Confidence:     confidence,
			Suggestions:    suggestions,
			Type:           kind,
		}}
	}
	return itemsByIndex, warnings
}

func floatField(obj map[string]any, name string) (float64, bool) {
	v, ok := obj[name]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func renderIdeaList(ideas []domain.Idea) string {
	out := ""
	for i, idea := range ideas {
		out += fmt.Sprintf("[%d] %s\n", i, idea.Text)
	}
	return out
}

func fmtContextBlock(topic, ideaContext string) string {
	if ideaContext == "" {
		return fmt.Sprintf("Topic: %s", topic)
	}
	return fmt.Sprintf("Topic: %s\nContext: %s", topic, ideaContext)
}

const inferenceSystemPrompt = "You are MadSpark's logical inference engine: trace a short chain of reasoning from each idea to a conclusion, with a confidence in [0,1]."
