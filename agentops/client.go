// Package agentops implements MadSpark's five agent operations (spec.md
// §4.F): generate_ideas, evaluate_ideas, advocate_ideas, skepticize_ideas,
// and improve_ideas. Every operation exposes a batch signature — the
// orchestrator's default, and the reason a 5-stage workflow costs O(1)
// provider calls per stage instead of O(N). Only idea generation also has a
// single-item wrapper (GenerateIdeaOne) on the same call path; the other
// four operations have no single-item variant.
package agentops

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/madspark/orchestrator/cache"
	"github.com/madspark/orchestrator/config"
	"github.com/madspark/orchestrator/errs"
	"github.com/madspark/orchestrator/monitoring"
	"github.com/madspark/orchestrator/provider"
	"github.com/madspark/orchestrator/retry"
	"github.com/madspark/orchestrator/schema"
)

// Client wires a provider, the schema registry, an optional cache, optional
// monitoring, and a per-agent retry policy table into the five batch
// operations.
type Client struct {
	provider   provider.Port
	registry   *schema.Registry
	respCache  *cache.ResponseCache
	collector  *monitoring.Collector
	retries    config.RetryConfig
	temps      config.TemperatureConfig
	logger     *zap.Logger
}

// New builds an agentops Client. respCache and collector may be nil.
func New(p provider.Port, registry *schema.Registry, respCache *cache.ResponseCache, collector *monitoring.Collector, retries config.RetryConfig, temps config.TemperatureConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		provider:  p,
		registry:  registry,
		respCache: respCache,
		collector: collector,
		retries:   retries,
		temps:     temps,
		logger:    logger,
	}
}

// batchResult is the per-item outcome of one batch call: items successfully
// parsed and validated, keyed by idea_index, plus whether the batch as a
// whole returned fewer items than requested.
type batchResult struct {
	itemsByIndex map[int]map[string]any
	partial      bool
}

// callBatch drives one structured batch call end-to-end: cache lookup,
// retry-supervised provider call, cache write-back, per-item schema
// validation, and monitoring.
func (c *Client) callBatch(ctx context.Context, agent string, schemaID schema.ID, systemPrompt, prompt string, temperature float32, expectedCount int, policy config.AgentRetryPolicy) (batchResult, error) {
	batchSchemaJSON, err := c.registry.BatchSchemaJSON(schemaID)
	if err != nil {
		return batchResult{}, errs.New(errs.ConfigurationError, "no schema for "+string(schemaID)).WithCause(err)
	}

	key := cache.Key(string(schemaID), c.provider.Model(), temperature, systemPrompt, prompt)

	if c.respCache != nil {
		if raw, ok, _ := c.respCache.Get(ctx, key); ok {
			if c.collector != nil {
				c.collector.RecordCall(agent, 0, 0, 0, true)
			}
			return c.parseBatch(raw, schemaID, expectedCount)
		}
	}

	supervisor := retry.NewSupervisor(policy, c.logger)
	var resp provider.StructuredResponse
	attempts := 0
	err = supervisor.Do(ctx, func(ctx context.Context, strict bool) error {
		attempts++
		callSystemPrompt := systemPrompt
		if strict {
			callSystemPrompt = retry.StrictSchemaReminder + callSystemPrompt
		}
		var callErr error
		resp, callErr = c.provider.GenerateStructured(ctx, provider.StructuredRequest{
			SystemPrompt: callSystemPrompt,
			Prompt:       prompt,
			SchemaName:   string(schemaID),
			SchemaJSON:   batchSchemaJSON,
			Temperature:  temperature,
		})
		return callErr
	})
	if attempts > 1 && c.collector != nil {
		c.collector.RecordRetry(agent)
	}
	if err != nil {
		return batchResult{}, err
	}

	promptTokens, completionTokens := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	if promptTokens == 0 && completionTokens == 0 {
		promptTokens, completionTokens = estimateUsage(systemPrompt, prompt, string(resp.RawJSON))
	}
	if c.collector != nil {
		c.collector.RecordCall(agent, promptTokens, completionTokens, resp.Usage.LatencyMS, false)
	}
	if c.respCache != nil {
		_ = c.respCache.Set(ctx, key, resp.RawJSON)
	}

	return c.parseBatch(resp.RawJSON, schemaID, expectedCount)
}

// estimateUsage falls back to tiktoken-based estimation when an adapter
// reports a zero-token Usage (no billed accounting available).
func estimateUsage(systemPrompt, prompt, rawResponse string) (promptTokens, completionTokens int) {
	if n, err := provider.EstimateTokens(systemPrompt + "\n" + prompt); err == nil {
		promptTokens = n
	}
	if n, err := provider.EstimateTokens(rawResponse); err == nil {
		completionTokens = n
	}
	return promptTokens, completionTokens
}

func (c *Client) parseBatch(raw []byte, schemaID schema.ID, expectedCount int) (batchResult, error) {
	var envelope struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return batchResult{}, errs.New(errs.SchemaMismatch, "batch response is not a valid items envelope").WithCause(err)
	}

	itemsByIndex := make(map[int]map[string]any, len(envelope.Items))
	for _, rawItem := range envelope.Items {
		obj, err := c.registry.Validate(rawItem, schemaID)
		if err != nil {
			c.logger.Warn("dropping malformed batch item", zap.String("schema", string(schemaID)), zap.Error(err))
			continue
		}
		idx, ok := indexOf(obj)
		if !ok {
			continue
		}
		itemsByIndex[idx] = obj
	}

	return batchResult{
		itemsByIndex: itemsByIndex,
		partial:      len(itemsByIndex) < expectedCount,
	}, nil
}

func indexOf(obj map[string]any) (int, bool) {
	v, ok := obj["idea_index"]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func marshalInto(obj map[string]any, target any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func fmtContextBlock(topic, ideaContext string) string {
	if ideaContext == "" {
		return fmt.Sprintf("Topic: %s", topic)
	}
	return fmt.Sprintf("Topic: %s\nContext: %s", topic, ideaContext)
}
