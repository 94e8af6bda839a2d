package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madspark/orchestrator/cache"
	"github.com/madspark/orchestrator/config"
	"github.com/madspark/orchestrator/domain"
	"github.com/madspark/orchestrator/errs"
	"github.com/madspark/orchestrator/monitoring"
	"github.com/madspark/orchestrator/provider"
	"github.com/madspark/orchestrator/schema"
)

// scriptedProvider is a provider.Port test double keyed purely by schema
// name (ignoring prompt text): orchestrator tests exercise fan-out, index
// reassociation across stages, and failure semantics, not prompt content —
// agentops/evaluator/inference already cover prompt-exact fixture matching
// in their own package tests.
type scriptedProvider struct {
	mu        sync.Mutex
	responses map[string]map[string]any
	failing   map[string]bool
	calls     map[string]int
	delay     time.Duration
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		responses: make(map[string]map[string]any),
		failing:   make(map[string]bool),
		calls:     make(map[string]int),
	}
}

func (p *scriptedProvider) respond(schemaName string, response map[string]any) {
	p.responses[schemaName] = response
}

func (p *scriptedProvider) fail(schemaName string) {
	p.failing[schemaName] = true
}

func (p *scriptedProvider) callCount(schemaName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[schemaName]
}

func (p *scriptedProvider) Name() string              { return "scripted" }
func (p *scriptedProvider) Model() string              { return "scripted-1" }
func (p *scriptedProvider) SupportsAttachments() bool  { return true }
func (p *scriptedProvider) CostPerToken() (float64, float64) { return 0, 0 }

func (p *scriptedProvider) Health(ctx context.Context) (provider.HealthStatus, error) {
	return provider.HealthStatus{Healthy: true}, nil
}

func (p *scriptedProvider) GenerateStructured(ctx context.Context, req provider.StructuredRequest) (provider.StructuredResponse, error) {
	p.mu.Lock()
	p.calls[req.SchemaName]++
	p.mu.Unlock()

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	if p.failing[req.SchemaName] {
		return provider.StructuredResponse{}, errs.New(errs.ProviderUnavailable, "scripted failure for "+req.SchemaName).WithRetryable(true)
	}
	resp, ok := p.responses[req.SchemaName]
	if !ok {
		return provider.StructuredResponse{}, errs.New(errs.ProviderInvalid, "no scripted response for "+req.SchemaName)
	}
	raw, err := json.Marshal(resp)
	require.NoError(nil, err)
	return provider.StructuredResponse{RawJSON: raw, Usage: provider.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}}, nil
}

func (p *scriptedProvider) GenerateText(ctx context.Context, req provider.TextRequest) (provider.TextResponse, error) {
	return provider.TextResponse{Text: "scripted"}, nil
}

func items(vals ...map[string]any) map[string]any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return map[string]any{"items": out}
}

func fastConfig() *config.Config {
	cfg := config.DefaultConfig()
	fast := config.AgentRetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond, BackoffFactor: 1.0, MaxDelay: 2 * time.Millisecond}
	cfg.Retry = config.RetryConfig{
		Generator: fast, Critic: fast, Advocate: fast, Skeptic: fast, Improver: fast, Inference: fast, MultiDimEval: fast,
	}
	cfg.WorkflowDeadlineSeconds = 5
	return cfg
}

func newTestOrchestrator(p *scriptedProvider, cfg *config.Config) *Orchestrator {
	return New(p, schema.NewRegistry(), nil, nil, nil, cfg, nil)
}

// testNamespace derives a Prometheus-safe, per-test namespace so each test
// that wires a real monitoring.Collector registers its own counter family
// instead of colliding with another test's on the default registry.
func testNamespace(t *testing.T) string {
	replacer := strings.NewReplacer("/", "_", " ", "_")
	return "madspark_test_" + replacer.Replace(t.Name())
}

func TestRun_ConfigurationErrorReturnsImmediatelyWithoutCallingProvider(t *testing.T) {
	p := newScriptedProvider()
	o := newTestOrchestrator(p, fastConfig())

	_, err := o.Run(context.Background(), domain.WorkflowRequest{RequestID: "r1", Topic: "x", NumIdeas: 0, NumTop: 1})
	require.Error(t, err)
	assert.Equal(t, errs.ConfigurationError, errs.CodeOf(err))
	assert.Equal(t, 0, p.callCount("idea"))
}

func TestRun_GenerationFailureIsFatal(t *testing.T) {
	p := newScriptedProvider()
	p.fail("idea")
	o := newTestOrchestrator(p, fastConfig())

	_, err := o.Run(context.Background(), domain.WorkflowRequest{RequestID: "r1", Topic: "x", NumIdeas: 1, NumTop: 1})
	require.Error(t, err)
	assert.Equal(t, errs.StageFatal, errs.CodeOf(err))
}

func TestRun_EvaluationFailureIsFatal(t *testing.T) {
	p := newScriptedProvider()
	p.respond("idea", items(map[string]any{"idea_index": 0, "text": "a solar bike lock"}))
	p.fail("evaluation")
	o := newTestOrchestrator(p, fastConfig())

	_, err := o.Run(context.Background(), domain.WorkflowRequest{RequestID: "r1", Topic: "x", NumIdeas: 1, NumTop: 1})
	require.Error(t, err)
	assert.Equal(t, errs.StageFatal, errs.CodeOf(err))
}

func TestRun_AdvocacyFailureDegradesButWorkflowContinues(t *testing.T) {
	p := newScriptedProvider()
	p.respond("idea", items(map[string]any{"idea_index": 0, "text": "a solar bike lock"}))
	p.respond("evaluation", items(map[string]any{"idea_index": 0, "score": 6.0, "critique": "decent"}))
	p.fail("advocacy")
	p.respond("skepticism", items(map[string]any{"idea_index": 0, "flaws": []any{}, "risks": []any{}}))
	p.respond("improvement", items(map[string]any{"idea_index": 0, "improved_text": "a better solar bike lock", "rationale": "addressed flaws"}))

	cfg := fastConfig()
	cfg.SkepticAfterAdvocacy = true
	o := newTestOrchestrator(p, cfg)

	result, err := o.Run(context.Background(), domain.WorkflowRequest{RequestID: "r1", Topic: "x", NumIdeas: 1, NumTop: 1})
	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.Contains(t, result.Warnings, "advocacy unavailable")
	require.Len(t, result.Candidates, 1)
	assert.Nil(t, result.Candidates[0].Advocacy)
	assert.NotNil(t, result.Candidates[0].Skepticism)
}

func TestRun_HappyPathProducesTopNCandidatesSortedByScore(t *testing.T) {
	p := newScriptedProvider()
	p.respond("idea", items(
		map[string]any{"idea_index": 0, "text": "idea zero"},
		map[string]any{"idea_index": 1, "text": "idea one"},
	))
	p.respond("evaluation", items(
		map[string]any{"idea_index": 0, "score": 5.0, "critique": "ok"},
		map[string]any{"idea_index": 1, "score": 8.0, "critique": "great"},
	))
	p.respond("advocacy", items(
		map[string]any{"idea_index": 0, "strengths": []any{}, "opportunities": []any{}},
		map[string]any{"idea_index": 1, "strengths": []any{}, "opportunities": []any{}},
	))
	p.respond("skepticism", items(
		map[string]any{"idea_index": 0, "flaws": []any{}, "risks": []any{}},
		map[string]any{"idea_index": 1, "flaws": []any{}, "risks": []any{}},
	))
	p.respond("improvement", items(
		map[string]any{"idea_index": 0, "improved_text": "idea zero improved", "rationale": "r"},
		map[string]any{"idea_index": 1, "improved_text": "idea one improved", "rationale": "r"},
	))

	cfg := fastConfig()
	o := newTestOrchestrator(p, cfg)

	result, err := o.Run(context.Background(), domain.WorkflowRequest{RequestID: "r1", Topic: "x", NumIdeas: 2, NumTop: 2})
	require.NoError(t, err)
	assert.False(t, result.Partial)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Candidates, 2)
	assert.Nil(t, result.Candidates[0].DimensionScores)
	assert.Nil(t, result.Candidates[0].Inference)
	assert.GreaterOrEqual(t, candidateScore(result.Candidates[0]), candidateScore(result.Candidates[1]))
}

func TestRun_MultiDimAndInferenceFlagsPopulateCandidates(t *testing.T) {
	p := newScriptedProvider()
	p.respond("idea", items(map[string]any{"idea_index": 0, "text": "idea zero"}))
	p.respond("evaluation", items(map[string]any{"idea_index": 0, "score": 5.0, "critique": "ok"}))
	p.respond("advocacy", items(map[string]any{"idea_index": 0, "strengths": []any{}, "opportunities": []any{}}))
	p.respond("skepticism", items(map[string]any{"idea_index": 0, "flaws": []any{}, "risks": []any{}}))
	p.respond("improvement", items(map[string]any{"idea_index": 0, "improved_text": "idea zero improved", "rationale": "r"}))
	p.respond("dimension_scores", items(map[string]any{
		"idea_index": 0, "feasibility": 7.0, "innovation": 6.0, "impact": 7.0,
		"cost_effectiveness": 5.0, "scalability": 6.0, "risk": 3.0, "timeline": 7.0,
	}))
	p.respond("inference", items(map[string]any{
		"idea_index": 0, "conclusion": "solid", "confidence": 0.8, "type": "FULL",
	}))

	cfg := fastConfig()
	o := newTestOrchestrator(p, cfg)

	req := domain.WorkflowRequest{
		RequestID: "r1", Topic: "x", NumIdeas: 1, NumTop: 1,
		Flags: domain.WorkflowFlags{MultiDim: true, Logical: true},
	}
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	require.NotNil(t, result.Candidates[0].DimensionScores)
	assert.Equal(t, 7.0, result.Candidates[0].DimensionScores.Safety) // 10 - risk(3)
	require.NotNil(t, result.Candidates[0].Inference)
	assert.InDelta(t, 0.8, result.Candidates[0].Inference.Confidence, 1e-9)
}

func TestRunAsync_EmitsProgressEventsAndDeliversOutcome(t *testing.T) {
	p := newScriptedProvider()
	p.respond("idea", items(map[string]any{"idea_index": 0, "text": "idea zero"}))
	p.respond("evaluation", items(map[string]any{"idea_index": 0, "score": 5.0, "critique": "ok"}))
	p.respond("advocacy", items(map[string]any{"idea_index": 0, "strengths": []any{}, "opportunities": []any{}}))
	p.respond("skepticism", items(map[string]any{"idea_index": 0, "flaws": []any{}, "risks": []any{}}))
	p.respond("improvement", items(map[string]any{"idea_index": 0, "improved_text": "idea zero improved", "rationale": "r"}))

	o := newTestOrchestrator(p, fastConfig())
	events, outcomeCh := o.RunAsync(context.Background(), domain.WorkflowRequest{RequestID: "r1", Topic: "x", NumIdeas: 1, NumTop: 1})

	var stages []string
	var percents []int
	for ev := range events {
		stages = append(stages, ev.Stage)
		percents = append(percents, ev.Progress)
	}
	outcome := <-outcomeCh

	require.NoError(t, outcome.Err)
	require.Len(t, outcome.Result.Candidates, 1)
	assert.Contains(t, stages, "generate_ideas")
	assert.Contains(t, stages, "assemble")
	for i := 1; i < len(stages); i++ {
		// progress is non-decreasing and every event names its stage.
		assert.NotEmpty(t, stages[i])
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

// TestRun_CachedReplayHitsCacheAndIssuesNoNewCalls covers S2: running the
// same request twice against a wired response cache must serve the second
// run entirely from cache, with no additional provider calls.
func TestRun_CachedReplayHitsCacheAndIssuesNoNewCalls(t *testing.T) {
	p := newScriptedProvider()
	p.respond("idea", items(
		map[string]any{"idea_index": 0, "text": "idea zero"},
		map[string]any{"idea_index": 1, "text": "idea one"},
	))
	p.respond("evaluation", items(
		map[string]any{"idea_index": 0, "score": 5.0, "critique": "ok"},
		map[string]any{"idea_index": 1, "score": 8.0, "critique": "great"},
	))
	p.respond("advocacy", items(
		map[string]any{"idea_index": 0, "strengths": []any{}, "opportunities": []any{}},
		map[string]any{"idea_index": 1, "strengths": []any{}, "opportunities": []any{}},
	))
	p.respond("skepticism", items(
		map[string]any{"idea_index": 0, "flaws": []any{}, "risks": []any{}},
		map[string]any{"idea_index": 1, "flaws": []any{}, "risks": []any{}},
	))
	p.respond("improvement", items(
		map[string]any{"idea_index": 0, "improved_text": "idea zero improved", "rationale": "r"},
		map[string]any{"idea_index": 1, "improved_text": "idea one improved", "rationale": "r"},
	))

	cfg := fastConfig()
	respCache := cache.New(cfg.Cache, nil, nil)
	collector := monitoring.NewCollector(testNamespace(t))
	o := New(p, schema.NewRegistry(), respCache, collector, nil, cfg, nil)

	req := domain.WorkflowRequest{RequestID: "r1", Topic: "x", NumIdeas: 2, NumTop: 2}

	first, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	callsAfterFirst := collector.Snapshot().TotalCalls

	second, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	snapshot := collector.Snapshot()
	assert.Equal(t, callsAfterFirst, snapshot.TotalCalls, "a fully cached replay must not issue new provider calls")
	assert.GreaterOrEqual(t, snapshot.CacheHits, 6)
	assert.Equal(t, len(first.Candidates), len(second.Candidates))
}

// TestRun_DeadlineExceededReturnsPartialWithWarning covers S5: a deadline
// that elapses mid-pipeline must fold into a partial result with the
// "deadline exceeded" warning rather than a fatal error.
func TestRun_DeadlineExceededReturnsPartialWithWarning(t *testing.T) {
	p := newScriptedProvider()
	p.delay = 2 * time.Second
	p.respond("idea", items(map[string]any{"idea_index": 0, "text": "idea zero"}))

	cfg := fastConfig()
	o := newTestOrchestrator(p, cfg)

	req := domain.WorkflowRequest{RequestID: "r1", Topic: "x", NumIdeas: 1, NumTop: 1, DeadlineSeconds: 1}
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.Contains(t, result.Warnings, "deadline exceeded")
}

// TestRun_NoveltyDedupRemovesNearDuplicateIdea covers S6: of two
// near-duplicate generated ideas, novelty dedup keeps only the first and
// flags the rejection; the rejected idea never reaches a candidate.
func TestRun_NoveltyDedupRemovesNearDuplicateIdea(t *testing.T) {
	dup := "a solar powered vertical garden tower for urban rooftops using reclaimed rainwater"
	nearDup := dup + " systems"

	p := newScriptedProvider()
	p.respond("idea", items(
		map[string]any{"idea_index": 0, "text": "a chicken coop monitoring app"},
		map[string]any{"idea_index": 1, "text": "a drone delivery network for fresh produce"},
		map[string]any{"idea_index": 2, "text": dup},
		map[string]any{"idea_index": 3, "text": nearDup},
		map[string]any{"idea_index": 4, "text": "a community tool library network"},
	))
	p.respond("evaluation", items(
		map[string]any{"idea_index": 0, "score": 5.0, "critique": "ok"},
		map[string]any{"idea_index": 1, "score": 9.0, "critique": "great"},
		map[string]any{"idea_index": 2, "score": 8.0, "critique": "good"},
		map[string]any{"idea_index": 3, "score": 6.0, "critique": "fine"},
	))
	p.respond("advocacy", items(
		map[string]any{"idea_index": 0, "strengths": []any{}, "opportunities": []any{}},
		map[string]any{"idea_index": 1, "strengths": []any{}, "opportunities": []any{}},
		map[string]any{"idea_index": 2, "strengths": []any{}, "opportunities": []any{}},
	))
	p.respond("skepticism", items(
		map[string]any{"idea_index": 0, "flaws": []any{}, "risks": []any{}},
		map[string]any{"idea_index": 1, "flaws": []any{}, "risks": []any{}},
		map[string]any{"idea_index": 2, "flaws": []any{}, "risks": []any{}},
	))
	p.respond("improvement", items(
		map[string]any{"idea_index": 0, "improved_text": "improved a", "rationale": "r"},
		map[string]any{"idea_index": 1, "improved_text": "improved b", "rationale": "r"},
		map[string]any{"idea_index": 2, "improved_text": "improved c", "rationale": "r"},
	))

	cfg := fastConfig()
	o := newTestOrchestrator(p, cfg)

	req := domain.WorkflowRequest{
		RequestID: "r1", Topic: "x", NumIdeas: 5, NumTop: 3,
		Flags: domain.WorkflowFlags{Novelty: true},
	}
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, result.Warnings, "near-duplicate idea rejected by novelty filter")

	var sawDup, sawNearDup bool
	for _, c := range result.Candidates {
		if c.Idea.Text == dup {
			sawDup = true
		}
		if c.Idea.Text == nearDup {
			sawNearDup = true
		}
	}
	assert.True(t, sawDup, "the earlier near-duplicate idea should survive dedup")
	assert.False(t, sawNearDup, "the later near-duplicate idea should be rejected by dedup")
}

// TestRun_NonMeaningfulImprovementIsFlagged exercises the orchestrator's
// wiring of novelty.Similarity and config.ImprovementConfig into a warning
// when an improvement barely changes the text and barely moves the score.
func TestRun_NonMeaningfulImprovementIsFlagged(t *testing.T) {
	p := newScriptedProvider()
	originalText := "a solar powered bike lock with GPS tracking for urban commuters who worry about theft near transit stations"
	p.respond("idea", items(map[string]any{"idea_index": 0, "text": originalText}))
	p.respond("evaluation", items(map[string]any{"idea_index": 0, "score": 6.0, "critique": "ok"}))
	p.respond("advocacy", items(map[string]any{"idea_index": 0, "strengths": []any{}, "opportunities": []any{}}))
	p.respond("skepticism", items(map[string]any{"idea_index": 0, "flaws": []any{}, "risks": []any{}}))
	p.respond("improvement", items(map[string]any{
		"idea_index": 0, "improved_text": originalText + " device", "rationale": "r",
	}))
	// Re-evaluation reuses the "evaluation" schema (same fixture), so the
	// improved idea scores identically to the original: scoreDelta == 0.

	cfg := fastConfig()
	o := newTestOrchestrator(p, cfg)

	req := domain.WorkflowRequest{RequestID: "r1", Topic: "x", NumIdeas: 1, NumTop: 1}
	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)

	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "improvement not meaningful") {
			found = true
		}
	}
	assert.True(t, found, "near-identical improvement with no real score gain should be flagged")
}
