// Package orchestrator implements MadSpark's workflow orchestrator
// (spec.md §4.I): the 8-step idea generation/evaluation/refinement
// pipeline, run either synchronously or with progress events streamed
// to an async caller. Run and RunAsync share one algorithm and one
// scheduler; RunAsync differs only in streaming progress events and
// delivering its outcome on a channel. Both modes issue the independent
// calls of steps 5 and 7 concurrently (bounded by
// Concurrency.MaxWorkers); neither mode runs them one call at a time.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/madspark/orchestrator/agentops"
	"github.com/madspark/orchestrator/cache"
	"github.com/madspark/orchestrator/config"
	"github.com/madspark/orchestrator/domain"
	"github.com/madspark/orchestrator/errs"
	"github.com/madspark/orchestrator/evaluator"
	"github.com/madspark/orchestrator/inference"
	"github.com/madspark/orchestrator/monitoring"
	"github.com/madspark/orchestrator/novelty"
	"github.com/madspark/orchestrator/progress"
	"github.com/madspark/orchestrator/provider"
	"github.com/madspark/orchestrator/schema"
)

const stepCount = 8

// Orchestrator runs the pipeline described in spec.md §4.I. It is the
// sole concurrency owner: agent operations, the evaluator, and the
// inference engine are plain batch calls with no concurrency of their
// own.
type Orchestrator struct {
	agents    *agentops.Client
	evaluator *evaluator.Evaluator
	inference *inference.Engine
	novelty   *novelty.Filter
	bus       *progress.Bus
	collector *monitoring.Collector
	cfg       *config.Config
	logger    *zap.Logger
}

type options struct {
	cacheDisabled bool
}

// Option configures an Orchestrator at construction time.
type Option func(*options)

// WithCacheDisabled builds the Orchestrator's collaborators without a
// response cache, regardless of the respCache passed to New.
func WithCacheDisabled() Option {
	return func(o *options) { o.cacheDisabled = true }
}

// New wires a Provider Port, schema registry, response cache, metrics
// collector, and progress bus into an Orchestrator, per cfg. respCache,
// collector, and bus may all be nil.
func New(p provider.Port, registry *schema.Registry, respCache *cache.ResponseCache, collector *monitoring.Collector, bus *progress.Bus, cfg *config.Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheDisabled {
		respCache = nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = progress.New(logger)
	}

	return &Orchestrator{
		agents:    agentops.New(p, registry, respCache, collector, cfg.Retry, cfg.Temperature, logger),
		evaluator: evaluator.New(p, registry, respCache, collector, cfg.Retry.MultiDimEval, cfg.MultiDim.Weights, logger),
		inference: inference.New(p, registry, respCache, collector, cfg.Retry.Inference, cfg.Inference, logger),
		novelty:   novelty.New(cfg.Novelty.Threshold),
		bus:       bus,
		collector: collector,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunOutcome is the terminal message delivered on RunAsync's outcome
// channel: exactly one of Result or Err is meaningful, matching Run's
// (result, error) return.
type RunOutcome struct {
	Result domain.WorkflowResult
	Err    error
}

// Run executes the pipeline to completion and returns its result. A
// ConfigurationError or generation/evaluation failure after retries is
// returned as an error; every other stage failure degrades into a
// partial result with warnings (spec.md §4.I's failure semantics).
func (o *Orchestrator) Run(ctx context.Context, req domain.WorkflowRequest) (domain.WorkflowResult, error) {
	if err := req.Validate(); err != nil {
		return domain.WorkflowResult{}, err
	}

	ctx, cancel := o.withDeadline(ctx, req)
	defer cancel()

	return o.execute(ctx, req)
}

// RunAsync runs the same pipeline but streams progress.Events to the
// returned channel as each step completes, and delivers exactly one
// RunOutcome on the second channel when the run finishes. Both
// channels are closed after the outcome is sent.
func (o *Orchestrator) RunAsync(ctx context.Context, req domain.WorkflowRequest) (<-chan progress.Event, <-chan RunOutcome) {
	outcomeCh := make(chan RunOutcome, 1)

	if err := req.Validate(); err != nil {
		events := make(chan progress.Event)
		close(events)
		outcomeCh <- RunOutcome{Err: err}
		close(outcomeCh)
		return events, outcomeCh
	}

	events := o.bus.Subscribe(req.RequestID)

	ctx, cancel := o.withDeadline(ctx, req)
	go func() {
		defer cancel()
		defer close(outcomeCh)
		defer o.bus.Unsubscribe(req.RequestID, events)

		result, err := o.execute(ctx, req)
		outcomeCh <- RunOutcome{Result: result, Err: err}
	}()

	return events, outcomeCh
}

func (o *Orchestrator) withDeadline(ctx context.Context, req domain.WorkflowRequest) (context.Context, context.CancelFunc) {
	deadline := o.cfg.WorkflowDeadlineSeconds
	if req.DeadlineSeconds > 0 {
		deadline = req.DeadlineSeconds
	}
	if deadline <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(deadline)*time.Second)
}

// execute runs the 8-step pipeline described in spec.md §4.I. It emits a
// progress.Event after each step with cumulative percent, and never lets
// the deadline surface past run_workflow: an exceeded deadline is folded
// into a partial result with a warning (spec.md §9's cooperative deadline
// enforcement).
func (o *Orchestrator) execute(ctx context.Context, req domain.WorkflowRequest) (domain.WorkflowResult, error) {
	result := domain.WorkflowResult{RequestID: req.RequestID}
	step := 0
	emit := func(stage, message string) {
		step++
		o.bus.Publish(progress.Event{
			RequestID: req.RequestID,
			Stage:     stage,
			Progress:  step * 100 / stepCount,
			Message:   message,
		})
	}

	// 1. generate_ideas — fatal.
	ideas, warnings, err := o.agents.GenerateIdeasBatch(ctx, req.Topic, req.Context, req.NumIdeas, req.TemperatureProfile.Generator)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		if ctx.Err() != nil {
			return o.finishOnDeadline(req, result, nil, nil, nil, nil, nil, nil, nil)
		}
		return o.finishOnFatal(req, result, "idea generation failed", err)
	}
	emit("generate_ideas", "")

	// 2. novelty_filter — optional.
	if req.Flags.Novelty && o.cfg.Novelty.Enabled {
		texts := make([]string, len(ideas))
		for i, idea := range ideas {
			texts[i] = idea.Text
		}
		kept, rejected := o.novelty.Dedup(texts)
		if len(rejected) > 0 {
			result.Warnings = append(result.Warnings, "near-duplicate idea rejected by novelty filter")
			filtered := make([]domain.Idea, len(kept))
			for i, idx := range kept {
				filtered[i] = ideas[idx]
			}
			ideas = filtered
		}
	}
	emit("novelty_filter", "")

	if err := ctx.Err(); err != nil {
		return o.finishOnDeadline(req, result, ideas, nil, nil, nil, nil, nil, nil)
	}

	// 3. evaluate_ideas (batch) — fatal.
	evaluations, warnings, err := o.agents.EvaluateIdeasBatch(ctx, ideas, req.Topic, req.Context, req.TemperatureProfile.Critic)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		if ctx.Err() != nil {
			return o.finishOnDeadline(req, result, ideas, nil, nil, nil, nil, nil, nil)
		}
		return o.finishOnFatal(req, result, "idea evaluation failed", err)
	}
	emit("evaluate_ideas", "")

	// 4. select_top_N by score, ties broken by original order.
	top, topEvals := selectTopN(ideas, evaluations, req.NumTop)
	emit("select_top", "")

	if err := ctx.Err(); err != nil {
		return o.finishOnDeadline(req, result, top, topEvals, nil, nil, nil, nil, nil)
	}

	// 5. parallel: advocate_ideas(top) x skepticize_ideas(top).
	var advocacy []domain.AdvocacyBlock
	var skepticism []domain.SkepticismBlock
	if o.cfg.SkepticAfterAdvocacy {
		advocacy, warnings, err = o.agents.AdvocateIdeasBatch(ctx, top, topEvals, req.Topic, req.Context, req.TemperatureProfile.Advocate)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			result.Warnings = append(result.Warnings, "advocacy unavailable")
			result.Partial = true
			advocacy = nil
		}
		skepticism, warnings, err = o.agents.SkepticizeIdeasBatch(ctx, top, advocacy, req.Topic, req.Context, req.TemperatureProfile.Skeptic)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			result.Warnings = append(result.Warnings, "skepticism unavailable")
			result.Partial = true
			skepticism = nil
		}
	} else {
		var outcome raceSafeOutcome
		g, gctx := errgroup.WithContext(ctx)
		if o.cfg.Concurrency.MaxWorkers > 0 {
			g.SetLimit(o.cfg.Concurrency.MaxWorkers)
		}
		g.Go(func() error {
			var gerr error
			var gadvocacy []domain.AdvocacyBlock
			var gwarnings []string
			gadvocacy, gwarnings, gerr = o.agents.AdvocateIdeasBatch(gctx, top, topEvals, req.Topic, req.Context, req.TemperatureProfile.Advocate)
			if gerr != nil {
				gwarnings = append(gwarnings, "advocacy unavailable")
			} else {
				advocacy = gadvocacy
			}
			outcome.merge(gwarnings, gerr != nil)
			return nil // non-fatal: collect both branches regardless of error
		})
		g.Go(func() error {
			var gerr error
			var gskepticism []domain.SkepticismBlock
			var gwarnings []string
			gskepticism, gwarnings, gerr = o.agents.SkepticizeIdeasBatch(gctx, top, nil, req.Topic, req.Context, req.TemperatureProfile.Skeptic)
			if gerr != nil {
				gwarnings = append(gwarnings, "skepticism unavailable")
			} else {
				skepticism = gskepticism
			}
			outcome.merge(gwarnings, gerr != nil)
			return nil
		})
		_ = g.Wait()
		result.Warnings = append(result.Warnings, outcome.warnings...)
		if outcome.partial {
			result.Partial = true
		}
	}
	emit("advocate_skepticize", "")

	if err := ctx.Err(); err != nil {
		return o.finishOnDeadline(req, result, top, topEvals, advocacy, skepticism, nil, nil, nil)
	}

	// 6. improve_ideas(top, feedback) — non-fatal.
	improvements, warnings, err := o.agents.ImproveIdeasBatch(ctx, top, topEvals, advocacy, skepticism, req.Topic, req.Context, req.TemperatureProfile.Improver)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		result.Warnings = append(result.Warnings, "improvement unavailable, keeping original ideas")
		result.Partial = true
		improvements = fallbackImprovements(top)
	}
	emit("improve_ideas", "")

	if err := ctx.Err(); err != nil {
		return o.finishOnDeadline(req, result, top, topEvals, advocacy, skepticism, improvements, nil, nil)
	}

	// 7. parallel: evaluate_ideas(improved) x multi_dim_eval(improved) x logical_inference(improved).
	improvedIdeas := improvedIdeaSlice(top, improvements)

	var improvedEvals []domain.Evaluation
	var dimScores []evaluator.ScoredCandidate
	var inferenceResults []inference.Result

	var refineOutcome raceSafeOutcome
	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.Concurrency.MaxWorkers > 0 {
		g.SetLimit(o.cfg.Concurrency.MaxWorkers)
	}
	g.Go(func() error {
		var gerr error
		var gwarnings []string
		improvedEvals, gwarnings, gerr = o.agents.EvaluateIdeasBatch(gctx, improvedIdeas, req.Topic, req.Context, req.TemperatureProfile.Critic)
		if gerr != nil {
			gwarnings = append(gwarnings, "re-evaluation unavailable")
		}
		refineOutcome.merge(gwarnings, gerr != nil)
		return nil
	})
	if req.Flags.MultiDim {
		g.Go(func() error {
			var gerr error
			var gwarnings []string
			dimScores, gwarnings, gerr = o.evaluator.EvaluateBatch(gctx, improvedIdeas, req.Topic, req.Context)
			if gerr != nil {
				gwarnings = append(gwarnings, "multi-dimensional evaluation unavailable")
			}
			refineOutcome.merge(gwarnings, gerr != nil)
			return nil
		})
	}
	if req.Flags.Logical {
		g.Go(func() error {
			var gerr error
			var gwarnings []string
			inferenceResults, gwarnings, gerr = o.inference.Infer(gctx, improvedIdeas, req.Topic, req.Context, domain.InferenceFull)
			if gerr != nil {
				gwarnings = append(gwarnings, "logical inference unavailable")
			}
			refineOutcome.merge(gwarnings, gerr != nil)
			return nil
		})
	}
	_ = g.Wait()
	result.Warnings = append(result.Warnings, refineOutcome.warnings...)
	if refineOutcome.partial {
		result.Partial = true
	}
	emit("refine_evaluate", "")

	// 8. assemble Candidates; sort; flag non-meaningful improvements; emit result.
	result.Candidates = assembleCandidates(top, topEvals, advocacy, skepticism, improvements, improvedEvals, dimScores, inferenceResults)
	result.Warnings = append(result.Warnings, nonMeaningfulImprovementWarnings(result.Candidates, o.cfg.Improvement)...)
	sortCandidates(result.Candidates)
	result.Usage = o.usageSnapshot()
	emit("assemble", "")

	return result, nil
}

func (o *Orchestrator) finishOnFatal(req domain.WorkflowRequest, result domain.WorkflowResult, message string, err error) (domain.WorkflowResult, error) {
	o.logger.Warn(message, zap.String("request_id", req.RequestID), zap.Error(err))
	result.Usage = o.usageSnapshot()
	return result, errs.New(errs.StageFatal, message).WithCause(err)
}

// finishOnDeadline assembles whatever has been fully populated so far into
// a partial result, per spec.md §4.I: "cancel outstanding work and return
// whatever Candidates are fully populated plus placeholders for the rest."
func (o *Orchestrator) finishOnDeadline(req domain.WorkflowRequest, result domain.WorkflowResult, ideas []domain.Idea, evaluations []domain.Evaluation, advocacy []domain.AdvocacyBlock, skepticism []domain.SkepticismBlock, improvements []domain.Improvement, improvedEvals []domain.Evaluation, dimScores []evaluator.ScoredCandidate) (domain.WorkflowResult, error) {
	result.Partial = true
	result.Warnings = append(result.Warnings, "deadline exceeded")
	result.Candidates = assembleCandidates(ideas, evaluations, advocacy, skepticism, improvements, improvedEvals, dimScores, nil)
	sortCandidates(result.Candidates)
	result.Usage = o.usageSnapshot()
	return result, nil
}

// usageSnapshot reads the current call/token/cache counters, or the zero
// UsageSummary when no collector is wired (collector is optional — see New).
func (o *Orchestrator) usageSnapshot() domain.UsageSummary {
	if o.collector == nil {
		return domain.UsageSummary{}
	}
	return o.collector.Snapshot()
}

// selectTopN ranks ideas by evaluation score descending, original order
// breaking ties, and returns the top n of each in lockstep.
func selectTopN(ideas []domain.Idea, evaluations []domain.Evaluation, n int) ([]domain.Idea, []domain.Evaluation) {
	indices := make([]int, len(ideas))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return evaluations[indices[a]].Score > evaluations[indices[b]].Score
	})

	if n <= 0 || n > len(indices) {
		n = len(indices)
	}
	top := make([]domain.Idea, n)
	topEvals := make([]domain.Evaluation, n)
	for i, idx := range indices[:n] {
		top[i] = ideas[idx]
		topEvals[i] = evaluations[idx]
	}
	return top, topEvals
}

func fallbackImprovements(ideas []domain.Idea) []domain.Improvement {
	improvements := make([]domain.Improvement, len(ideas))
	for i, idea := range ideas {
		improvements[i] = domain.Improvement{IdeaID: idea.ID, ImprovedText: idea.Text, Rationale: "improvement unavailable; original idea retained"}
	}
	return improvements
}

// improvedIdeaSlice projects the Improver's output back into domain.Idea
// values so downstream batch calls (re-evaluate/multi-dim/inference) see
// the improved text rather than the original.
func improvedIdeaSlice(ideas []domain.Idea, improvements []domain.Improvement) []domain.Idea {
	out := make([]domain.Idea, len(ideas))
	for i, idea := range ideas {
		text := idea.Text
		if i < len(improvements) && improvements[i].ImprovedText != "" {
			text = improvements[i].ImprovedText
		}
		out[i] = domain.Idea{ID: idea.ID, Text: text, OrderIndex: idea.OrderIndex}
	}
	return out
}

func assembleCandidates(ideas []domain.Idea, evaluations []domain.Evaluation, advocacy []domain.AdvocacyBlock, skepticism []domain.SkepticismBlock, improvements []domain.Improvement, improvedEvals []domain.Evaluation, dimScores []evaluator.ScoredCandidate, inferenceResults []inference.Result) []domain.Candidate {
	dimByID := make(map[string]domain.DimensionScores, len(dimScores))
	for _, sc := range dimScores {
		dimByID[sc.IdeaID] = sc.Scores
	}
	inferenceByID := make(map[string]domain.InferenceResult, len(inferenceResults))
	for _, r := range inferenceResults {
		inferenceByID[r.Result.IdeaID] = r.Result
	}

	candidates := make([]domain.Candidate, len(ideas))
	for i, idea := range ideas {
		c := domain.Candidate{IdeaID: idea.ID, Idea: idea}
		if i < len(evaluations) {
			c.Evaluation = evaluations[i]
		}
		if i < len(advocacy) {
			block := advocacy[i]
			c.Advocacy = &block
		}
		if i < len(skepticism) {
			block := skepticism[i]
			c.Skepticism = &block
		}
		if i < len(improvements) {
			improvement := improvements[i]
			c.Improvement = &improvement
		}
		if i < len(improvedEvals) {
			eval := improvedEvals[i]
			c.ImprovedEvaluation = &eval
		}
		if scores, ok := dimByID[idea.ID]; ok {
			c.DimensionScores = &scores
		}
		if inf, ok := inferenceByID[idea.ID]; ok {
			c.Inference = &inf
		}
		candidates[i] = c
	}
	return candidates
}

// nonMeaningfulImprovementWarnings flags candidates whose improvement is not
// a "meaningful improvement" (spec.md §4.E): improved text near-identical to
// the original (similarity above meaningful_similarity) with no real score
// gain (delta below meaningful_score_delta). Candidates missing either an
// Improvement or an ImprovedEvaluation are skipped — there's nothing to
// compare yet.
func nonMeaningfulImprovementWarnings(candidates []domain.Candidate, cfg config.ImprovementConfig) []string {
	var warnings []string
	for _, c := range candidates {
		if c.Improvement == nil || c.ImprovedEvaluation == nil {
			continue
		}
		similarity := novelty.Similarity(c.Idea.Text, c.Improvement.ImprovedText)
		delta := c.ImprovedEvaluation.Score - c.Evaluation.Score
		if similarity > cfg.MeaningfulSimilarity && delta < cfg.MeaningfulScoreDelta {
			warnings = append(warnings, fmt.Sprintf("idea %s: improvement not meaningful (similarity=%.2f, score_delta=%.2f)", c.IdeaID, similarity, delta))
		}
	}
	return warnings
}

// sortCandidates orders by improved score (falling back to the original
// score when no improved evaluation exists). The sort is stable, so ties
// keep their incoming order: selectTopN's order of original score
// descending, then generation order.
func sortCandidates(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidateScore(candidates[a]) > candidateScore(candidates[b])
	})
}

// raceSafeOutcome collects warnings and a partial flag from concurrent
// goroutines within one pipeline step, so no goroutine ever appends to
// the shared WorkflowResult directly.
type raceSafeOutcome struct {
	mu       sync.Mutex
	warnings []string
	partial  bool
}

func (o *raceSafeOutcome) merge(warnings []string, partial bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.warnings = append(o.warnings, warnings...)
	if partial {
		o.partial = true
	}
}

func candidateScore(c domain.Candidate) float64 {
	if c.ImprovedEvaluation != nil {
		return c.ImprovedEvaluation.Score
	}
	return c.Evaluation.Score
}
