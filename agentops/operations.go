package agentops

import (
	"context"
	"fmt"
	"strings"

	"github.com/madspark/orchestrator/domain"
	"github.com/madspark/orchestrator/schema"
)

// resolveTemp returns override if set, else def.
func resolveTemp(override *float32, def float32) float32 {
	if override != nil {
		return *override
	}
	return def
}

// GenerateIdeasBatch produces up to numIdeas candidate ideas in one call.
// Returns fewer than requested, with a warning, if the provider under-delivers.
func (c *Client) GenerateIdeasBatch(ctx context.Context, topic, ideaContext string, numIdeas int, temperature *float32) ([]domain.Idea, []string, error) {
	temp := resolveTemp(temperature, c.temps.Generator)
	prompt := fmt.Sprintf(
		"%s\nGenerate exactly %d distinct, concrete ideas. Echo each idea's 0-based position as idea_index.",
		fmtContextBlock(topic, ideaContext), numIdeas,
	)

	result, err := c.callBatch(ctx, "generator", schema.IdeaID, generatorSystemPrompt, prompt, temp, numIdeas, c.retries.Generator)
	if err != nil {
		return nil, nil, err
	}

	ideas := make([]domain.Idea, 0, numIdeas)
	var warnings []string
	for i := 0; i < numIdeas; i++ {
		obj, ok := result.itemsByIndex[i]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("generator: missing idea at index %d", i))
			continue
		}
		var payload struct {
			Text string `json:"text"`
		}
		if err := marshalInto(obj, &payload); err != nil {
			warnings = append(warnings, fmt.Sprintf("generator: unparsable idea at index %d", i))
			continue
		}
		ideas = append(ideas, domain.Idea{
			ID:         fingerprint(payload.Text, i),
			Text:       payload.Text,
			OrderIndex: i,
		})
	}

	if len(ideas) < numIdeas {
		warnings = append(warnings, fmt.Sprintf("generator: requested %d ideas, received %d", numIdeas, len(ideas)))
	}
	return ideas, warnings, nil
}

// GenerateIdeaOne is the single-item convenience wrapper.
func (c *Client) GenerateIdeaOne(ctx context.Context, topic, ideaContext string, temperature *float32) (domain.Idea, error) {
	ideas, _, err := c.GenerateIdeasBatch(ctx, topic, ideaContext, 1, temperature)
	if err != nil {
		return domain.Idea{}, err
	}
	if len(ideas) == 0 {
		return domain.Idea{}, fmt.Errorf("generator produced no idea")
	}
	return ideas[0], nil
}

// EvaluateIdeasBatch scores every idea in one call. Missing items become a
// zero-score placeholder evaluation with a warning.
func (c *Client) EvaluateIdeasBatch(ctx context.Context, ideas []domain.Idea, topic, ideaContext string, temperature *float32) ([]domain.Evaluation, []string, error) {
	temp := resolveTemp(temperature, c.temps.Critic)
	prompt := fmt.Sprintf("%s\n%s\nScore and critique each idea.", fmtContextBlock(topic, ideaContext), renderIdeaList(ideas))

	result, err := c.callBatch(ctx, "critic", schema.EvaluationID, criticSystemPrompt, prompt, temp, len(ideas), c.retries.Critic)
	if err != nil {
		return nil, nil, err
	}

	evaluations := make([]domain.Evaluation, len(ideas))
	var warnings []string
	for i, idea := range ideas {
		obj, ok := result.itemsByIndex[i]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("critic: missing evaluation for idea %q", idea.ID))
			evaluations[i] = domain.Evaluation{IdeaID: idea.ID}
			continue
		}
		var eval domain.Evaluation
		if err := marshalInto(obj, &eval); err != nil {
			warnings = append(warnings, fmt.Sprintf("critic: unparsable evaluation for idea %q", idea.ID))
			evaluations[i] = domain.Evaluation{IdeaID: idea.ID}
			continue
		}
		eval.IdeaID = idea.ID
		eval.Score = domain.ClampScore(eval.Score)
		evaluations[i] = eval
	}
	return evaluations, warnings, nil
}

// AdvocateIdeasBatch builds the advocate's case for every idea in one call.
func (c *Client) AdvocateIdeasBatch(ctx context.Context, ideas []domain.Idea, evaluations []domain.Evaluation, topic, ideaContext string, temperature *float32) ([]domain.AdvocacyBlock, []string, error) {
	temp := resolveTemp(temperature, c.temps.Advocate)
	prompt := fmt.Sprintf("%s\n%s\nArgue for the merits of each idea, addressing its stated weaknesses.",
		fmtContextBlock(topic, ideaContext), renderIdeaListWithEval(ideas, evaluations))

	result, err := c.callBatch(ctx, "advocate", schema.AdvocacyID, advocateSystemPrompt, prompt, temp, len(ideas), c.retries.Advocate)
	if err != nil {
		return nil, nil, err
	}

	blocks := make([]domain.AdvocacyBlock, len(ideas))
	var warnings []string
	for i, idea := range ideas {
		obj, ok := result.itemsByIndex[i]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("advocate: missing advocacy for idea %q", idea.ID))
			blocks[i] = domain.AdvocacyBlock{IdeaID: idea.ID}
			continue
		}
		var block domain.AdvocacyBlock
		if err := marshalInto(obj, &block); err != nil {
			warnings = append(warnings, fmt.Sprintf("advocate: unparsable advocacy for idea %q", idea.ID))
			blocks[i] = domain.AdvocacyBlock{IdeaID: idea.ID}
			continue
		}
		block.IdeaID = idea.ID
		blocks[i] = block
	}
	return blocks, warnings, nil
}

// SkepticizeIdeasBatch raises concerns against every idea in one call,
// consuming the Advocate's output per spec.md §4.I's sequential default.
func (c *Client) SkepticizeIdeasBatch(ctx context.Context, ideas []domain.Idea, advocacy []domain.AdvocacyBlock, topic, ideaContext string, temperature *float32) ([]domain.SkepticismBlock, []string, error) {
	temp := resolveTemp(temperature, c.temps.Skeptic)
	prompt := fmt.Sprintf("%s\n%s\nRaise the strongest flaws, risks, and unexamined assumptions for each idea.",
		fmtContextBlock(topic, ideaContext), renderIdeaListWithAdvocacy(ideas, advocacy))

	result, err := c.callBatch(ctx, "skeptic", schema.SkepticismID, skepticSystemPrompt, prompt, temp, len(ideas), c.retries.Skeptic)
	if err != nil {
		return nil, nil, err
	}

	blocks := make([]domain.SkepticismBlock, len(ideas))
	var warnings []string
	for i, idea := range ideas {
		obj, ok := result.itemsByIndex[i]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("skeptic: missing skepticism for idea %q", idea.ID))
			blocks[i] = domain.SkepticismBlock{IdeaID: idea.ID}
			continue
		}
		var block domain.SkepticismBlock
		if err := marshalInto(obj, &block); err != nil {
			warnings = append(warnings, fmt.Sprintf("skeptic: unparsable skepticism for idea %q", idea.ID))
			blocks[i] = domain.SkepticismBlock{IdeaID: idea.ID}
			continue
		}
		block.IdeaID = idea.ID
		blocks[i] = block
	}
	return blocks, warnings, nil
}

// ImproveIdeasBatch revises every idea in light of its accumulated feedback
// in one call.
func (c *Client) ImproveIdeasBatch(ctx context.Context, ideas []domain.Idea, evaluations []domain.Evaluation, advocacy []domain.AdvocacyBlock, skepticism []domain.SkepticismBlock, topic, ideaContext string, temperature *float32) ([]domain.Improvement, []string, error) {
	temp := resolveTemp(temperature, c.temps.Improver)
	prompt := fmt.Sprintf("%s\n%s\nRevise each idea to address its weaknesses, flaws, and risks while preserving its core value.",
		fmtContextBlock(topic, ideaContext), renderIdeaListWithAllFeedback(ideas, evaluations, advocacy, skepticism))

	result, err := c.callBatch(ctx, "improver", schema.ImprovementID, improverSystemPrompt, prompt, temp, len(ideas), c.retries.Improver)
	if err != nil {
		return nil, nil, err
	}

	improvements := make([]domain.Improvement, len(ideas))
	var warnings []string
	for i, idea := range ideas {
		obj, ok := result.itemsByIndex[i]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("improver: missing improvement for idea %q", idea.ID))
			improvements[i] = domain.Improvement{IdeaID: idea.ID, ImprovedText: idea.Text}
			continue
		}
		var improvement domain.Improvement
		if err := marshalInto(obj, &improvement); err != nil {
			warnings = append(warnings, fmt.Sprintf("improver: unparsable improvement for idea %q", idea.ID))
			improvements[i] = domain.Improvement{IdeaID: idea.ID, ImprovedText: idea.Text}
			continue
		}
		improvement.IdeaID = idea.ID
		improvements[i] = improvement
	}
	return improvements, warnings, nil
}

const (
	generatorSystemPrompt = "You are MadSpark's idea generator: produce distinct, concrete, feasible ideas, one per requested index."
	criticSystemPrompt    = "You are MadSpark's critic: score ideas 0-10 and give a specific, actionable critique."
	advocateSystemPrompt  = "You are MadSpark's advocate: make the strongest honest case for each idea."
	skepticSystemPrompt   = "You are MadSpark's skeptic: surface the flaws, risks, and unexamined assumptions the advocate glossed over."
	improverSystemPrompt  = "You are MadSpark's improver: rewrite each idea so it survives the critique leveled against it."
)

func renderIdeaList(ideas []domain.Idea) string {
	var b strings.Builder
	for i, idea := range ideas {
		fmt.Fprintf(&b, "[%d] %s\n", i, idea.Text)
	}
	return b.String()
}

func renderIdeaListWithEval(ideas []domain.Idea, evaluations []domain.Evaluation) string {
	var b strings.Builder
	for i, idea := range ideas {
		fmt.Fprintf(&b, "[%d] %s\n    critique: %s\n", i, idea.Text, evalCritique(evaluations, i))
	}
	return b.String()
}

func renderIdeaListWithAdvocacy(ideas []domain.Idea, advocacy []domain.AdvocacyBlock) string {
	var b strings.Builder
	for i, idea := range ideas {
		strengths, opportunities := advocacyCounts(advocacy, i)
		fmt.Fprintf(&b, "[%d] %s\n    advocacy strengths: %d, opportunities: %d\n", i, idea.Text, strengths, opportunities)
	}
	return b.String()
}

func renderIdeaListWithAllFeedback(ideas []domain.Idea, evaluations []domain.Evaluation, advocacy []domain.AdvocacyBlock, skepticism []domain.SkepticismBlock) string {
	var b strings.Builder
	for i, idea := range ideas {
		fmt.Fprintf(&b, "[%d] %s\n    critique: %s\n    flaws raised: %d\n", i, idea.Text, evalCritique(evaluations, i), skepticismFlawCount(skepticism, i))
	}
	return b.String()
}

func evalCritique(evaluations []domain.Evaluation, i int) string {
	if i < len(evaluations) {
		return evaluations[i].Critique
	}
	return ""
}

func advocacyCounts(advocacy []domain.AdvocacyBlock, i int) (strengths, opportunities int) {
	if i < len(advocacy) {
		return len(advocacy[i].Strengths), len(advocacy[i].Opportunities)
	}
	return 0, 0
}

func skepticismFlawCount(skepticism []domain.SkepticismBlock, i int) int {
	if i < len(skepticism) {
		return len(skepticism[i].Flaws)
	}
	return 0
}
