// Package domain defines the data model of the MadSpark workflow orchestrator
// (spec.md §3): ideas, evaluations, advocacy/skepticism blocks, improvements,
// dimension scores, inference results, and the request/result envelopes.
package domain

// Idea is a single candidate idea produced by the Idea Generator.
// Immutable after creation; ID is a stable fingerprint of Text and
// OrderIndex.
type Idea struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	OrderIndex int    `json:"order_index"`
}

// Evaluation is the Critic's scored assessment of one idea.
type Evaluation struct {
	IdeaID      string   `json:"idea_id"`
	Score       float64  `json:"score"`
	Critique    string   `json:"critique"`
	Strengths   []string `json:"strengths,omitempty"`
	Weaknesses  []string `json:"weaknesses,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// TitledPoint is a title/description pair shared by advocacy and skepticism blocks.
type TitledPoint struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ConcernResponse pairs a raised concern with the Advocate's response to it.
type ConcernResponse struct {
	Concern  string `json:"concern"`
	Response string `json:"response"`
}

// AdvocacyBlock is the Advocate's case for one idea.
type AdvocacyBlock struct {
	IdeaID             string            `json:"idea_id"`
	Strengths          []TitledPoint     `json:"strengths"`
	Opportunities      []TitledPoint     `json:"opportunities"`
	AddressingConcerns []ConcernResponse `json:"addressing_concerns"`
}

// SkepticismBlock is the Skeptic's critique of one idea.
type SkepticismBlock struct {
	IdeaID                  string        `json:"idea_id"`
	Flaws                   []TitledPoint `json:"flaws"`
	Risks                   []TitledPoint `json:"risks"`
	QuestionableAssumptions []TitledPoint `json:"questionable_assumptions"`
	MissingConsiderations   []TitledPoint `json:"missing_considerations"`
}

// Improvement is the Improver's revision of one idea.
type Improvement struct {
	IdeaID       string `json:"idea_id"`
	ImprovedText string `json:"improved_text"`
	Rationale    string `json:"rationale"`
}

// InferenceType enumerates the five logical-inference analysis kinds.
type InferenceType string

const (
	InferenceFull          InferenceType = "FULL"
	InferenceCausal        InferenceType = "CAUSAL"
	InferenceConstraints   InferenceType = "CONSTRAINTS"
	InferenceContradiction InferenceType = "CONTRADICTION"
	InferenceImplications  InferenceType = "IMPLICATIONS"
)

// DimensionScores holds the 7 fixed evaluation dimensions, each in [0,10].
// Safety replaces the source's "risk" dimension (safety = 10 - risk).
type DimensionScores struct {
	Feasibility       float64 `json:"feasibility"`
	Innovation        float64 `json:"innovation"`
	Impact            float64 `json:"impact"`
	CostEffectiveness float64 `json:"cost_effectiveness"`
	Scalability       float64 `json:"scalability"`
	Safety            float64 `json:"safety"`
	Timeline          float64 `json:"timeline"`
}

// InferenceResult is the Logical Inference Engine's structured reasoning for one idea.
type InferenceResult struct {
	IdeaID         string        `json:"idea_id"`
	InferenceChain []string      `json:"inference_chain"`
	Conclusion     string        `json:"conclusion"`
	Confidence     float64       `json:"confidence"`
	Suggestions    []string      `json:"suggestions,omitempty"`
	Type           InferenceType `json:"type"`
}

// Candidate is the fully assembled, ranked result for one surviving idea.
type Candidate struct {
	IdeaID             string           `json:"-"`
	Idea               Idea             `json:"idea"`
	Evaluation         Evaluation       `json:"evaluation"`
	Advocacy           *AdvocacyBlock   `json:"advocacy,omitempty"`
	Skepticism         *SkepticismBlock `json:"skepticism,omitempty"`
	Improvement        *Improvement     `json:"improved_idea,omitempty"`
	ImprovedEvaluation *Evaluation      `json:"improved_evaluation,omitempty"`
	DimensionScores    *DimensionScores `json:"dimension_scores,omitempty"`
	Inference          *InferenceResult `json:"inference,omitempty"`
}
