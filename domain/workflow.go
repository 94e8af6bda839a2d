package domain

// WorkflowFlags toggles the optional stages of the pipeline.
type WorkflowFlags struct {
	EnhancedReasoning bool `json:"enhanced_reasoning"`
	MultiDim          bool `json:"multi_dim"`
	Logical           bool `json:"logical"`
	Novelty           bool `json:"novelty"`
}

// Attachments carries optional file/URL context forwarded to the provider.
type Attachments struct {
	Files []string `json:"files,omitempty"`
	URLs  []string `json:"urls,omitempty"`
}

// TemperatureProfile overrides the default per-agent temperature policy.
type TemperatureProfile struct {
	Generator *float32 `json:"generator,omitempty"`
	Critic    *float32 `json:"critic,omitempty"`
	Advocate  *float32 `json:"advocate,omitempty"`
	Skeptic   *float32 `json:"skeptic,omitempty"`
	Improver  *float32 `json:"improver,omitempty"`
}

// WorkflowRequest is the orchestrator's single entry-point input (spec.md §3, §6).
type WorkflowRequest struct {
	RequestID          string              `json:"request_id"`
	Topic              string              `json:"topic"`
	Context            string              `json:"context"`
	NumIdeas           int                 `json:"num_ideas"`
	NumTop             int                 `json:"num_top"`
	TemperatureProfile TemperatureProfile  `json:"temperature_profile,omitempty"`
	Flags              WorkflowFlags       `json:"flags,omitempty"`
	Attachments        *Attachments        `json:"attachments,omitempty"`
	DeadlineSeconds    int                 `json:"deadline_seconds,omitempty"`
}

// UsageSummary aggregates provider call accounting across a workflow run.
type UsageSummary struct {
	TotalCalls      int            `json:"total_calls"`
	TotalTokens     int            `json:"total_tokens"`
	TotalLatencyMS  float64        `json:"total_latency_ms"`
	EstimatedCost   float64        `json:"estimated_cost"`
	PerAgentCounts  map[string]int `json:"per_agent"`
	CacheHits       int            `json:"cache_hits"`
	Retries         int            `json:"retries"`
	FallbackEvents  int            `json:"fallback_events"`
}

// WorkflowResult is the orchestrator's deterministic result envelope (spec.md §3, §6).
type WorkflowResult struct {
	RequestID  string      `json:"request_id"`
	Candidates []Candidate `json:"candidates"`
	Usage      UsageSummary `json:"usage"`
	Warnings   []string    `json:"warnings"`
	Partial    bool        `json:"partial"`
}
