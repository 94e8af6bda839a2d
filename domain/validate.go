package domain

import "github.com/madspark/orchestrator/errs"

// Validate checks a WorkflowRequest for the ConfigurationError conditions
// of spec.md §7: num_ideas < 1, num_top outside [1, num_ideas].
func (r *WorkflowRequest) Validate() error {
	if r.NumIdeas < 1 {
		return errs.New(errs.ConfigurationError, "num_ideas must be >= 1")
	}
	if r.NumTop < 1 || r.NumTop > r.NumIdeas {
		return errs.New(errs.ConfigurationError, "num_top must be in [1, num_ideas]")
	}
	if r.Topic == "" {
		return errs.New(errs.ConfigurationError, "topic is required")
	}
	return nil
}

// ClampScore clamps a score into [0, 10], per spec.md §3's Evaluation invariant.
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

// ClampConfidence clamps a confidence value into [0, 1].
func ClampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
