package config

import (
	"fmt"
	"math"
)

// Validate checks the configuration against spec.md's ConfigurationError
// conditions: invalid deadline range, weights that don't sum to 1.0.
func Validate(cfg *Config) error {
	if cfg.WorkflowDeadlineSeconds < 60 || cfg.WorkflowDeadlineSeconds > 3600 {
		return fmt.Errorf("workflow_deadline_seconds must be in [60, 3600], got %d", cfg.WorkflowDeadlineSeconds)
	}

	if cfg.Concurrency.MaxWorkers < 1 {
		return fmt.Errorf("concurrency.max_workers must be >= 1, got %d", cfg.Concurrency.MaxWorkers)
	}

	if sum := cfg.MultiDim.Weights.Sum(); math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("multi_dim.weights must sum to 1.0, got %f", sum)
	}

	return nil
}

// Sum returns the sum of all seven dimension weights.
func (w DimensionWeights) Sum() float64 {
	return w.Feasibility + w.Innovation + w.Impact + w.CostEffectiveness +
		w.Scalability + w.Safety + w.Timeline
}
