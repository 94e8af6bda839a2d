// =============================================================================
// MadSpark default configuration
// =============================================================================
// Sensible defaults for every configuration item.
// =============================================================================
package config

import "time"

// DefaultConfig returns the default configuration (spec.md §6 defaults).
func DefaultConfig() *Config {
	return &Config{
		Temperature:             DefaultTemperatureConfig(),
		Retry:                   DefaultRetryConfig(),
		WorkflowDeadlineSeconds: 600,
		Concurrency:             ConcurrencyConfig{MaxWorkers: 4},
		Cache:                   DefaultCacheConfig(),
		Novelty:                 NoveltyConfig{Enabled: true, Threshold: 0.85},
		Improvement: ImprovementConfig{
			MeaningfulSimilarity: 0.9,
			MeaningfulScoreDelta: 0.3,
		},
		MultiDim:             MultiDimConfig{Weights: DefaultDimensionWeights()},
		Inference:            InferenceConfig{ConfidenceThreshold: 0.0},
		SkepticAfterAdvocacy: true,
		Redis:                DefaultRedisConfig(),
		Log:                  DefaultLogConfig(),
	}
}

// DefaultTemperatureConfig returns the agent temperature policy of spec.md §4.F.
func DefaultTemperatureConfig() TemperatureConfig {
	return TemperatureConfig{
		Generator: 0.9,
		Critic:    0.3,
		Advocate:  0.5,
		Skeptic:   0.5,
		Improver:  0.9,
	}
}

// DefaultRetryConfig returns the per-agent retry table of spec.md §4.C.
func DefaultRetryConfig() RetryConfig {
	threeRetry := AgentRetryPolicy{MaxRetries: 3, InitialDelay: 2 * time.Second, BackoffFactor: 2.0, MaxDelay: 30 * time.Second}
	twoRetry := AgentRetryPolicy{MaxRetries: 2, InitialDelay: 1 * time.Second, BackoffFactor: 2.0, MaxDelay: 30 * time.Second}

	return RetryConfig{
		Generator:    threeRetry,
		Critic:       threeRetry,
		Advocate:     twoRetry,
		Skeptic:      twoRetry,
		Improver:     threeRetry,
		Inference:    twoRetry,
		MultiDimEval: twoRetry,
	}
}

// DefaultCacheConfig returns the default response-cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      true,
		TTLSeconds:   86400,
		LocalMaxSize: 1000,
		UseRedis:     false,
	}
}

// DefaultDimensionWeights returns the uniform 1/7 weight vector (spec.md §9).
func DefaultDimensionWeights() DimensionWeights {
	const w = 1.0 / 7.0
	return DimensionWeights{
		Feasibility:       w,
		Innovation:        w,
		Impact:            w,
		CostEffectiveness: w,
		Scalability:       w,
		Safety:            w,
		Timeline:          w,
	}
}

// DefaultRedisConfig returns the default Redis cache-tier configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}
