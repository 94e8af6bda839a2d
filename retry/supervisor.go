// Package retry implements MadSpark's per-agent retry policy (spec.md §4.C):
// exponential backoff with jitter, driven by config.RetryConfig's per-agent
// table, retrying only ProviderUnavailable errors and a first SchemaMismatch.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/madspark/orchestrator/config"
	"github.com/madspark/orchestrator/errs"
)

// StrictSchemaReminder is prepended to the prompt on the single retry that
// follows a SchemaMismatch (spec.md §4.B/§4.C), to push the model back onto
// the required output shape.
const StrictSchemaReminder = "REMINDER: your previous response did not match the required JSON schema. You must call the tool with arguments that satisfy every required field exactly as specified. "

// Supervisor runs a unit of work under an agent's configured retry policy.
type Supervisor struct {
	policy config.AgentRetryPolicy
	logger *zap.Logger
}

// NewSupervisor builds a Supervisor bound to a single agent's policy.
func NewSupervisor(policy config.AgentRetryPolicy, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{policy: policy, logger: logger}
}

// Do runs fn, retrying on ProviderUnavailable and the first SchemaMismatch
// per spec.md §4.C. It honors ctx cancellation and deadline shrinks between
// attempts: the wait before each attempt is capped at the context's
// remaining time. fn receives strict=true on the single retry that follows a
// SchemaMismatch, so the caller can prepend a stricter reminder to its
// prompt for that attempt.
func (s *Supervisor) Do(ctx context.Context, fn func(ctx context.Context, strict bool) error) error {
	var lastErr error
	var schemaRetryUsed bool
	var strict bool

	for attempt := 0; attempt <= s.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.calculateDelay(attempt)
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(delay):
			}
		}

		err := fn(ctx, strict)
		if err == nil {
			return nil
		}
		lastErr = err

		code := errs.CodeOf(err)
		switch {
		case code == errs.ProviderUnavailable:
			// retryable by policy
		case code == errs.SchemaMismatch && !schemaRetryUsed:
			schemaRetryUsed = true
			strict = true
		default:
			return err
		}

		if attempt >= s.policy.MaxRetries {
			break
		}

		s.logger.Debug("retrying agent call",
			zap.Int("attempt", attempt+1),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}

	return lastErr
}

func (s *Supervisor) calculateDelay(attempt int) time.Duration {
	delay := float64(s.policy.InitialDelay) * math.Pow(s.policy.BackoffFactor, float64(attempt-1))
	if delay > float64(s.policy.MaxDelay) {
		delay = float64(s.policy.MaxDelay)
	}

	jitter := delay * 0.25
	delay += (rand.Float64()*2 - 1) * jitter

	if delay < float64(s.policy.InitialDelay) {
		delay = float64(s.policy.InitialDelay)
	}
	return time.Duration(delay)
}
