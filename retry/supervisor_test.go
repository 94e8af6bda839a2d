package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madspark/orchestrator/config"
	"github.com/madspark/orchestrator/errs"
)

func testPolicy() config.AgentRetryPolicy {
	return config.AgentRetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Millisecond,
	}
}

func TestSupervisor_SucceedsOnFirstTry(t *testing.T) {
	s := NewSupervisor(testPolicy(), nil)
	calls := 0
	err := s.Do(context.Background(), func(ctx context.Context, strict bool) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestSupervisor_RetriesProviderUnavailable(t *testing.T) {
	s := NewSupervisor(testPolicy(), nil)
	calls := 0
	err := s.Do(context.Background(), func(ctx context.Context, strict bool) error {
		calls++
		if calls < 3 {
			return errs.New(errs.ProviderUnavailable, "transient").WithRetryable(true)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSupervisor_RetriesSchemaMismatchOnce(t *testing.T) {
	s := NewSupervisor(testPolicy(), nil)
	calls := 0
	err := s.Do(context.Background(), func(ctx context.Context, strict bool) error {
		calls++
		return errs.New(errs.SchemaMismatch, "bad output")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls) // one original + one schema retry, then fails
}

func TestSupervisor_SchemaMismatchRetryIsStrict(t *testing.T) {
	s := NewSupervisor(testPolicy(), nil)
	var strictByCall []bool
	_ = s.Do(context.Background(), func(ctx context.Context, strict bool) error {
		strictByCall = append(strictByCall, strict)
		return errs.New(errs.SchemaMismatch, "bad output")
	})
	require.Len(t, strictByCall, 2)
	assert.False(t, strictByCall[0], "first attempt must not be strict")
	assert.True(t, strictByCall[1], "retry after SchemaMismatch must be strict")
}

func TestSupervisor_DoesNotRetryConfigurationError(t *testing.T) {
	s := NewSupervisor(testPolicy(), nil)
	calls := 0
	err := s.Do(context.Background(), func(ctx context.Context, strict bool) error {
		calls++
		return errs.New(errs.ConfigurationError, "bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestSupervisor_ExhaustsRetriesAndReturnsLastError(t *testing.T) {
	s := NewSupervisor(testPolicy(), nil)
	calls := 0
	err := s.Do(context.Background(), func(ctx context.Context, strict bool) error {
		calls++
		return errs.New(errs.ProviderUnavailable, "still down").WithRetryable(true)
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls) // initial + 3 retries
}

func TestSupervisor_RespectsContextCancellation(t *testing.T) {
	s := NewSupervisor(testPolicy(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := s.Do(ctx, func(ctx context.Context, strict bool) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errs.New(errs.ProviderUnavailable, "down").WithRetryable(true)
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}
