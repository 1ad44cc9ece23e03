package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_DefaultRunsOnce(t *testing.T) {
	attempts := 0
	err := DefaultRetryPolicy.Do(context.Background(), func(context.Context) error {
		attempts++
		return fmt.Errorf("%w: refused", ErrPipelineUnreachable)
	})

	require.ErrorIs(t, err, ErrPipelineUnreachable)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_EventualSuccess(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	err := policy.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicy_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expected := errors.New("persistent error")
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	err := policy.Do(context.Background(), func(context.Context) error {
		attempts++
		return expected
	})

	assert.Equal(t, expected, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicy_PermanentErrorsStop(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond}

	attempts := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		attempts++
		return &PipelineRejectedError{StatusCode: http.StatusUnprocessableEntity, Detail: "bad id"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	attempts = 0
	_ = policy.Do(context.Background(), func(context.Context) error {
		attempts++
		return &PipelineRejectedError{StatusCode: http.StatusInternalServerError, Detail: "boom"}
	})
	assert.Equal(t, 4, attempts, "5xx is retried")
}

func TestRetryPolicy_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: 10 * time.Millisecond}
	err := policy.Do(ctx, func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestRetryPolicy_Invalid(t *testing.T) {
	err := RetryPolicy{}.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	assert.Error(t, RetryPolicy{MaxAttempts: 1, BaseDelay: -time.Second}.Validate())
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, p.backoff(1))
	assert.Equal(t, 20*time.Millisecond, p.backoff(2))
	assert.Equal(t, 40*time.Millisecond, p.backoff(3))
}
