// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// RetryPolicy controls how many times a task runs before it is given up.
type RetryPolicy struct {
	// MaxAttempts is the total number of runs, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; it doubles on each
	// further retry.
	BaseDelay time.Duration
}

// DefaultRetryPolicy runs a task exactly once.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 1, BaseDelay: time.Second}

// Validate checks the policy.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if p.BaseDelay < 0 {
		return errors.New("base delay cannot be negative")
	}
	return nil
}

// Do runs operation until it succeeds, the attempts are exhausted, ctx is
// done or the error is permanent. It returns the error of the last attempt.
func (p RetryPolicy) Do(ctx context.Context, operation func(context.Context) error) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if permanent(lastErr) {
			return lastErr
		}

		slog.Debug("operation failed", "attempt", attempt, "maxAttempts", p.MaxAttempts, "err", lastErr)

		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// backoff is BaseDelay * 2^(attempt-1).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// permanent reports whether retrying cannot change the outcome: the
// pipeline rejected the request itself, or the body it sent back is
// undecodable.
func permanent(err error) bool {
	if errors.Is(err, ErrMalformedResponse) {
		return true
	}
	var rejected *PipelineRejectedError
	if errors.As(err, &rejected) {
		return rejected.StatusCode >= 400 && rejected.StatusCode < 500 &&
			rejected.StatusCode != http.StatusTooManyRequests
	}
	return false
}
