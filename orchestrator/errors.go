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
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPipelineUnreachable means the pipeline service could not be
	// reached at all: connection refused, DNS failure or timeout.
	ErrPipelineUnreachable = errors.New("AI service is unavailable (Connection Error)")

	// ErrMalformedResponse means the pipeline answered 2xx with a body
	// that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response from AI service")

	ErrInvalidMaxAttempts  = errors.New("max attempts must be greater than 0")
	ErrQueueClosed         = errors.New("task queue is closed")
	ErrClientRequired      = errors.New("pipeline client is required")
	ErrQueueRequired       = errors.New("task queue is required")
	ErrStatusStoreRequired = errors.New("status store is required")
)

// PipelineRejectedError is a non-2xx answer from the pipeline service.
type PipelineRejectedError struct {
	StatusCode int
	Detail     string
}

func (e *PipelineRejectedError) Error() string {
	return fmt.Sprintf("AI Service Error: %s", e.Detail)
}

// HTTPStatus maps a client error to the status code and message a caller
// should surface to its own clients.
func HTTPStatus(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	var rejected *PipelineRejectedError
	switch {
	case errors.Is(err, ErrPipelineUnreachable):
		return http.StatusServiceUnavailable, ErrPipelineUnreachable.Error()
	case errors.As(err, &rejected):
		return rejected.StatusCode, rejected.Error()
	default:
		return http.StatusInternalServerError, fmt.Sprintf("Unknown AI client error: %v", err)
	}
}
