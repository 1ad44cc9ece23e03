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

package retrieval

import "errors"

var (
	// ErrQueryEncoderRequired is returned when a query encoder is not provided.
	ErrQueryEncoderRequired = errors.New("query encoder required")

	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrBackendRequired is returned when a nil answer backend is configured.
	ErrBackendRequired = errors.New("answer backend required")

	// ErrInvalidTopK is returned for a non-positive candidate count.
	ErrInvalidTopK = errors.New("top k must be positive")

	// ErrInvalidThreshold is returned for a negative relevance threshold.
	ErrInvalidThreshold = errors.New("relevance threshold must be non-negative")
)
