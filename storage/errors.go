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

package storage

import "errors"

var (
	// ErrStoreUnavailable wraps failures of the underlying store.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidCollection indicates an empty or unknown collection name.
	ErrInvalidCollection = errors.New("invalid collection")

	// ErrLengthMismatch indicates chunk and vector counts differ.
	ErrLengthMismatch = errors.New("chunk and vector counts differ")

	// ErrStorageClosed indicates that the store has been closed.
	ErrStorageClosed = errors.New("storage is closed")
)
