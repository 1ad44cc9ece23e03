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

// Package storage defines the vector store gateway used by knowledgebot.
//
// Every tenant workspace owns one collection, created lazily on first use and
// configured for cosine distance. Chunks are written under deterministic ids
// of the form "{source_id}_{i}" so that re-ingesting a source overwrites its
// previous chunks, and are removed in bulk by filtering on source_id.
//
// # Constructor Return Type Pattern
//
// Public constructors in the backend packages return the VectorStore
// interface:
//
//	store, err := badger.OpenStore("/var/lib/knowledgebot/vectors")  // storage.VectorStore
//	store, err := pgvector.Open(ctx, "postgres://...")               // storage.VectorStore
//
// Internal constructors return concrete types so tests can reach backend
// specifics.
//
// # Thread Safety
//
// A single VectorStore handle is shared by every request in the process.
// Implementations must be safe for concurrent use without external locking.
package storage
