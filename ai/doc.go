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

// Package ai provides abstractions for the model services used by knowledgebot.
//
// The package defines three interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: Produces answer text from a prompt
//   - AIProvider: Aggregates the two for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs (OpenAI, Ollama /v1, LocalAI, vLLM)
//   - ai/ollama: Ollama native API
//   - ai/anthropic: Anthropic Messages API (generation only)
//   - ai/gemini: Gemini API (generation only)
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder, mock.NewMockGenerator) return CONCRETE types to
// enable assertions and behavior injection.
//
// # Errors
//
// Implementations report transport failures wrapping ErrBackendUnreachable
// (see WrapError) so callers can tell an unreachable model from a model
// that answered with an error.
package ai
