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


// Package ai provides abstractions for the language-model services used by docent.
//
// Enrichment stages and the query agent depend on the Generator interface,
// never on a concrete backend. Backends live in sub-packages:
//
//   - ai/openai: OpenAI and OpenAI-compatible servers (vLLM, LocalAI, Ollama's /v1)
//   - ai/ollama: Ollama's native API
//   - ai/mock: Scriptable test double
//
// # Error taxonomy
//
// Every backend routes calls through CallWithTimeout, so failures surface as
// core.ErrProvider or core.ErrProviderTimeout regardless of the transport.
// Caller cancellation is returned unwrapped and is never retryable.
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, ollama.NewProvider) return the
// ai.AIProvider interface. Test constructors (mock.NewMockGenerator) return
// concrete types so tests can script responses and assert on calls:
//
//	gen := mock.NewMockGenerator()
//	gen.Enqueue(`{"topics":["finance"]}`, "A short summary.")
//	provider := mock.NewMockProviderWithGenerator(gen)
//	...
//	require.Equal(t, 2, gen.CallCount())
//
// # Rate limiting
//
// RateLimited wraps any Generator with a token bucket from golang.org/x/time/rate.
package ai
