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


// Package storage provides the storage abstraction layer for docent.
//
// This package defines repository interfaces that decouple persistence from
// the ingestion pipeline and the query tools. The only shipped backend is
// BadgerDB (see storage/badger), with an in-memory mode for tests:
//
//	docs, history, backend, err := badger.NewMemoryStore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Atomic replacement
//
// A source path maps to at most one stored document. PutDocument swaps the
// old version for the new one inside a single transaction, so concurrent
// readers observe either the old document or the new one.
//
// # Checkpoints
//
// Long batch jobs record their position through CheckpointRepository, one
// checkpoint per processor type, so an interrupted run can resume.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
