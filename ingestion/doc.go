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


// Package ingestion drives files through parse, enrich and persist.
//
// The Pipeline type manages the ingestion workflow for source files:
//   - Skipping files whose content hash matches the stored document
//   - Parsing with the parser registry
//   - Enriching on a bounded worker pool, which caps concurrent provider calls
//   - Replacing the stored document for the path in one write
//
// Once a file starts processing it runs to completion even if the caller's
// context is cancelled, so a document is either fully stored or not at all.
// Failures are isolated per file and reported in each Result.
package ingestion
