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


// Package search provides lexical relevance ranking over enriched documents.
//
// Scoring combines several signals for each query term:
//
//   - term occurrences in the document text
//   - occurrences in the title, weighted ×2
//   - exact occurrences of the whole query phrase, weighted ×3
//   - terms contained in a keyword or topic, weighted ×1.5
//
// The raw score is divided by the square root of the document's word count so
// long documents do not dominate. Documents scoring zero are dropped.
//
// The tokenizer and stop-word list are shared with keyword extraction in the
// enrich package, so a keyword produced at ingestion always matches the same
// term at query time.
package search
