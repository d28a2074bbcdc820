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


package core

import (
	"fmt"
	"strings"
)

// ValidateEnrichedDocument validates a document before it is persisted.
// Validation rules:
//   - ID must not be empty
//   - RawText must contain at least one non-blank segment
//   - EnrichmentVersion must equal EnrichmentComplete
// NOT validated (may legitimately be empty):
//   - Keywords (a document can consist entirely of stop words)
//   - Topics and Summary (provider output)
func ValidateEnrichedDocument(doc *EnrichedDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}

	if !HasText(doc.RawText) {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}

	if doc.EnrichmentVersion != EnrichmentComplete {
		return fmt.Errorf("%w: %w: version %d", ErrInvalidDocument, ErrIncompleteEnrichment, doc.EnrichmentVersion)
	}

	return nil
}

// HasText reports whether any segment carries non-whitespace text.
func HasText(segments []Segment) bool {
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) != "" {
			return true
		}
	}
	return false
}
