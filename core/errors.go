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
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates an EnrichedDocument failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyContent indicates a document has no extracted text.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyID indicates a document has no identifier.
	ErrEmptyID = errors.New("document id cannot be empty")

	// ErrIncompleteEnrichment indicates not every enrichment stage ran.
	ErrIncompleteEnrichment = errors.New("enrichment incomplete")
)

// Ingestion and query errors
var (
	// ErrUnsupportedFormat is returned when no parser strategy handles a format.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrParse is returned when a strategy matched but could not extract content.
	ErrParse = errors.New("parse error")

	// ErrProvider is returned when the LLM provider fails.
	ErrProvider = errors.New("provider error")

	// ErrProviderTimeout is returned when a provider call exceeds its deadline.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrEnrichmentFailed is returned when an enrichment stage gives up.
	ErrEnrichmentFailed = errors.New("enrichment failed")

	// ErrDocumentNotFound is returned when a document id is unknown.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrToolArgumentInvalid is returned when tool arguments fail schema validation.
	ErrToolArgumentInvalid = errors.New("tool argument invalid")

	// ErrUnknownTool is returned when a tool name is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrOrchestrationBoundExceeded marks a turn that hit its tool-call budget.
	ErrOrchestrationBoundExceeded = errors.New("orchestration bound exceeded")
)

// ParseError carries the path and format of a failed extraction.
type ParseError struct {
	Path   string
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.Path, e.Format, e.Err)
}

// Unwrap exposes both the ErrParse sentinel and the underlying cause.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// IsRetryable reports whether err is a transient provider failure.
// Context cancellation by the caller is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderTimeout) {
		return true
	}
	return errors.Is(err, ErrProvider)
}
