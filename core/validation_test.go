package core

import (
	"errors"
	"testing"
)

func TestValidateEnrichedDocument(t *testing.T) {
	valid := func() *EnrichedDocument {
		return &EnrichedDocument{
			ParsedDocument: ParsedDocument{
				SourcePath: "/docs/a.txt",
				RawText:    []Segment{{Text: "Q1 revenue grew 12%."}},
			},
			ID:                "0123456789abcdef",
			EnrichmentVersion: EnrichmentComplete,
		}
	}

	tests := []struct {
		name    string
		doc     func() *EnrichedDocument
		wantErr error
	}{
		{
			name:    "valid document",
			doc:     valid,
			wantErr: nil,
		},
		{
			name: "valid with no keywords or topics",
			doc: func() *EnrichedDocument {
				d := valid()
				d.Keywords = nil
				d.Topics = nil
				return d
			},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     func() *EnrichedDocument { return nil },
			wantErr: ErrInvalidDocument,
		},
		{
			name: "empty id",
			doc: func() *EnrichedDocument {
				d := valid()
				d.ID = ""
				return d
			},
			wantErr: ErrEmptyID,
		},
		{
			name: "blank segments",
			doc: func() *EnrichedDocument {
				d := valid()
				d.RawText = []Segment{{Text: "  \n\t"}}
				return d
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "partial enrichment",
			doc: func() *EnrichedDocument {
				d := valid()
				d.EnrichmentVersion = 3
				return d
			},
			wantErr: ErrIncompleteEnrichment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEnrichedDocument(tt.doc())
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEnrichedDocument() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEnrichedDocument() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("ValidateEnrichedDocument() error = %v, want wrapped ErrInvalidDocument", err)
			}
		})
	}
}
