package core

import (
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// EnrichmentComplete is the EnrichmentVersion of a document that has passed
// every enrichment stage. Only complete documents may be persisted.
const EnrichmentComplete = 4

// DocumentID is the stable identifier of an indexed document.
type DocumentID string

// DocumentIDFor derives the identifier of a document from its absolute source
// path and the hash of its content. Identity is path-addressed: the same bytes
// at two paths produce two documents.
func DocumentIDFor(sourcePath, contentHash string) DocumentID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(sourcePath))
	h.Write([]byte{0})
	h.Write([]byte(contentHash))
	return DocumentID(hex.EncodeToString(h.Sum(nil)))
}

// ContentHash returns the hex BLAKE2b-256 digest of raw file content.
func ContentHash(content []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Format identifies the on-disk format of a source document.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
)

// FormatFromExtension maps a file extension (with leading dot) to a Format.
// Unknown extensions return the empty Format.
func FormatFromExtension(ext string) Format {
	switch strings.ToLower(ext) {
	case ".txt", ".text", ".log":
		return FormatText
	case ".md", ".markdown":
		return FormatMarkdown
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	}
	return ""
}

// Well-known ExtractionMetadata keys.
const (
	MetaSize       = "size_bytes"
	MetaCreated    = "created"
	MetaModified   = "modified"
	MetaPages      = "pages"
	MetaLines      = "lines"
	MetaParagraphs = "paragraphs"
	MetaTables     = "tables"
	MetaTitle      = "title"
	MetaAuthor     = "author"
	MetaMIME       = "mime"
	MetaFilename   = "filename"
	MetaWords      = "words"
	MetaEncoding   = "encoding"
)

// Segment is one contiguous piece of extracted text, such as a page or a section.
type Segment struct {
	Label string
	Text  string
}

// ParsedDocument is the raw extraction output of a parser strategy.
type ParsedDocument struct {
	SourcePath         string
	Format             Format
	RawText            []Segment         // Page/section boundaries preserved
	ExtractionMetadata map[string]string // Primitive values rendered as strings
	ContentHash        string            // Hash of the raw file bytes
}

// Text joins the segments with blank lines.
func (p *ParsedDocument) Text() string {
	parts := make([]string, 0, len(p.RawText))
	for _, seg := range p.RawText {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// EnrichedDocument is a parsed document augmented with derived data.
// It is the unit visible to queries.
type EnrichedDocument struct {
	ParsedDocument
	ID                DocumentID
	Title             string
	Keywords          []string // Set semantics, stored sorted by relevance
	Topics            []string
	Summary           string
	EnrichmentVersion int       // Number of completed enrichment stages
	IndexedAt         time.Time // When the document was last persisted
}

// NewEnrichedDocument seeds an in-progress document from a parse result.
// The parsed document is deep-copied so later stages never alias it.
func NewEnrichedDocument(parsed *ParsedDocument) EnrichedDocument {
	cp := ParsedDocument{
		SourcePath:         parsed.SourcePath,
		Format:             parsed.Format,
		RawText:            slices.Clone(parsed.RawText),
		ExtractionMetadata: make(map[string]string, len(parsed.ExtractionMetadata)),
		ContentHash:        parsed.ContentHash,
	}
	for k, v := range parsed.ExtractionMetadata {
		cp.ExtractionMetadata[k] = v
	}
	return EnrichedDocument{
		ParsedDocument: cp,
		ID:             DocumentIDFor(parsed.SourcePath, parsed.ContentHash),
	}
}

// QA is one question/answer exchange stored in session history.
type QA struct {
	ID          string
	Question    string
	Answer      string
	DocumentIDs []DocumentID // Documents the answer referenced
	Timestamp   time.Time
}

// Session is the conversational state carried between turns.
type Session struct {
	ID               string
	History          []QA // Oldest first
	ActiveDocumentID DocumentID
}

// WithTurn returns a copy of the session with qa appended and the history
// trimmed to the newest window entries. The receiver is left untouched.
func (s Session) WithTurn(qa QA, window int) Session {
	history := make([]QA, 0, len(s.History)+1)
	history = append(history, s.History...)
	history = append(history, qa)
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	s.History = history
	return s
}

// ToolFailureCode classifies a structured tool failure.
type ToolFailureCode string

const (
	FailureDocumentNotFound ToolFailureCode = "DocumentNotFound"
	FailureArgumentInvalid  ToolFailureCode = "ToolArgumentInvalid"
	FailureUnknownTool      ToolFailureCode = "UnknownTool"
)

// ToolFailure describes why a tool call did not succeed.
type ToolFailure struct {
	Code    ToolFailureCode `json:"code"`
	Message string          `json:"message"`
}

// ToolResult is the outcome of a single tool call.
type ToolResult struct {
	OK      bool         `json:"ok"`
	Payload any          `json:"payload,omitempty"`
	Failure *ToolFailure `json:"failure,omitempty"`
}

// ToolInvocation records one tool call made during a turn.
type ToolInvocation struct {
	ToolName  string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Result    ToolResult     `json:"result"`
}

// SearchHit is a ranked search result.
type SearchHit struct {
	DocumentID DocumentID
	Title      string
	Score      float64
	Snippet    string
}

// Checkpoint records how far a resumable batch job has progressed.
type Checkpoint struct {
	ProcessorType string
	Position      string // Last completed item; empty when the job finished
	Processed     int
	UpdatedAt     time.Time
}
