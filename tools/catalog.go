package tools

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/search"
	"github.com/poiesic/docent/storage"
)

// Canonical tool names.
const (
	ListDocuments    = "list_documents"
	GetTopics        = "get_topics"
	GetDocument      = "get_document"
	DocumentStats    = "document_stats"
	CompareDocuments = "compare_documents"
	Search           = "search"
	GetUserHistory   = "get_user_history"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// noExtraProperties rejects arguments not declared in the schema.
var noExtraProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}

func objectSchema(properties map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if properties == nil {
		properties = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           properties,
		Required:             required,
		AdditionalProperties: noExtraProperties,
	}
}

func documentIDSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: description,
		MinLength:   jsonschema.Ptr(1),
	}
}

func (r *Registry) catalog() []Tool {
	return []Tool{
		{
			Name:        ListDocuments,
			Description: "List every indexed document, most recently indexed first.",
			Schema:      objectSchema(nil),
			Handler:     r.listDocuments,
		},
		{
			Name:         GetTopics,
			Description:  "Get the topics of one document. Use only when asked about topics, themes or categories.",
			Schema:       objectSchema(map[string]*jsonschema.Schema{"document_id": documentIDSchema("id of the document")}, "document_id"),
			DocumentArgs: []string{"document_id"},
			Handler:      r.getTopics,
		},
		{
			Name:         GetDocument,
			Description:  "Get the full content, summary and metadata of one document.",
			Schema:       objectSchema(map[string]*jsonschema.Schema{"document_id": documentIDSchema("id of the document")}, "document_id"),
			DocumentArgs: []string{"document_id"},
			Handler:      r.getDocument,
		},
		{
			Name:         DocumentStats,
			Description:  "Get length, word, sentence and paragraph counts, reading time and frequent words of one document.",
			Schema:       objectSchema(map[string]*jsonschema.Schema{"document_id": documentIDSchema("id of the document")}, "document_id"),
			DocumentArgs: []string{"document_id"},
			Handler:      r.documentStats,
		},
		{
			Name:        CompareDocuments,
			Description: "Compare two documents: shared and unique topics and keywords, size difference and content similarity.",
			Schema: objectSchema(map[string]*jsonschema.Schema{
				"document_id_a": documentIDSchema("id of the first document"),
				"document_id_b": documentIDSchema("id of the second document"),
			}, "document_id_a", "document_id_b"),
			DocumentArgs: []string{"document_id_a", "document_id_b"},
			Handler:      r.compareDocuments,
		},
		{
			Name:        Search,
			Description: "Search the content of all documents. Returns ranked matches with snippets.",
			Schema: objectSchema(map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "words or phrase to look for", MinLength: jsonschema.Ptr(1)},
				"limit": {
					Type:        "integer",
					Description: "maximum number of results (default 5)",
					Minimum:     jsonschema.Ptr(1.0),
					Maximum:     jsonschema.Ptr(float64(maxSearchLimit)),
				},
			}, "query"),
			Handler: r.search,
		},
		{
			Name:        GetUserHistory,
			Description: "Get the previous questions and answers of this conversation, oldest first.",
			Schema: objectSchema(map[string]*jsonschema.Schema{
				"limit": {
					Type:        "integer",
					Description: "maximum number of exchanges to return",
					Minimum:     jsonschema.Ptr(1.0),
				},
			}),
			Handler: r.getUserHistory,
		},
	}
}

// DocumentSummary is the short form of a document used in listings.
type DocumentSummary struct {
	DocumentID core.DocumentID `json:"document_id"`
	Title      string          `json:"title"`
	Format     core.Format     `json:"format"`
	IndexedAt  time.Time       `json:"indexed_at"`
}

func summarize(doc *core.EnrichedDocument) DocumentSummary {
	return DocumentSummary{DocumentID: doc.ID, Title: doc.Title, Format: doc.Format, IndexedAt: doc.IndexedAt}
}

func (r *Registry) listDocuments(ctx context.Context, _ map[string]any, _ *core.Session) (core.ToolResult, error) {
	docs, err := r.documents.ListDocuments(ctx, storage.DocumentFilter{})
	if err != nil {
		return core.ToolResult{}, err
	}
	out := make([]DocumentSummary, len(docs))
	for i, doc := range docs {
		out[i] = summarize(doc)
	}
	return Success(out), nil
}

// loadDocument fetches the document named by args[key]. A missing document
// yields a DocumentNotFound failure rather than an error.
func (r *Registry) loadDocument(ctx context.Context, args map[string]any, key string) (*core.EnrichedDocument, *core.ToolResult, error) {
	id, _ := args[key].(string)
	doc, err := r.documents.GetDocument(ctx, core.DocumentID(id))
	if errors.Is(err, storage.ErrNotFound) {
		failure := Failure(core.FailureDocumentNotFound, "document %q not found", id)
		return nil, &failure, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return doc, nil, nil
}

// TopicsPayload is the result of get_topics.
type TopicsPayload struct {
	DocumentID core.DocumentID `json:"document_id"`
	Topics     []string        `json:"topics"`
}

func (r *Registry) getTopics(ctx context.Context, args map[string]any, _ *core.Session) (core.ToolResult, error) {
	doc, failure, err := r.loadDocument(ctx, args, "document_id")
	if failure != nil || err != nil {
		return deref(failure), err
	}
	return Success(TopicsPayload{DocumentID: doc.ID, Topics: nonNil(doc.Topics)}), nil
}

// DocumentPayload is the result of get_document.
type DocumentPayload struct {
	DocumentID core.DocumentID   `json:"document_id"`
	Title      string            `json:"title"`
	Format     core.Format       `json:"format"`
	SourcePath string            `json:"source_path"`
	Summary    string            `json:"summary"`
	Keywords   []string          `json:"keywords"`
	Topics     []string          `json:"topics"`
	Metadata   map[string]string `json:"metadata"`
	Content    string            `json:"content"`
}

func (r *Registry) getDocument(ctx context.Context, args map[string]any, _ *core.Session) (core.ToolResult, error) {
	doc, failure, err := r.loadDocument(ctx, args, "document_id")
	if failure != nil || err != nil {
		return deref(failure), err
	}
	return Success(DocumentPayload{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Format:     doc.Format,
		SourcePath: doc.SourcePath,
		Summary:    doc.Summary,
		Keywords:   nonNil(doc.Keywords),
		Topics:     nonNil(doc.Topics),
		Metadata:   doc.ExtractionMetadata,
		Content:    doc.Text(),
	}), nil
}

func (r *Registry) documentStats(ctx context.Context, args map[string]any, _ *core.Session) (core.ToolResult, error) {
	doc, failure, err := r.loadDocument(ctx, args, "document_id")
	if failure != nil || err != nil {
		return deref(failure), err
	}
	return Success(ComputeStats(doc)), nil
}

func (r *Registry) compareDocuments(ctx context.Context, args map[string]any, _ *core.Session) (core.ToolResult, error) {
	a, failure, err := r.loadDocument(ctx, args, "document_id_a")
	if failure != nil || err != nil {
		return deref(failure), err
	}
	b, failure, err := r.loadDocument(ctx, args, "document_id_b")
	if failure != nil || err != nil {
		return deref(failure), err
	}
	return Success(Compare(a, b)), nil
}

// SearchResult is one ranked match.
type SearchResult struct {
	DocumentID core.DocumentID `json:"document_id"`
	Title      string          `json:"title"`
	Score      float64         `json:"score"`
	Snippet    string          `json:"snippet"`
}

func (r *Registry) search(ctx context.Context, args map[string]any, _ *core.Session) (core.ToolResult, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return Failure(core.FailureArgumentInvalid, "query must not be blank"), nil
	}
	limit := defaultSearchLimit
	if v, ok := args["limit"].(float64); ok {
		limit = int(v)
	}

	hits, err := r.documents.Search(ctx, query, limit)
	if errors.Is(err, search.ErrEmptyQuery) {
		return Failure(core.FailureArgumentInvalid, "query %q has no searchable words", query), nil
	}
	if err != nil {
		return core.ToolResult{}, err
	}

	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{DocumentID: h.DocumentID, Title: h.Title, Score: h.Score, Snippet: h.Snippet}
	}
	return Success(out), nil
}

// HistoryEntry is one prior exchange.
type HistoryEntry struct {
	Question  string            `json:"question"`
	Answer    string            `json:"answer"`
	Documents []core.DocumentID `json:"documents,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func (r *Registry) getUserHistory(ctx context.Context, args map[string]any, session *core.Session) (core.ToolResult, error) {
	if session == nil || session.ID == "" {
		return Success([]HistoryEntry{}), nil
	}
	limit := r.historyWindow
	if v, ok := args["limit"].(float64); ok && int(v) < limit {
		limit = int(v)
	}

	qas, err := r.history.GetHistory(ctx, session.ID, limit)
	if err != nil {
		return core.ToolResult{}, err
	}
	out := make([]HistoryEntry, len(qas))
	for i, qa := range qas {
		out[i] = HistoryEntry{
			Question:  qa.Question,
			Answer:    qa.Answer,
			Documents: slices.Clone(qa.DocumentIDs),
			Timestamp: qa.Timestamp,
		}
	}
	return Success(out), nil
}

func deref(r *core.ToolResult) core.ToolResult {
	if r == nil {
		return core.ToolResult{}
	}
	return *r
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
