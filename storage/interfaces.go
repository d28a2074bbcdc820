package storage

import (
	"context"

	"github.com/poiesic/docent/core"
)

// DocumentFilter narrows ListDocuments results. Zero-valued fields match everything.
// Topic and Keyword match case-insensitively against the document's sets.
type DocumentFilter struct {
	Topic   string
	Keyword string
	Format  core.Format
}

// DocumentRepository provides operations for managing indexed documents.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// PutDocument stores a fully enriched document. Any previously stored
	// document for the same SourcePath is replaced in the same transaction,
	// so readers never see both versions or neither.
	// Sets IndexedAt and returns the stored document.
	PutDocument(ctx context.Context, doc *core.EnrichedDocument) (*core.EnrichedDocument, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.DocumentID) (*core.EnrichedDocument, error)

	// GetDocumentByPath retrieves the current document for a source path.
	// Returns ErrNotFound if the path has never been indexed.
	GetDocumentByPath(ctx context.Context, sourcePath string) (*core.EnrichedDocument, error)

	// DeleteDocument removes a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.DocumentID) error

	// DeleteDocumentByPath removes the document indexed for a source path.
	// Reports whether anything was removed; a missing path is not an error.
	DeleteDocumentByPath(ctx context.Context, sourcePath string) (bool, error)

	// ListDocuments returns documents matching the filter, most recently
	// indexed first.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*core.EnrichedDocument, error)

	// Search ranks documents lexically against query and returns at most
	// limit hits. An empty result is not an error.
	Search(ctx context.Context, query string, limit int) ([]core.SearchHit, error)

	// ListSourcePaths returns every indexed source path in lexical order.
	ListSourcePaths(ctx context.Context) ([]string, error)

	// Close releases repository resources.
	Close() error
}

// HistoryRepository provides operations for session history.
type HistoryRepository interface {
	// AppendHistory adds a QA entry to the session, keeping at most window
	// entries (oldest dropped first). Assigns an ID and Timestamp if unset.
	AppendHistory(ctx context.Context, sessionID string, qa *core.QA, window int) error

	// GetHistory returns up to limit of the newest entries, oldest first.
	// A limit <= 0 returns everything retained.
	GetHistory(ctx context.Context, sessionID string, limit int) ([]core.QA, error)

	// GetSession loads the session state. An unknown session yields an empty one.
	GetSession(ctx context.Context, sessionID string, window int) (*core.Session, error)

	// PinDocument sets the session's active document.
	PinDocument(ctx context.Context, sessionID string, id core.DocumentID) error

	// Close releases repository resources.
	Close() error
}

// CheckpointRepository persists the progress of resumable batch jobs.
type CheckpointRepository interface {
	// SaveCheckpoint stores the checkpoint for its ProcessorType and sets UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint for processorType, or nil if none exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)
}
