package badger

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/search"
	"github.com/poiesic/docent/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	now     func() time.Time
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &DocumentRepository{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}, nil
}

// Close is a no-op; the backend is owned by the caller.
func (r *DocumentRepository) Close() error {
	return nil
}

// PutDocument stores a document, replacing any prior version for the same path.
func (r *DocumentRepository) PutDocument(ctx context.Context, doc *core.EnrichedDocument) (*core.EnrichedDocument, error) {
	if err := core.ValidateEnrichedDocument(doc); err != nil {
		return nil, err
	}

	stored := *doc
	err := r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		stored.IndexedAt = r.now()

		// Drop the previous version for this path along with its indices
		oldID, err := readPathIndex(tx, doc.SourcePath)
		if err != nil {
			return err
		}
		if oldID != "" {
			if err := deleteDocument(tx, oldID); err != nil {
				return err
			}
		}

		// A different path may already own this ID only if the hash collides; treat as replace
		if oldID != stored.ID {
			existing, err := readDocument(tx, stored.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				if err := deleteDocument(tx, stored.ID); err != nil {
					return err
				}
			}
		}

		if err := tx.Set(makeDocumentKey(stored.ID), storage.MarshalDocument(&stored)); err != nil {
			return err
		}
		if err := tx.Set(makeDocumentPathKey(stored.SourcePath), storage.MarshalString(string(stored.ID))); err != nil {
			return err
		}
		return tx.Set(makeDocumentRecentKey(stored.IndexedAt, stored.ID), storage.MarshalString(string(stored.ID)))
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.DocumentID) (*core.EnrichedDocument, error) {
	var result *core.EnrichedDocument
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetDocumentByPath retrieves the document currently indexed for a path.
func (r *DocumentRepository) GetDocumentByPath(ctx context.Context, sourcePath string) (*core.EnrichedDocument, error) {
	var result *core.EnrichedDocument
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := readPathIndex(tx, sourcePath)
		if err != nil {
			return err
		}
		if id == "" {
			return storage.ErrNotFound
		}
		result, err = readDocument(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// DeleteDocument removes a document by ID.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.DocumentID) error {
	return r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		return deleteDocument(tx, id)
	})
}

// DeleteDocumentByPath removes the document indexed for a path, if any.
func (r *DocumentRepository) DeleteDocumentByPath(ctx context.Context, sourcePath string) (bool, error) {
	deleted := false
	err := r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		deleted = false
		id, err := readPathIndex(tx, sourcePath)
		if err != nil {
			return err
		}
		if id == "" {
			return nil
		}
		deleted = true
		return deleteDocument(tx, id)
	})
	return deleted, err
}

// ListDocuments returns matching documents, most recently indexed first.
func (r *DocumentRepository) ListDocuments(ctx context.Context, filter storage.DocumentFilter) ([]*core.EnrichedDocument, error) {
	var results []*core.EnrichedDocument
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(documentRecentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration must start past the last key carrying the prefix
		seek := append([]byte(documentRecentPrefix), 0xFF)
		for iter.Seek(seek); iter.ValidForPrefix(opts.Prefix); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var id string
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalString(val)
				return err
			}); err != nil {
				return err
			}

			doc, err := readDocument(tx, core.DocumentID(id))
			if err != nil {
				return err
			}
			if doc != nil && matches(doc, filter) {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	return results, err
}

// Search ranks every stored document against query.
func (r *DocumentRepository) Search(ctx context.Context, query string, limit int) ([]core.SearchHit, error) {
	docs, err := r.ListDocuments(ctx, storage.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	return search.Rank(docs, query, limit)
}

// ListSourcePaths returns every indexed source path in lexical order.
func (r *DocumentRepository) ListSourcePaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(documentPathPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			paths = append(paths, string(bytes.TrimPrefix(key, opts.Prefix)))
		}
		return nil
	}, false)
	return paths, err
}

func matches(doc *core.EnrichedDocument, filter storage.DocumentFilter) bool {
	if filter.Format != "" && doc.Format != filter.Format {
		return false
	}
	if filter.Topic != "" && !containsFold(doc.Topics, filter.Topic) {
		return false
	}
	if filter.Keyword != "" && !containsFold(doc.Keywords, filter.Keyword) {
		return false
	}
	return true
}

func containsFold(values []string, target string) bool {
	return slices.ContainsFunc(values, func(v string) bool {
		return strings.EqualFold(v, target)
	})
}

// readDocument reads a document by ID. Returns nil if it doesn't exist.
func readDocument(tx *badger.Txn, id core.DocumentID) (*core.EnrichedDocument, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc *core.EnrichedDocument
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}

// readPathIndex returns the ID indexed for a path, or "" if none.
func readPathIndex(tx *badger.Txn, sourcePath string) (core.DocumentID, error) {
	item, err := tx.Get(makeDocumentPathKey(sourcePath))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var id string
	err = item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalString(val)
		return err
	})
	return core.DocumentID(id), err
}

// deleteDocument removes a document and every index entry pointing at it.
func deleteDocument(tx *badger.Txn, id core.DocumentID) error {
	doc, err := readDocument(tx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	if err := tx.Delete(makeDocumentRecentKey(doc.IndexedAt, doc.ID)); err != nil {
		return err
	}
	// Only drop the path index if it still points at this document
	current, err := readPathIndex(tx, doc.SourcePath)
	if err != nil {
		return err
	}
	if current == id {
		if err := tx.Delete(makeDocumentPathKey(doc.SourcePath)); err != nil {
			return err
		}
	}
	return tx.Delete(makeDocumentKey(id))
}
