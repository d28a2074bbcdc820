package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
)

// HistoryRepository implements storage.HistoryRepository for BadgerDB.
type HistoryRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(backend *Backend) (*HistoryRepository, error) {
	seq, err := backend.GetSequence(historySeq)
	if err != nil {
		return nil, err
	}
	return &HistoryRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the history sequence.
func (r *HistoryRepository) Close() error {
	return r.seq.Release()
}

// AppendHistory adds an entry and trims the session to window entries.
func (r *HistoryRepository) AppendHistory(ctx context.Context, sessionID string, qa *core.QA, window int) error {
	if qa.ID == "" {
		qa.ID = uuid.NewString()
	}
	if qa.Timestamp.IsZero() {
		qa.Timestamp = time.Now().UTC()
	}

	next, err := r.seq.Next()
	if err != nil {
		return err
	}

	return r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		if err := tx.Set(makeHistoryKey(sessionID, next), storage.MarshalQA(qa)); err != nil {
			return err
		}
		if window <= 0 {
			return nil
		}

		keys, err := historyKeys(tx, sessionID)
		if err != nil {
			return err
		}
		for len(keys) > window {
			if err := tx.Delete(keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}
		return nil
	})
}

// GetHistory returns up to limit of the newest entries, oldest first.
func (r *HistoryRepository) GetHistory(ctx context.Context, sessionID string, limit int) ([]core.QA, error) {
	var results []core.QA
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeHistoryPrefix(sessionID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var qa *core.QA
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				qa, err = storage.UnmarshalQA(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, *qa)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results, nil
}

// GetSession loads the history and pinned document of a session.
func (r *HistoryRepository) GetSession(ctx context.Context, sessionID string, window int) (*core.Session, error) {
	history, err := r.GetHistory(ctx, sessionID, window)
	if err != nil {
		return nil, err
	}

	session := &core.Session{ID: sessionID, History: history}
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSessionKey(sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id, err := storage.UnmarshalString(val)
			session.ActiveDocumentID = core.DocumentID(id)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// PinDocument records the session's active document. An empty id clears it.
func (r *HistoryRepository) PinDocument(ctx context.Context, sessionID string, id core.DocumentID) error {
	return r.backend.WithUpdate(ctx, func(tx *badger.Txn) error {
		if id == "" {
			return tx.Delete(makeSessionKey(sessionID))
		}
		return tx.Set(makeSessionKey(sessionID), storage.MarshalString(string(id)))
	})
}

// historyKeys returns a session's entry keys in insertion order.
func historyKeys(tx *badger.Txn, sessionID string) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = makeHistoryPrefix(sessionID)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	return keys, nil
}
