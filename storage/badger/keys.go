package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/docent/core"
)

// Key prefixes for different data types
const (
	documentPrefix       = "doc:"
	documentPathPrefix   = "docpath:"
	documentRecentPrefix = "docrec:"
	historyPrefix        = "hist:"
	sessionPrefix        = "sess:"
	checkpointPrefix     = "ckpt:"
	historySeq           = "histseq"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.DocumentID) []byte {
	return []byte(documentPrefix + string(id))
}

// makeDocumentPathKey generates the key of the path -> ID index.
func makeDocumentPathKey(sourcePath string) []byte {
	return []byte(documentPathPrefix + sourcePath)
}

// makeDocumentRecentKey generates a composite key for the recency index.
// Format: prefix:indexedAt:id
func makeDocumentRecentKey(indexedAt time.Time, id core.DocumentID) []byte {
	buf := make([]byte, len(documentRecentPrefix)+8+len(id))
	offset := copy(buf, documentRecentPrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(indexedAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makeHistoryPrefix generates the key prefix shared by one session's entries.
// The session ID is length-prefixed so no session's prefix is a prefix of another's.
// Format: prefix:len(session):session
func makeHistoryPrefix(sessionID string) []byte {
	buf := make([]byte, len(historyPrefix)+2+len(sessionID))
	offset := copy(buf, historyPrefix)
	binary.BigEndian.PutUint16(buf[offset:], uint16(len(sessionID)))
	offset += 2
	copy(buf[offset:], sessionID)
	return buf
}

// makeHistoryKey generates the key of one history entry.
// Format: historyPrefix(session):seq
func makeHistoryKey(sessionID string, seq uint64) []byte {
	prefix := makeHistoryPrefix(sessionID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeSessionKey generates the key holding a session's pinned document.
func makeSessionKey(sessionID string) []byte {
	return []byte(sessionPrefix + sessionID)
}

// makeCheckpointKey generates the key of a batch job checkpoint.
func makeCheckpointKey(processorType string) []byte {
	return []byte(checkpointPrefix + processorType)
}
