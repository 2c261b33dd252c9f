// Package store persists conversation turns and summary records in an
// embedded Badger database. Both stores are append-only: records are never
// updated or deleted, and every content payload is sealed by the crypto
// envelope before it reaches disk.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Key space layout. Sequence numbers are fixed-width hex so Badger's
// lexicographic key order is also insertion order.
const (
	messagePrefix    = "m/"
	messageSeqPrefix = "mseq/"
	summaryPrefix    = "s/"
	summarySeqPrefix = "sseq/"
)

// Store owns the underlying Badger database and hands out the two typed
// store views that share it.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database at dirPath.
func Open(dirPath string) (*Store, error) {
	opts := badger.DefaultOptions(dirPath).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a transient database that lives only in process
// memory. Used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Messages returns the message store view.
func (s *Store) Messages() *MessageStore {
	return &MessageStore{db: s.db}
}

// Summaries returns the summary store view.
func (s *Store) Summaries() *SummaryStore {
	return &SummaryStore{db: s.db}
}

// nextSeq increments and returns the per-conversation sequence counter at
// seqKey within the given transaction. The first call returns 1.
func nextSeq(txn *badger.Txn, seqKey []byte) (uint64, error) {
	var seq uint64
	item, err := txn.Get(seqKey)
	switch {
	case err == nil:
		if err := item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt sequence counter (%d bytes)", len(val))
			}
			seq = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return 0, err
		}
	case errors.Is(err, badger.ErrKeyNotFound):
		// first record for this conversation
	default:
		return 0, err
	}

	seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	if err := txn.Set(seqKey, buf); err != nil {
		return 0, err
	}
	return seq, nil
}

func seqSuffix(seq uint64) string {
	return fmt.Sprintf("%016x", seq)
}
