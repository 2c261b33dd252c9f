package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/pcl-labs/navigator/pkg/crypto"
	"github.com/pcl-labs/navigator/pkg/types"
)

// UndecryptableSummary is the placeholder title used when a summary
// record's payload cannot be opened with the session key.
const UndecryptableSummary = "[Cannot Decrypt Summary]"

// SummaryStore is the versioned, supersede-chained record store. Inserting
// is the only mutation: a new record linking its predecessor, never an
// update in place.
type SummaryStore struct {
	db *badger.DB
}

// summaryRecord is the at-rest shape of one chain entry. Data is the
// ciphertext of the JSON-encoded types.Summary.
type summaryRecord struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Data         []byte    `json:"summary_data"`
	Status       string    `json:"status"`
	SupersedesID *string   `json:"supersedes_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Seq          uint64    `json:"seq"`
}

// LatestSummary is the decrypted most-recent record of a conversation,
// returned as refinement context for the next crystallization pass.
type LatestSummary struct {
	RecordID string
	Status   types.RecordStatus
	Summary  types.Summary

	// Decrypted is false when the payload could not be opened; Summary then
	// carries the UndecryptableSummary sentinel in its Why field.
	Decrypted bool
}

// HistoryEntry is one sidebar row: a conversation and its current title
// (the Why field of its most recent record).
type HistoryEntry struct {
	ConversationID uuid.UUID
	Title          string
	CreatedAt      time.Time
}

func summaryKey(conversationID uuid.UUID, seq uint64) []byte {
	return []byte(summaryPrefix + conversationID.String() + "/" + seqSuffix(seq))
}

func summarySeqKey(conversationID uuid.UUID) []byte {
	return []byte(summarySeqPrefix + conversationID.String())
}

// InsertInterim writes the one cheap placeholder record for a brand-new
// conversation, before any model-generated summary exists.
func (ss *SummaryStore) InsertInterim(ctx context.Context, key []byte, conversationID uuid.UUID, ownerID string, draft types.Summary) error {
	return ss.insert(ctx, key, conversationID, ownerID, draft, types.StatusInterim, nil)
}

// InsertFinalized appends a model-generated record to the conversation's
// supersede chain. supersedesID is nil only when no prior record existed.
func (ss *SummaryStore) InsertFinalized(ctx context.Context, key []byte, conversationID uuid.UUID, ownerID string, summary types.Summary, supersedesID *string) error {
	return ss.insert(ctx, key, conversationID, ownerID, summary, types.StatusFinalized, supersedesID)
}

func (ss *SummaryStore) insert(_ context.Context, key []byte, conversationID uuid.UUID, ownerID string, summary types.Summary, status types.RecordStatus, supersedesID *string) error {
	plaintext, err := json.Marshal(summary)
	if err != nil {
		return &StorageError{Op: "insert summary", Err: err}
	}
	sealed, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		return &StorageError{Op: "insert summary", Err: err}
	}

	err = ss.db.Update(func(txn *badger.Txn) error {
		seq, err := nextSeq(txn, summarySeqKey(conversationID))
		if err != nil {
			return err
		}
		rec := summaryRecord{
			ID:           types.NewRecordID(),
			OwnerID:      ownerID,
			Data:         sealed,
			Status:       string(status),
			SupersedesID: supersedesID,
			CreatedAt:    time.Now().UTC(),
			Seq:          seq,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(summaryKey(conversationID, seq), data)
	})
	if err != nil {
		return &StorageError{Op: "insert summary", Err: err}
	}
	return nil
}

// Latest returns the most recent record (interim or finalized) for the
// conversation, or nil when none exists. A payload that fails to decrypt
// comes back with the sentinel title instead of an error, so a stale or
// rotated key degrades the summary rather than the whole pass.
func (ss *SummaryStore) Latest(_ context.Context, key []byte, conversationID uuid.UUID) (*LatestSummary, error) {
	var last *summaryRecord

	prefix := []byte(summaryPrefix + conversationID.String() + "/")
	err := ss.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration: seek just past the prefix range, first valid
		// item is the highest sequence.
		seekKey := append(append([]byte{}, prefix...), 0xff)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		var rec summaryRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		last = &rec
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "load latest summary", Err: err}
	}
	if last == nil {
		return nil, nil
	}
	return decryptRecord(last, key)
}

func decryptRecord(rec *summaryRecord, key []byte) (*LatestSummary, error) {
	out := &LatestSummary{
		RecordID: rec.ID,
		Status:   types.RecordStatus(rec.Status),
	}
	plaintext, err := crypto.Decrypt(rec.Data, key)
	if err != nil {
		if !errors.Is(err, crypto.ErrDecryption) {
			return nil, &StorageError{Op: "decrypt summary", Err: err}
		}
		out.Summary = types.Summary{Why: UndecryptableSummary}
		return out, nil
	}
	var summary types.Summary
	if err := json.Unmarshal(plaintext, &summary); err != nil {
		out.Summary = types.Summary{Why: UndecryptableSummary}
		return out, nil
	}
	out.Summary = summary
	out.Decrypted = true
	return out, nil
}

// Chain returns every record of a conversation in insertion order, with
// supersede links intact. Payloads that fail to decrypt carry the sentinel
// title. This is the audit view of the refinement trail.
func (ss *SummaryStore) Chain(_ context.Context, key []byte, conversationID uuid.UUID) ([]types.SummaryRecord, error) {
	prefix := []byte(summaryPrefix + conversationID.String() + "/")

	var records []types.SummaryRecord
	err := ss.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec summaryRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}

			out := types.SummaryRecord{
				ID:             rec.ID,
				ConversationID: conversationID,
				OwnerID:        rec.OwnerID,
				Status:         types.RecordStatus(rec.Status),
				SupersedesID:   rec.SupersedesID,
				CreatedAt:      rec.CreatedAt,
			}
			if plaintext, err := crypto.Decrypt(rec.Data, key); err == nil {
				_ = json.Unmarshal(plaintext, &out.Summary)
			} else {
				out.Summary = types.Summary{Why: UndecryptableSummary}
			}
			records = append(records, out)
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "load summary chain", Err: err}
	}
	return records, nil
}

// History returns, for each conversation owned by ownerID, the most recent
// record's title, ordered by latest activity descending.
func (ss *SummaryStore) History(_ context.Context, key []byte, ownerID string) ([]HistoryEntry, error) {
	type latest struct {
		rec  summaryRecord
		conv uuid.UUID
	}
	byConv := make(map[uuid.UUID]latest)

	err := ss.db.View(func(txn *badger.Txn) error {
		prefix := []byte(summaryPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			convID, ok := conversationIDFromKey(it.Item().Key(), summaryPrefix)
			if !ok {
				continue
			}
			var rec summaryRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if rec.OwnerID != ownerID {
				continue
			}
			if cur, exists := byConv[convID]; !exists || rec.Seq > cur.rec.Seq {
				byConv[convID] = latest{rec: rec, conv: convID}
			}
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "load history", Err: err}
	}

	entries := make([]HistoryEntry, 0, len(byConv))
	for _, l := range byConv {
		title := UndecryptableSummary
		if plaintext, err := crypto.Decrypt(l.rec.Data, key); err == nil {
			var summary types.Summary
			if err := json.Unmarshal(plaintext, &summary); err == nil {
				title = summary.Why
			}
		}
		entries = append(entries, HistoryEntry{
			ConversationID: l.conv,
			Title:          title,
			CreatedAt:      l.rec.CreatedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}
