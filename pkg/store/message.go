package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/pcl-labs/navigator/pkg/crypto"
	"github.com/pcl-labs/navigator/pkg/types"
)

// UndecryptableMessage is the placeholder substituted for a turn whose
// ciphertext cannot be opened with the session key. A single bad record
// never aborts a conversation load.
const UndecryptableMessage = "[Cannot Decrypt Message]"

// MessageStore is the append-only log of raw conversation turns.
type MessageStore struct {
	db *badger.DB
}

// messageRecord is the at-rest shape of one turn. Content is ciphertext.
type messageRecord struct {
	Role      string    `json:"role"`
	Content   []byte    `json:"content"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	Seq       uint64    `json:"seq"`
}

// Preview is one history-browsing entry: the most recent turn of a
// conversation, used to render a conversation list.
type Preview struct {
	ConversationID uuid.UUID
	Role           types.MessageRole
	Content        string
	CreatedAt      time.Time
}

func messageKey(conversationID uuid.UUID, seq uint64) []byte {
	return []byte(messagePrefix + conversationID.String() + "/" + seqSuffix(seq))
}

func messageSeqKey(conversationID uuid.UUID) []byte {
	return []byte(messageSeqPrefix + conversationID.String())
}

// Append encrypts content and writes one new turn. The sequence counter
// increment and the record write share a transaction, so ordering is
// monotonic even across interleaved writers.
func (ms *MessageStore) Append(_ context.Context, key []byte, conversationID uuid.UUID, role types.MessageRole, content, ownerID string) error {
	sealed, err := crypto.Encrypt([]byte(content), key)
	if err != nil {
		return &StorageError{Op: "append message", Err: err}
	}

	err = ms.db.Update(func(txn *badger.Txn) error {
		seq, err := nextSeq(txn, messageSeqKey(conversationID))
		if err != nil {
			return err
		}
		rec := messageRecord{
			Role:      string(role),
			Content:   sealed,
			OwnerID:   ownerID,
			CreatedAt: time.Now().UTC(),
			Seq:       seq,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(messageKey(conversationID, seq), data)
	})
	if err != nil {
		return &StorageError{Op: "append message", Err: err}
	}
	return nil
}

// Load returns every turn of a conversation in insertion order, decrypted.
// Turns that fail to decrypt come back with the UndecryptableMessage
// placeholder so the rest of the conversation stays usable.
func (ms *MessageStore) Load(_ context.Context, key []byte, conversationID uuid.UUID) ([]types.Turn, error) {
	prefix := []byte(messagePrefix + conversationID.String() + "/")

	var turns []types.Turn
	err := ms.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec messageRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}

			turn := types.Turn{Role: types.MessageRole(rec.Role)}
			plaintext, err := crypto.Decrypt(rec.Content, key)
			if err != nil {
				if !errors.Is(err, crypto.ErrDecryption) {
					return err
				}
				turn.Content = UndecryptableMessage
			} else {
				turn.Content = string(plaintext)
			}
			turns = append(turns, turn)
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "load conversation", Err: err}
	}
	return turns, nil
}

// LatestPerConversation returns one preview entry per conversation owned by
// ownerID: the most recent turn, with conversations ordered newest first.
func (ms *MessageStore) LatestPerConversation(_ context.Context, key []byte, ownerID string) ([]Preview, error) {
	type latest struct {
		rec  messageRecord
		conv uuid.UUID
	}
	byConv := make(map[uuid.UUID]latest)

	err := ms.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			convID, ok := conversationIDFromKey(it.Item().Key(), messagePrefix)
			if !ok {
				continue
			}
			var rec messageRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if rec.OwnerID != ownerID {
				continue
			}
			// Most recent wins; Seq breaks created_at ties.
			if cur, exists := byConv[convID]; !exists || rec.Seq > cur.rec.Seq {
				byConv[convID] = latest{rec: rec, conv: convID}
			}
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "list conversations", Err: err}
	}

	previews := make([]Preview, 0, len(byConv))
	for _, l := range byConv {
		content := UndecryptableMessage
		if plaintext, err := crypto.Decrypt(l.rec.Content, key); err == nil {
			content = string(plaintext)
		}
		previews = append(previews, Preview{
			ConversationID: l.conv,
			Role:           types.MessageRole(l.rec.Role),
			Content:        content,
			CreatedAt:      l.rec.CreatedAt,
		})
	}
	sort.Slice(previews, func(i, j int) bool {
		return previews[i].CreatedAt.After(previews[j].CreatedAt)
	})
	return previews, nil
}

// conversationIDFromKey extracts the conversation UUID from a store key of
// the form <prefix><uuid>/<seq>.
func conversationIDFromKey(key []byte, prefix string) (uuid.UUID, bool) {
	rest := strings.TrimPrefix(string(key), prefix)
	idx := strings.IndexByte(rest, '/')
	if idx == -1 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest[:idx])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
