package types

import (
	"time"

	"github.com/google/uuid"
)

// RecordStatus classifies a summary record's position in its lifecycle.
type RecordStatus string

const (
	StatusInterim   RecordStatus = "interim"   // StatusInterim is the cheap placeholder written at the first turn.
	StatusFinalized RecordStatus = "finalized" // StatusFinalized is a model-generated summary in the supersede chain.
)

// Summary is the structured why/what/how distillation of a conversation.
type Summary struct {
	Why  string `json:"why_summary"`
	What string `json:"what_summary"`
	How  string `json:"how_summary"`
}

// SummaryRecord is one versioned entry in a conversation's supersede chain.
//
// Records are immutable once written. "Updating" a conversation's summary
// means inserting a new record whose SupersedesID references the previous
// one; the chain is the audit trail of successive refinements.
type SummaryRecord struct {
	// ID is the record's unique identifier.
	ID string

	// ConversationID is the conversation this record summarizes.
	ConversationID uuid.UUID

	// OwnerID scopes the record to the authenticated user it belongs to.
	OwnerID string

	// Summary is the structured payload. Encrypted at rest; plaintext here.
	Summary Summary

	// Status is interim or finalized.
	Status RecordStatus

	// SupersedesID references the immediately preceding record for the same
	// conversation, nil for the first record of a chain.
	SupersedesID *string

	// CreatedAt is when the record was inserted.
	CreatedAt time.Time
}

// NewRecordID generates a fresh summary record identifier.
func NewRecordID() string {
	return uuid.New().String()
}
