// Package types defines the shared value types exchanged between the
// stores, the crystallizer, and the conversation session.
package types

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies which side of the conversation produced a turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"      // RoleUser marks a turn typed by the journaling user.
	RoleAssistant MessageRole = "assistant" // RoleAssistant marks a model-generated reply.
	RoleSystem    MessageRole = "system"    // RoleSystem marks persona/instruction turns, never persisted.
)

// Message is a single conversation turn.
//
// Content is plaintext while the message is in memory; the stores encrypt it
// before it reaches disk and decrypt it transiently on load. Messages are
// immutable once written; there is no update or delete path.
type Message struct {
	// ConversationID groups turns into one conversation.
	ConversationID uuid.UUID

	// Role is who produced the turn.
	Role MessageRole

	// Content is the turn text.
	Content string

	// OwnerID scopes the message to the authenticated user it belongs to.
	OwnerID string

	// CreatedAt is when the turn was persisted.
	CreatedAt time.Time

	// Seq is the per-conversation monotonic ordinal assigned at append time.
	// It makes CreatedAt ordering total even when two turns land within the
	// same clock tick.
	Seq uint64
}

// Turn is the in-memory buffer representation of a message: just the role
// and the (decrypted) content, the shape the model provider consumes.
type Turn struct {
	Role    MessageRole
	Content string
}

// NewUserTurn creates a user turn.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// NewAssistantTurn creates an assistant turn.
func NewAssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// NewSystemTurn creates a system turn.
func NewSystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}
