package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pcl-labs/navigator/pkg/crystal"
	"github.com/pcl-labs/navigator/pkg/llm"
	"github.com/pcl-labs/navigator/pkg/logging"
	"github.com/pcl-labs/navigator/pkg/prompts"
	"github.com/pcl-labs/navigator/pkg/store"
	"github.com/pcl-labs/navigator/pkg/types"
)

var sessionDebugLog *logging.Logger

func init() {
	var err error
	sessionDebugLog, err = logging.NewLogger("session")
	if err != nil {
		sessionDebugLog.Warnf("Failed to initialize session logger, using stderr fallback: %v", err)
	}
}

// ErrNoActiveConversation is returned when a turn is posted before a
// conversation has been started or selected.
var ErrNoActiveConversation = errors.New("session: no active conversation")

// FlushError reports that the outgoing conversation could not be
// crystallized during a switch. The switch itself still completes; the
// persisted message history is intact, only the summary refresh was lost.
type FlushError struct {
	ConversationID uuid.UUID
	Err            error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("session: flush conversation %s: %v", e.ConversationID, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// Conversation is the active-conversation state machine for one user
// session. It owns the in-memory turn buffer; every posted turn is also
// persisted immediately, so losing the buffer loses nothing but the
// pending summary refresh.
//
// It is driven by one logical thread; methods are not safe for concurrent
// use.
type Conversation struct {
	sctx         *Context
	messages     *store.MessageStore
	summaries    *store.SummaryStore
	crystallizer *crystal.Crystallizer
	provider     llm.Provider
	library      *prompts.Library

	conversationID uuid.UUID
	buffer         []types.Turn
	active         bool
}

// NewConversation creates an idle conversation session for the user.
// StartNew or Select must be called before posting turns.
func NewConversation(sctx *Context, s *store.Store, provider llm.Provider, library *prompts.Library) *Conversation {
	return &Conversation{
		sctx:         sctx,
		messages:     s.Messages(),
		summaries:    s.Summaries(),
		crystallizer: crystal.New(s.Messages(), s.Summaries(), provider, library),
		provider:     provider,
		library:      library,
	}
}

// ConversationID returns the id of the active conversation, or uuid.Nil
// when idle.
func (c *Conversation) ConversationID() uuid.UUID {
	if !c.active {
		return uuid.Nil
	}
	return c.conversationID
}

// Turns returns a copy of the in-memory buffer in posting order.
func (c *Conversation) Turns() []types.Turn {
	out := make([]types.Turn, len(c.buffer))
	copy(out, c.buffer)
	return out
}

// StartNew flushes the outgoing conversation (if any) and switches to a
// fresh one with an empty buffer. A flush failure is returned as a
// *FlushError but the switch still completes: the new conversation is
// active either way.
func (c *Conversation) StartNew(ctx context.Context) error {
	flushErr := c.flush(ctx)

	c.conversationID = uuid.New()
	c.buffer = nil
	c.active = true
	sessionDebugLog.Infof("Started conversation %s for user %s", c.conversationID, c.sctx.UserID)
	return flushErr
}

// Select flushes the outgoing conversation (if any) and makes the given
// conversation active, loading its persisted history into the buffer.
// Turns that fail to decrypt arrive as placeholder content with their
// roles intact. A load failure leaves the session idle.
func (c *Conversation) Select(ctx context.Context, conversationID uuid.UUID) error {
	flushErr := c.flush(ctx)

	turns, err := c.messages.Load(ctx, c.sctx.Key, conversationID)
	if err != nil {
		c.active = false
		c.buffer = nil
		return err
	}

	c.conversationID = conversationID
	c.buffer = turns
	c.active = true
	sessionDebugLog.Infof("Selected conversation %s (%d turns) for user %s", conversationID, len(turns), c.sctx.UserID)
	return flushErr
}

// PostUserTurn persists and buffers a user turn. The first turn of a
// brand-new conversation also writes the interim draft summary so the
// conversation shows up in history immediately. A storage failure leaves
// the buffer unchanged.
func (c *Conversation) PostUserTurn(ctx context.Context, content string) error {
	if !c.active {
		return ErrNoActiveConversation
	}

	if err := c.messages.Append(ctx, c.sctx.Key, c.conversationID, types.RoleUser, content, c.sctx.UserID); err != nil {
		return err
	}

	first := len(c.buffer) == 0
	c.buffer = append(c.buffer, types.NewUserTurn(content))

	if first {
		draft := crystal.DraftSummary(content)
		if err := c.summaries.InsertInterim(ctx, c.sctx.Key, c.conversationID, c.sctx.UserID, draft); err != nil {
			// The message is already persisted; the draft title is cosmetic.
			sessionDebugLog.Warnf("Conversation %s: interim summary not written: %v", c.conversationID, err)
		}
	}
	return nil
}

// PostAssistantTurn persists and buffers an assistant turn.
func (c *Conversation) PostAssistantTurn(ctx context.Context, content string) error {
	if !c.active {
		return ErrNoActiveConversation
	}
	if err := c.messages.Append(ctx, c.sctx.Key, c.conversationID, types.RoleAssistant, content, c.sctx.UserID); err != nil {
		return err
	}
	c.buffer = append(c.buffer, types.NewAssistantTurn(content))
	return nil
}

// GenerateReply asks the model for the next assistant turn given the
// buffered history, persists it, and returns it. The request is framed by
// the per-language system prompt and the fixed assistant preamble so the
// model stays in its partner persona.
//
// A provider failure surfaces the error and writes nothing: the user turn
// that prompted the reply is already persisted, the conversation stays
// usable.
func (c *Conversation) GenerateReply(ctx context.Context) (string, error) {
	if !c.active {
		return "", ErrNoActiveConversation
	}

	history := make([]types.Turn, 0, len(c.buffer)+2)
	history = append(history,
		types.NewSystemTurn(c.library.System(c.sctx.Language)),
		types.NewAssistantTurn(prompts.AssistantPreamble),
	)
	history = append(history, c.buffer...)

	reply, err := c.provider.Complete(ctx, history)
	if err != nil {
		return "", err
	}

	if err := c.PostAssistantTurn(ctx, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// Crystallize runs a crystallization pass on the active conversation
// without switching away from it.
func (c *Conversation) Crystallize(ctx context.Context) error {
	if !c.active {
		return ErrNoActiveConversation
	}
	return c.crystallizer.Crystallize(ctx, c.sctx.Key, c.conversationID, c.sctx.UserID, c.sctx.Language)
}

// Flush crystallizes the active conversation and returns the session to
// idle. Used at logout so the final summary reflects the whole exchange.
func (c *Conversation) Flush(ctx context.Context) error {
	err := c.flush(ctx)
	c.active = false
	c.buffer = nil
	return err
}

// flush crystallizes the outgoing conversation when it has buffered
// turns. Errors are wrapped in *FlushError; an idle or empty session is a
// no-op.
func (c *Conversation) flush(ctx context.Context) error {
	if !c.active || len(c.buffer) == 0 {
		return nil
	}
	if err := c.crystallizer.Crystallize(ctx, c.sctx.Key, c.conversationID, c.sctx.UserID, c.sctx.Language); err != nil {
		sessionDebugLog.Warnf("Conversation %s: flush failed: %v", c.conversationID, err)
		return &FlushError{ConversationID: c.conversationID, Err: err}
	}
	return nil
}
