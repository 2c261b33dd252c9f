// Package crystal implements crystallization: distilling a raw
// conversation into the next finalized record of its why/what/how
// supersede chain.
package crystal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pcl-labs/navigator/pkg/llm"
	"github.com/pcl-labs/navigator/pkg/logging"
	"github.com/pcl-labs/navigator/pkg/prompts"
	"github.com/pcl-labs/navigator/pkg/store"
	"github.com/pcl-labs/navigator/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("crystal")
	if err != nil {
		debugLog.Warnf("Failed to initialize crystal logger, using stderr fallback: %v", err)
	}
}

// Crystallizer produces the next finalized summary record for a
// conversation, given its full message history and its current latest
// summary as refinement context.
type Crystallizer struct {
	messages  *store.MessageStore
	summaries *store.SummaryStore
	provider  llm.Provider
	library   *prompts.Library
}

// New creates a crystallizer over the given stores, model provider, and
// prompt library.
func New(messages *store.MessageStore, summaries *store.SummaryStore, provider llm.Provider, library *prompts.Library) *Crystallizer {
	return &Crystallizer{
		messages:  messages,
		summaries: summaries,
		provider:  provider,
		library:   library,
	}
}

// Crystallize runs one crystallization pass for the conversation.
//
// An empty conversation is a no-op, not an error. The pass is additive
// only: on success exactly one finalized record is appended, superseding
// whatever record was latest when the pass started; on any failure
// (storage, model invocation, parse) nothing is written and the existing
// chain is untouched. Calling it twice on an unchanged conversation
// appends two chain links; the refinement trail is kept on purpose.
func (c *Crystallizer) Crystallize(ctx context.Context, key []byte, conversationID uuid.UUID, ownerID, language string) error {
	turns, err := c.messages.Load(ctx, key, conversationID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		debugLog.Debugf("Conversation %s has no messages, skipping crystallization", conversationID)
		return nil
	}

	latest, err := c.summaries.Latest(ctx, key, conversationID)
	if err != nil {
		return err
	}

	previous := ""
	var supersedesID *string
	if latest != nil {
		supersedesID = &latest.RecordID
		if latest.Decrypted {
			if b, err := json.Marshal(latest.Summary); err == nil {
				previous = string(b)
			}
		}
	}

	prompt := prompts.Render(c.library.Summarize(language), Transcript(turns), previous)

	debugLog.Debugf("Crystallizing conversation %s (%d turns, model %s)", conversationID, len(turns), c.provider.GetModel())
	response, err := c.provider.Complete(ctx, []types.Turn{types.NewUserTurn(prompt)})
	if err != nil {
		return err
	}

	summary, err := ParseSummary(response)
	if err != nil {
		debugLog.Warnf("Conversation %s: summary response rejected: %v", conversationID, err)
		return err
	}

	if err := c.summaries.InsertFinalized(ctx, key, conversationID, ownerID, summary, supersedesID); err != nil {
		return err
	}
	debugLog.Infof("Conversation %s crystallized (supersedes %s)", conversationID, supersededLabel(supersedesID))
	return nil
}

// Transcript flattens ordered turns into the role-prefixed line form the
// summarization template consumes.
func Transcript(turns []types.Turn) string {
	lines := make([]string, len(turns))
	for i, turn := range turns {
		lines[i] = fmt.Sprintf("%s: %s", turn.Role, turn.Content)
	}
	return strings.Join(lines, "\n")
}

func supersededLabel(id *string) string {
	if id == nil {
		return "nothing"
	}
	return *id
}
