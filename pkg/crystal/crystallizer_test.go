package crystal

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcl-labs/navigator/pkg/crypto"
	"github.com/pcl-labs/navigator/pkg/llm"
	"github.com/pcl-labs/navigator/pkg/prompts"
	"github.com/pcl-labs/navigator/pkg/store"
	"github.com/pcl-labs/navigator/pkg/types"
)

const testOwner = "tester@example.com"

func newTestEnv(t *testing.T, provider llm.Provider) (*Crystallizer, *store.Store, []byte) {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	key := crypto.DeriveKey([]byte("crystal-test-secret"), []byte(testOwner))
	c := New(s.Messages(), s.Summaries(), provider, prompts.NewLibrary(t.TempDir()))
	return c, s, key
}

func seedConversation(t *testing.T, s *store.Store, key []byte, conversationID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Messages().Append(ctx, key, conversationID, types.RoleUser, "I want to change careers into data engineering", testOwner))
	require.NoError(t, s.Messages().Append(ctx, key, conversationID, types.RoleAssistant, "What draws you to data engineering specifically?", testOwner))
	require.NoError(t, s.Messages().Append(ctx, key, conversationID, types.RoleUser, "I like building pipelines more than dashboards", testOwner))
}

func TestCrystallizeAppendsFinalized(t *testing.T) {
	provider := &llm.MockProvider{Responses: []string{
		`{"why_summary": "Career change into data engineering", "what_summary": "Explore pipeline-focused roles", "how_summary": "Assess current skills first"}`,
	}}
	c, s, key := newTestEnv(t, provider)
	ctx := context.Background()
	conversationID := uuid.New()
	seedConversation(t, s, key, conversationID)

	require.NoError(t, c.Crystallize(ctx, key, conversationID, testOwner, "en"))

	latest, err := s.Summaries().Latest(ctx, key, conversationID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, types.StatusFinalized, latest.Status)
	assert.Equal(t, "Career change into data engineering", latest.Summary.Why)
	assert.True(t, latest.Decrypted)

	chain, err := s.Summaries().Chain(ctx, key, conversationID)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Nil(t, chain[0].SupersedesID)
}

func TestCrystallizeTwiceExtendsChain(t *testing.T) {
	provider := &llm.MockProvider{Responses: []string{
		`{"why_summary": "first pass", "what_summary": "w", "how_summary": "h"}`,
		`{"why_summary": "second pass", "what_summary": "w", "how_summary": "h"}`,
	}}
	c, s, key := newTestEnv(t, provider)
	ctx := context.Background()
	conversationID := uuid.New()
	seedConversation(t, s, key, conversationID)

	require.NoError(t, c.Crystallize(ctx, key, conversationID, testOwner, "en"))
	require.NoError(t, c.Crystallize(ctx, key, conversationID, testOwner, "en"))

	chain, err := s.Summaries().Chain(ctx, key, conversationID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Nil(t, chain[0].SupersedesID)
	require.NotNil(t, chain[1].SupersedesID)
	assert.Equal(t, chain[0].ID, *chain[1].SupersedesID)
	assert.Equal(t, "second pass", chain[1].Summary.Why)

	// The second prompt carries the first summary as refinement context.
	calls := provider.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1][0].Content, "first pass")
}

func TestCrystallizeSupersedesInterim(t *testing.T) {
	provider := &llm.MockProvider{Responses: []string{
		`{"why_summary": "refined", "what_summary": "w", "how_summary": "h"}`,
	}}
	c, s, key := newTestEnv(t, provider)
	ctx := context.Background()
	conversationID := uuid.New()
	seedConversation(t, s, key, conversationID)
	require.NoError(t, s.Summaries().InsertInterim(ctx, key, conversationID, testOwner, DraftSummary("I want to change careers")))

	require.NoError(t, c.Crystallize(ctx, key, conversationID, testOwner, "en"))

	chain, err := s.Summaries().Chain(ctx, key, conversationID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, types.StatusInterim, chain[0].Status)
	assert.Equal(t, types.StatusFinalized, chain[1].Status)
	require.NotNil(t, chain[1].SupersedesID)
	assert.Equal(t, chain[0].ID, *chain[1].SupersedesID)
}

func TestCrystallizeEmptyConversationNoOp(t *testing.T) {
	provider := &llm.MockProvider{Responses: []string{`{"why_summary": "w", "what_summary": "x", "how_summary": "h"}`}}
	c, s, key := newTestEnv(t, provider)
	ctx := context.Background()
	conversationID := uuid.New()

	require.NoError(t, c.Crystallize(ctx, key, conversationID, testOwner, "en"))

	assert.Empty(t, provider.Calls())
	latest, err := s.Summaries().Latest(ctx, key, conversationID)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestCrystallizeParseFailureLeavesChainUntouched(t *testing.T) {
	provider := &llm.MockProvider{Responses: []string{
		`{"why_summary": "kept", "what_summary": "w", "how_summary": "h"}`,
		`Sorry, I can't summarize that.`,
	}}
	c, s, key := newTestEnv(t, provider)
	ctx := context.Background()
	conversationID := uuid.New()
	seedConversation(t, s, key, conversationID)
	require.NoError(t, c.Crystallize(ctx, key, conversationID, testOwner, "en"))

	err := c.Crystallize(ctx, key, conversationID, testOwner, "en")
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)

	chain, chainErr := s.Summaries().Chain(ctx, key, conversationID)
	require.NoError(t, chainErr)
	require.Len(t, chain, 1)
	assert.Equal(t, "kept", chain[0].Summary.Why)
}

func TestCrystallizeProviderFailureLeavesChainUntouched(t *testing.T) {
	provider := &llm.MockProvider{Err: assert.AnError}
	c, s, key := newTestEnv(t, provider)
	ctx := context.Background()
	conversationID := uuid.New()
	seedConversation(t, s, key, conversationID)

	err := c.Crystallize(ctx, key, conversationID, testOwner, "en")
	require.Error(t, err)
	var invErr *llm.InvocationError
	require.ErrorAs(t, err, &invErr)

	latest, latestErr := s.Summaries().Latest(ctx, key, conversationID)
	require.NoError(t, latestErr)
	assert.Nil(t, latest)
}

func TestCrystallizeFencedResponse(t *testing.T) {
	provider := &llm.MockProvider{Responses: []string{
		"```json\n{\"why_summary\": \"fenced\", \"what_summary\": \"w\", \"how_summary\": \"h\"}\n```",
	}}
	c, s, key := newTestEnv(t, provider)
	ctx := context.Background()
	conversationID := uuid.New()
	seedConversation(t, s, key, conversationID)

	require.NoError(t, c.Crystallize(ctx, key, conversationID, testOwner, "en"))

	latest, err := s.Summaries().Latest(ctx, key, conversationID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "fenced", latest.Summary.Why)
}

func TestCrystallizePromptContainsTranscript(t *testing.T) {
	provider := &llm.MockProvider{Responses: []string{
		`{"why_summary": "w", "what_summary": "x", "how_summary": "h"}`,
	}}
	c, s, key := newTestEnv(t, provider)
	ctx := context.Background()
	conversationID := uuid.New()
	seedConversation(t, s, key, conversationID)

	require.NoError(t, c.Crystallize(ctx, key, conversationID, testOwner, "en"))

	calls := provider.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0][0].Content
	assert.Contains(t, prompt, "user: I want to change careers into data engineering")
	assert.Contains(t, prompt, "assistant: What draws you to data engineering specifically?")
	assert.NotContains(t, prompt, "{conversation_text}")
	assert.NotContains(t, prompt, "{previous_summary}")
}

func TestTranscript(t *testing.T) {
	turns := []types.Turn{
		types.NewUserTurn("hello"),
		types.NewAssistantTurn("hi there"),
	}
	got := Transcript(turns)
	want := "user: hello\nassistant: hi there"
	if got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}
	if strings.Contains(Transcript(nil), "\n") {
		t.Error("Transcript(nil) should be empty")
	}
}
