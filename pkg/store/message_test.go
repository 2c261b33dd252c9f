package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/pcl-labs/navigator/pkg/crypto"
	"github.com/pcl-labs/navigator/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testKey(secret string) []byte {
	return crypto.DeriveKey([]byte(secret), []byte("test-salt"))
}

func TestAppendLoadOrder(t *testing.T) {
	s := newTestStore(t)
	ms := s.Messages()
	ctx := context.Background()
	key := testKey("owner-secret")
	conv := uuid.New()

	const n = 25
	for i := 0; i < n; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		content := fmt.Sprintf("turn %d", i)
		if err := ms.Append(ctx, key, conv, role, content, "owner-1"); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	turns, err := ms.Load(ctx, key, conv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(turns) != n {
		t.Fatalf("Expected %d turns, got %d", n, len(turns))
	}
	for i, turn := range turns {
		want := fmt.Sprintf("turn %d", i)
		if turn.Content != want {
			t.Errorf("Turn %d out of order: got %q, want %q", i, turn.Content, want)
		}
	}
	if turns[0].Role != types.RoleUser || turns[1].Role != types.RoleAssistant {
		t.Errorf("Roles did not round-trip: %q, %q", turns[0].Role, turns[1].Role)
	}
}

func TestLoadEmptyConversation(t *testing.T) {
	s := newTestStore(t)
	turns, err := s.Messages().Load(context.Background(), testKey("x"), uuid.New())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Expected no turns for unknown conversation, got %d", len(turns))
	}
}

func TestLoadWrongKeySubstitutesPlaceholder(t *testing.T) {
	s := newTestStore(t)
	ms := s.Messages()
	ctx := context.Background()
	conv := uuid.New()

	if err := ms.Append(ctx, testKey("right"), conv, types.RoleUser, "secret thought", "owner-1"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := ms.Append(ctx, testKey("right"), conv, types.RoleAssistant, "a reply", "owner-1"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	turns, err := ms.Load(ctx, testKey("wrong"), conv)
	if err != nil {
		t.Fatalf("Load should not fail on undecryptable turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		if turn.Content != UndecryptableMessage {
			t.Errorf("Turn %d: expected placeholder, got %q", i, turn.Content)
		}
	}
	if turns[0].Role != types.RoleUser {
		t.Errorf("Role should survive decryption failure, got %q", turns[0].Role)
	}
}

func TestLatestPerConversation(t *testing.T) {
	s := newTestStore(t)
	ms := s.Messages()
	ctx := context.Background()
	key := testKey("owner-secret")

	convA := uuid.New()
	convB := uuid.New()

	// convA written first, convB more recently.
	if err := ms.Append(ctx, key, convA, types.RoleUser, "first in A", "owner-1"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := ms.Append(ctx, key, convA, types.RoleAssistant, "latest in A", "owner-1"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := ms.Append(ctx, key, convB, types.RoleUser, "only in B", "owner-1"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Another owner's conversation must not appear.
	if err := ms.Append(ctx, key, uuid.New(), types.RoleUser, "not mine", "owner-2"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	previews, err := ms.LatestPerConversation(ctx, key, "owner-1")
	if err != nil {
		t.Fatalf("LatestPerConversation failed: %v", err)
	}
	if len(previews) != 2 {
		t.Fatalf("Expected 2 previews, got %d", len(previews))
	}

	found := map[uuid.UUID]string{}
	for _, p := range previews {
		found[p.ConversationID] = p.Content
	}
	if found[convA] != "latest in A" {
		t.Errorf("Expected most recent turn of A, got %q", found[convA])
	}
	if found[convB] != "only in B" {
		t.Errorf("Expected turn of B, got %q", found[convB])
	}
	if previews[0].CreatedAt.Before(previews[1].CreatedAt) {
		t.Error("Expected previews ordered by most recent activity descending")
	}
}
