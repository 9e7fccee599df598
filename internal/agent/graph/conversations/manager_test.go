package conversations

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/datatalk-core/server/internal/agent/model"
	"github.com/datatalk-core/server/internal/agent/repo"
)

func newManager(contextTurns int) *MessagesManager {
	return NewMessagesManager(
		repo.NewMemoryConversationRepository(50),
		model.ConversationConfig{ContextTurns: contextTurns},
	)
}

func TestProcessUserMessageFirstTurn(t *testing.T) {
	mm := newManager(5)

	block, err := mm.ProcessUserMessage(context.Background(), "c1", "what is the largest company?")
	if err != nil {
		t.Fatal(err)
	}
	if block != "" {
		t.Fatalf("first turn should have no context block, got %q", block)
	}

	turns, err := mm.LoadTurns(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 || turns[0].Role != model.RoleUser {
		t.Fatalf("turns = %+v", turns)
	}
}

func TestContextBlockExcludesCurrentQuery(t *testing.T) {
	ctx := context.Background()
	mm := newManager(5)

	if _, err := mm.ProcessUserMessage(ctx, "c1", "first question"); err != nil {
		t.Fatal(err)
	}
	if err := mm.SaveResponse(ctx, "c1", "first answer"); err != nil {
		t.Fatal(err)
	}

	block, err := mm.ProcessUserMessage(ctx, "c1", "second question")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(block, "Previous conversation:\n") {
		t.Fatalf("block = %q", block)
	}
	if !strings.Contains(block, "user: first question") {
		t.Errorf("block should carry earlier user turn: %q", block)
	}
	if !strings.Contains(block, "assistant: first answer") {
		t.Errorf("block should carry assistant turn: %q", block)
	}
	if strings.Contains(block, "second question") {
		t.Errorf("block must not include the current query: %q", block)
	}
}

func TestContextBlockTrimsToConfiguredTurns(t *testing.T) {
	ctx := context.Background()
	mm := newManager(2)

	for i := 0; i < 4; i++ {
		if _, err := mm.ProcessUserMessage(ctx, "c1", fmt.Sprintf("question %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	block, err := mm.ProcessUserMessage(ctx, "c1", "current")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(block, "question 0") || strings.Contains(block, "question 1") {
		t.Errorf("old turns should be trimmed: %q", block)
	}
	if !strings.Contains(block, "question 2") || !strings.Contains(block, "question 3") {
		t.Errorf("recent turns should survive: %q", block)
	}
}

func TestSaveResponseAppendsAssistantTurn(t *testing.T) {
	ctx := context.Background()
	mm := newManager(5)

	if _, err := mm.ProcessUserMessage(ctx, "c1", "q"); err != nil {
		t.Fatal(err)
	}
	if err := mm.SaveResponse(ctx, "c1", "a"); err != nil {
		t.Fatal(err)
	}

	turns, _ := mm.LoadTurns(ctx, "c1")
	if len(turns) != 2 || turns[1].Role != model.RoleAssistant || turns[1].Content != "a" {
		t.Fatalf("turns = %+v", turns)
	}
}

func TestTrimTail(t *testing.T) {
	turns := []model.ConversationTurn{
		{Content: "a"}, {Content: "b"}, {Content: "c"},
	}
	if got := trimTail(turns, 2); len(got) != 2 || got[0].Content != "b" {
		t.Fatalf("trimTail = %+v", got)
	}
	if got := trimTail(turns, 0); len(got) != 3 {
		t.Fatalf("non-positive max should keep all turns: %+v", got)
	}
	if got := trimTail(nil, 3); len(got) != 0 {
		t.Fatalf("nil input: %+v", got)
	}
}
