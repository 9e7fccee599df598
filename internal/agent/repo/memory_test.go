package repo

import (
	"context"
	"fmt"
	"testing"

	"github.com/datatalk-core/server/internal/agent/model"
)

func TestMemoryRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository(10)

	if err := r.AddTurn(ctx, "c1", model.NewTurn(model.RoleUser, "hello")); err != nil {
		t.Fatal(err)
	}
	if err := r.AddTurn(ctx, "c1", model.NewTurn(model.RoleAssistant, "hi")); err != nil {
		t.Fatal(err)
	}

	turns, err := r.LoadHistory(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 || turns[0].Role != model.RoleUser || turns[1].Content != "hi" {
		t.Fatalf("history = %+v", turns)
	}

	n, err := r.TurnCount(ctx, "c1")
	if err != nil || n != 2 {
		t.Fatalf("count = %d err = %v", n, err)
	}
}

func TestMemoryRepoSlidingWindow(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository(3)

	for i := 0; i < 5; i++ {
		if err := r.AddTurn(ctx, "c1", model.NewTurn(model.RoleUser, fmt.Sprintf("msg %d", i))); err != nil {
			t.Fatal(err)
		}
	}

	turns, err := r.LoadHistory(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 3 {
		t.Fatalf("window = %d, want 3", len(turns))
	}
	if turns[0].Content != "msg 2" || turns[2].Content != "msg 4" {
		t.Fatalf("oldest turns should be dropped: %+v", turns)
	}
}

func TestMemoryRepoIsolatesConversations(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository(10)

	_ = r.AddTurn(ctx, "a", model.NewTurn(model.RoleUser, "for a"))
	_ = r.AddTurn(ctx, "b", model.NewTurn(model.RoleUser, "for b"))

	turns, _ := r.LoadHistory(ctx, "a")
	if len(turns) != 1 || turns[0].Content != "for a" {
		t.Fatalf("conversation a = %+v", turns)
	}
}

func TestMemoryRepoClearHistory(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository(10)

	_ = r.AddTurn(ctx, "c1", model.NewTurn(model.RoleUser, "hello"))
	if err := r.ClearHistory(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	n, _ := r.TurnCount(ctx, "c1")
	if n != 0 {
		t.Fatalf("count after clear = %d", n)
	}
}

func TestMemoryRepoLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository(10)

	_ = r.AddTurn(ctx, "c1", model.NewTurn(model.RoleUser, "original"))
	turns, _ := r.LoadHistory(ctx, "c1")
	turns[0].Content = "mutated"

	again, _ := r.LoadHistory(ctx, "c1")
	if again[0].Content != "original" {
		t.Fatal("stored history should not share memory with callers")
	}
}

func TestMemoryRepoDefaultWindow(t *testing.T) {
	r := NewMemoryConversationRepository(0)
	if r.maxTurns != 10 {
		t.Fatalf("default window = %d", r.maxTurns)
	}
}
