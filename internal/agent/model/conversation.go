package model

import (
	"context"
	"time"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one message of the conversation history.
type ConversationTurn struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewTurn creates a turn stamped with the current time.
func NewTurn(role, content string) ConversationTurn {
	return ConversationTurn{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// ConversationRepository persists conversation history across invocations.
// Implementations must never be mutated concurrently with an in-flight plan
// execution; the pipeline touches history only before and after a run.
type ConversationRepository interface {
	// AddTurn appends a turn to the conversation history.
	AddTurn(ctx context.Context, conversationID string, turn ConversationTurn) error

	// LoadHistory retrieves the conversation history for a conversation.
	LoadHistory(ctx context.Context, conversationID string) ([]ConversationTurn, error)

	// ClearHistory removes all history for a conversation.
	ClearHistory(ctx context.Context, conversationID string) error

	// TurnCount returns the number of stored turns.
	TurnCount(ctx context.Context, conversationID string) (int, error)
}
