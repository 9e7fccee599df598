package conversations

import (
	"context"
	"strings"

	"github.com/datatalk-core/server/internal/agent/model"
)

// MessagesManager mediates between the pipeline and the conversation
// repository: it records turns and renders the recent-history block the
// intent prompt consumes.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	contextTurns     int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		contextTurns:     config.ContextTurns,
	}
}

// ProcessUserMessage records the user's query and returns the conversation
// context block for the intent prompt, recent turns first.
func (cm *MessagesManager) ProcessUserMessage(ctx context.Context, conversationID, query string) (string, error) {
	if err := cm.conversationRepo.AddTurn(ctx, conversationID, model.NewTurn(model.RoleUser, query)); err != nil {
		return "", err
	}

	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return "", err
	}

	return cm.buildContextBlock(history), nil
}

// buildContextBlock renders the most recent turns, excluding the current
// query which the prompt carries separately.
func (cm *MessagesManager) buildContextBlock(turns []model.ConversationTurn) string {
	if len(turns) > 0 {
		turns = turns[:len(turns)-1]
	}
	turns = trimTail(turns, cm.contextTurns)
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, turn := range turns {
		if turn.Content == "" {
			continue
		}
		b.WriteString(turn.Role + ": " + turn.Content + "\n")
	}
	return b.String()
}

// LoadTurns returns the full stored history for a conversation.
func (cm *MessagesManager) LoadTurns(ctx context.Context, conversationID string) ([]model.ConversationTurn, error) {
	return cm.conversationRepo.LoadHistory(ctx, conversationID)
}

// SaveResponse records the assistant's final answer.
func (cm *MessagesManager) SaveResponse(ctx context.Context, conversationID, content string) error {
	return cm.conversationRepo.AddTurn(ctx, conversationID, model.NewTurn(model.RoleAssistant, content))
}

func trimTail(turns []model.ConversationTurn, maxTurns int) []model.ConversationTurn {
	if maxTurns <= 0 || len(turns) <= maxTurns {
		return turns
	}
	return turns[len(turns)-maxTurns:]
}
