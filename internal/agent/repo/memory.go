package repo

import (
	"context"
	"sync"

	"github.com/datatalk-core/server/internal/agent/model"
)

// MemoryConversationRepository keeps conversation history in process memory
// as a bounded sliding window: once maxTurns is exceeded the oldest turns are
// dropped. Used when no Redis URL is configured, and in tests.
type MemoryConversationRepository struct {
	mu       sync.Mutex
	maxTurns int
	turns    map[string][]model.ConversationTurn
}

func NewMemoryConversationRepository(maxTurns int) *MemoryConversationRepository {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &MemoryConversationRepository{
		maxTurns: maxTurns,
		turns:    make(map[string][]model.ConversationTurn),
	}
}

func (r *MemoryConversationRepository) AddTurn(ctx context.Context, conversationID string, turn model.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := append(r.turns[conversationID], turn)
	if len(history) > r.maxTurns {
		history = history[len(history)-r.maxTurns:]
	}
	r.turns[conversationID] = history
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(ctx context.Context, conversationID string) ([]model.ConversationTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := r.turns[conversationID]
	out := make([]model.ConversationTurn, len(history))
	copy(out, history)
	return out, nil
}

func (r *MemoryConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.turns, conversationID)
	return nil
}

func (r *MemoryConversationRepository) TurnCount(ctx context.Context, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.turns[conversationID]), nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
