package agents

import (
	"sync"
	"time"

	"marketresearch/internal/adapters/ai"
)

// Turn is one remembered exchange entry.
type Turn struct {
	Role      ai.MessageRole `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Tokens    int            `json:"tokens,omitempty"` // Estimated token count
}

// ConversationMemory is the ordered, append-only chat history of one agent.
// Nothing is ever evicted.
type ConversationMemory struct {
	mu     sync.RWMutex
	turns  []Turn
	tokens int
	now    func() time.Time
}

// NewConversationMemory creates an empty memory
func NewConversationMemory() *ConversationMemory {
	return &ConversationMemory{
		turns: make([]Turn, 0, 16),
		now:   time.Now,
	}
}

// AddUserMessage appends a user turn
func (m *ConversationMemory) AddUserMessage(content string) {
	m.append(ai.RoleUser, content)
}

// AddAssistantMessage appends an assistant turn
func (m *ConversationMemory) AddAssistantMessage(content string) {
	m.append(ai.RoleAssistant, content)
}

func (m *ConversationMemory) append(role ai.MessageRole, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Turn{
		Role:      role,
		Content:   content,
		Timestamp: m.now(),
		Tokens:    estimateTokens(content),
	}
	m.turns = append(m.turns, t)
	m.tokens += t.Tokens
}

// Turns returns a copy of the history
func (m *ConversationMemory) Turns() []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Messages converts the history into model messages
func (m *ConversationMemory) Messages() []ai.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ai.Message, 0, len(m.turns))
	for _, t := range m.turns {
		out = append(out, ai.Message{Role: t.Role, Content: t.Content})
	}
	return out
}

// Len returns the number of turns
func (m *ConversationMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Tokens returns the estimated token count of the whole history
func (m *ConversationMemory) Tokens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens
}

// estimateTokens approximates 1 token per 4 characters
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
