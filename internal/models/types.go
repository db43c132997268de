// internal/models/types.go
package models

import "context"

// Role tags a message as coming from the user or a model
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the roles the chat endpoint accepts
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Message is one turn of a conversation as sent to a chat endpoint
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Model is an immutable catalog entry
type Model struct {
	ID   string `json:"id"`   // provider/model identifier, e.g. qwen/qwen3-14b
	Name string `json:"name"` // Display label
}

// Sender posts a full message list to one model and returns the assistant reply.
// It is the only network capability the dispatcher depends on, so tests can
// substitute a fake.
type Sender interface {
	Send(ctx context.Context, modelID string, messages []Message) (string, error)
}

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(ctx context.Context, modelID string, messages []Message) (string, error)

func (f SenderFunc) Send(ctx context.Context, modelID string, messages []Message) (string, error) {
	return f(ctx, modelID, messages)
}
