package chat

import "time"

// Message roles mirror the OpenAI chat wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message persists individual turns for history replay and audit.
type Message struct {
	ID        string    `json:"message_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
