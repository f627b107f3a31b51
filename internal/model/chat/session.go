package chat

import "time"

// Session captures one conversation with a persona, including the request
// context carried over from the frontend. The JSON shape doubles as the
// Redis persistence format.
type Session struct {
	ID           string         `json:"session_id"`
	PersonaType  string         `json:"persona_type"`
	Messages     []Message      `json:"messages"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	Context      map[string]any `json:"context"`
	AuthToken    string         `json:"auth_token,omitempty"`
	ProfileID    string         `json:"profile_id,omitempty"`
}

// Append records a message and bumps the activity clock.
func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.LastActivity = time.Now().UTC()
}

// RecentMessages returns up to limit messages from the end of the history.
func (s *Session) RecentMessages(limit int) []Message {
	if limit <= 0 || len(s.Messages) <= limit {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-limit:]
}
