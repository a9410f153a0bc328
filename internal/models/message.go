package models

import "time"

// Message represents a single message in a conversation
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsAssistant reports whether the message was produced by the model
func (m Message) IsAssistant() bool {
	return m.Role == "assistant"
}
