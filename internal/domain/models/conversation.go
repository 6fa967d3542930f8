package models

import (
	"time"
)

// Conversation metadata is owned by the backend; the client references
// conversations by ID and receives title updates over the event stream.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	CurrentModel string    `json:"current_model,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
