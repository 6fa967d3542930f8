package models

import (
	"time"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// MessageStatus represents the completion state of a message during generation/streaming
type MessageStatus string

const (
	// MessageStatusStreaming indicates the message is currently being generated/streamed
	MessageStatusStreaming MessageStatus = "streaming"
	// MessageStatusCompleted indicates the message generation is complete
	MessageStatusCompleted MessageStatus = "completed"
	// MessageStatusFailed indicates the message generation failed
	MessageStatusFailed MessageStatus = "failed"
)

// StreamingPlaceholderID is the reserved message ID held by the single
// in-flight assistant message until the server confirms a final ID.
// A message carrying this ID is never persisted; it is replaced in place
// by the server-confirmed record when the exchange completes.
const StreamingPlaceholderID = "streaming-temp"

// Message represents one turn in a conversation.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SequenceNumber int           `json:"sequence_number,omitempty"`
	Role           MessageRole   `json:"role"`
	Content        string        `json:"content"`
	Reasoning      string        `json:"reasoning,omitempty"`
	Status         MessageStatus `json:"status"`
	ModelUsed      string        `json:"model_used,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`

	// Timestamp is derived from CreatedAt (milliseconds) and used for
	// ordering. For the streaming placeholder it is assigned monotonically
	// past the latest existing message rather than from the wall clock.
	Timestamp int64 `json:"timestamp"`

	// Documents holds attachment metadata returned by the upload endpoint.
	Documents []*Document `json:"documents,omitempty"`
}

func NewMessage(id, conversationID string, role MessageRole, content string) *Message {
	now := time.Now().UTC()
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Status:         MessageStatusCompleted,
		CreatedAt:      now,
		Timestamp:      now.UnixMilli(),
	}
}

func NewUserMessage(id, conversationID, content string) *Message {
	return NewMessage(id, conversationID, MessageRoleUser, content)
}

// NewStreamingPlaceholder creates the provisional assistant message inserted
// at stream start. The caller supplies a timestamp strictly after the latest
// existing message so ordering is stable under clock skew.
func NewStreamingPlaceholder(conversationID string, timestamp int64) *Message {
	return &Message{
		ID:             StreamingPlaceholderID,
		ConversationID: conversationID,
		Role:           MessageRoleAssistant,
		Status:         MessageStatusStreaming,
		CreatedAt:      time.UnixMilli(timestamp).UTC(),
		Timestamp:      timestamp,
	}
}

func (m *Message) IsFromUser() bool {
	return m.Role == MessageRoleUser
}

func (m *Message) IsFromAssistant() bool {
	return m.Role == MessageRoleAssistant
}

func (m *Message) IsStreaming() bool {
	return m.Status == MessageStatusStreaming
}

func (m *Message) IsCompleted() bool {
	return m.Status == MessageStatusCompleted
}

func (m *Message) IsPlaceholder() bool {
	return m.ID == StreamingPlaceholderID
}

// Finalize replaces the placeholder's identity with the server-confirmed
// values. ID, content, status and timestamp change together so observers
// never see a half-updated record.
func (m *Message) Finalize(id, content, modelUsed string, createdAt time.Time) {
	m.ID = id
	m.Content = content
	m.Status = MessageStatusCompleted
	if modelUsed != "" {
		m.ModelUsed = modelUsed
	}
	if !createdAt.IsZero() {
		m.CreatedAt = createdAt
		// Only move the ordering timestamp forward; the placeholder slot was
		// chosen monotonically and server clock skew must not reorder it.
		if ts := createdAt.UnixMilli(); ts > m.Timestamp {
			m.Timestamp = ts
		}
	}
}

// AttachDocument records uploaded attachment metadata on the message.
func (m *Message) AttachDocument(doc *Document) {
	m.Documents = append(m.Documents, doc)
}
