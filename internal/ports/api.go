package ports

import (
	"context"
	"io"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain/models"
)

// MessageList is one page of a conversation's history.
type MessageList struct {
	Messages   []*models.Message `json:"messages"`
	TotalCount int               `json:"total_count"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// ConversationAPI is the REST surface of the backend consumed by the
// reconciliation engine: message CRUD and document upload. Conversation
// metadata itself is owned by an external collaborator.
type ConversationAPI interface {
	// CreateMessage persists a user turn and returns the server record.
	CreateMessage(ctx context.Context, conversationID, content, model string) (*models.Message, error)
	// GetMessage fetches a single message by ID.
	GetMessage(ctx context.Context, conversationID, messageID string) (*models.Message, error)
	// ListMessages bulk-loads history for a conversation switch, newest page
	// first up to limit.
	ListMessages(ctx context.Context, conversationID string, limit int) (*MessageList, error)
	// UploadDocument attaches one file to a message via multipart upload.
	UploadDocument(ctx context.Context, messageID, filename string, size int64, file io.Reader) (*models.Document, error)
}

// IDGenerator produces identifiers for locally created records.
type IDGenerator interface {
	GenerateToolCallID() string
	GenerateReasoningPhaseID() string
	GenerateStreamID() string
}
