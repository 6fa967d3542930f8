package ports

import (
	"context"
)

// StreamEventKind identifies one event on the push stream. The values are
// the wire event names; ConnectionError is synthesized client-side when the
// transport drops before a terminal event.
type StreamEventKind string

const (
	StreamEventUserMessage            StreamEventKind = "user_message"
	StreamEventAssistantStart         StreamEventKind = "assistant_message_start"
	StreamEventContentChunk           StreamEventKind = "content_chunk"
	StreamEventReasoningChunk         StreamEventKind = "reasoning_chunk"
	StreamEventToolCall               StreamEventKind = "tool_call"
	StreamEventToolResult             StreamEventKind = "tool_result"
	StreamEventTitleGenerationStarted StreamEventKind = "title_generation_started"
	StreamEventTitleComplete          StreamEventKind = "title_complete"
	StreamEventAssistantComplete      StreamEventKind = "assistant_message_complete"
	StreamEventError                  StreamEventKind = "error"
	StreamEventConnectionError        StreamEventKind = "connection_error"
)

// UserMessagePayload acknowledges the user turn that opened the exchange.
type UserMessagePayload struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SequenceNumber int    `json:"sequence_number,omitempty"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

// AssistantStartPayload opens the assistant turn.
type AssistantStartPayload struct {
	ID             string `json:"id,omitempty"`
	ConversationID string `json:"conversation_id"`
	SequenceNumber int    `json:"sequence_number,omitempty"`
	Role           string `json:"role"`
	ModelUsed      string `json:"model_used,omitempty"`
	Status         string `json:"status"`
}

// ContentChunkPayload carries one fragment of streamed answer text.
type ContentChunkPayload struct {
	Chunk         string `json:"chunk"`
	ContentLength int    `json:"content_length"`
}

// ReasoningChunkPayload carries one fragment of streamed thinking text.
type ReasoningChunkPayload struct {
	Chunk       string `json:"chunk"`
	ContentType string `json:"content_type,omitempty"`
}

// ToolCallPayload announces a tool invocation. The wire carries no call ID;
// results pair back by name.
type ToolCallPayload struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Status    string         `json:"status"`
}

// ToolResultPayload closes the most recent executing call of the same name.
type ToolResultPayload struct {
	Name   string `json:"name"`
	Result string `json:"result,omitempty"`
	Status string `json:"status"`
}

// TitlePayload carries conversation title lifecycle events.
type TitlePayload struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title,omitempty"`
}

// AssistantCompletePayload is the authoritative final state of the assistant
// turn; its content supersedes anything accumulated locally.
type AssistantCompletePayload struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Status    string `json:"status"`
	ModelUsed string `json:"model_used,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ErrorPayload reports a server-side failure of the exchange.
type ErrorPayload struct {
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
}

// StreamEvent is the closed union of events delivered by a stream. Exactly
// the payload matching Kind is non-nil; Err is set only for connection
// errors.
type StreamEvent struct {
	Kind StreamEventKind

	UserMessage       *UserMessagePayload
	AssistantStart    *AssistantStartPayload
	ContentChunk      *ContentChunkPayload
	ReasoningChunk    *ReasoningChunkPayload
	ToolCall          *ToolCallPayload
	ToolResult        *ToolResultPayload
	Title             *TitlePayload
	AssistantComplete *AssistantCompletePayload
	Error             *ErrorPayload
	Err               error
}

// StreamRequest describes the assistant exchange to open.
type StreamRequest struct {
	ConversationID        string
	MessageContent        string
	Model                 string
	ExistingUserMessageID string
	UseTools              bool
	EnabledTools          []string
	ReasoningEnabled      bool
}

// Stream is one open push connection for a single in-flight exchange.
// Events are delivered in arrival order and never reordered. The channel is
// closed after the terminal event (assistant_message_complete, error, or a
// synthesized connection_error); closure with no prior terminal event means
// the connection dropped silently.
type Stream interface {
	// Events returns the ordered event channel for this exchange.
	Events() <-chan *StreamEvent
	// Close stops event delivery immediately. It does not cancel
	// server-side work. Safe to call more than once.
	Close()
}

// StreamClient opens push connections. At most one open stream per
// conversation is permitted; enforcing that is the caller's job, not the
// client's.
type StreamClient interface {
	OpenStream(ctx context.Context, req *StreamRequest) (Stream, error)
}
