package stream

import (
	"encoding/json"
	"fmt"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/ports"
)

// decodeEvent turns one SSE frame into a typed stream event. Unknown event
// names return (nil, nil) so new server-side events degrade gracefully.
func decodeEvent(name string, data []byte) (*ports.StreamEvent, error) {
	kind := ports.StreamEventKind(name)
	ev := &ports.StreamEvent{Kind: kind}

	var payload any
	switch kind {
	case ports.StreamEventUserMessage:
		ev.UserMessage = &ports.UserMessagePayload{}
		payload = ev.UserMessage
	case ports.StreamEventAssistantStart:
		ev.AssistantStart = &ports.AssistantStartPayload{}
		payload = ev.AssistantStart
	case ports.StreamEventContentChunk:
		ev.ContentChunk = &ports.ContentChunkPayload{}
		payload = ev.ContentChunk
	case ports.StreamEventReasoningChunk:
		ev.ReasoningChunk = &ports.ReasoningChunkPayload{}
		payload = ev.ReasoningChunk
	case ports.StreamEventToolCall:
		ev.ToolCall = &ports.ToolCallPayload{}
		payload = ev.ToolCall
	case ports.StreamEventToolResult:
		ev.ToolResult = &ports.ToolResultPayload{}
		payload = ev.ToolResult
	case ports.StreamEventTitleGenerationStarted, ports.StreamEventTitleComplete:
		ev.Title = &ports.TitlePayload{}
		payload = ev.Title
	case ports.StreamEventAssistantComplete:
		ev.AssistantComplete = &ports.AssistantCompletePayload{}
		payload = ev.AssistantComplete
	case ports.StreamEventError:
		ev.Error = &ports.ErrorPayload{}
		payload = ev.Error
	default:
		return nil, nil
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, payload); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", name, err)
		}
	}
	return ev, nil
}

// isTerminal reports whether an event settles the exchange. Title events may
// still follow a completion; everything else after a terminal event is noise.
func isTerminal(kind ports.StreamEventKind) bool {
	switch kind {
	case ports.StreamEventAssistantComplete, ports.StreamEventError, ports.StreamEventConnectionError:
		return true
	}
	return false
}

func isTitle(kind ports.StreamEventKind) bool {
	return kind == ports.StreamEventTitleGenerationStarted || kind == ports.StreamEventTitleComplete
}
