package chat

import (
	"sort"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain/models"
)

// TimelineItemKind discriminates timeline entries.
type TimelineItemKind string

const (
	TimelineMessage   TimelineItemKind = "message"
	TimelineToolCall  TimelineItemKind = "tool_call"
	TimelineReasoning TimelineItemKind = "reasoning"
)

// TimelineItem is one renderable entry of the merged conversation view.
// Exactly the field matching Kind is non-nil. Timestamp is the effective
// sort key, which for a streaming message can differ from the stored one.
type TimelineItem struct {
	Kind      TimelineItemKind
	Timestamp int64

	Message   *models.Message
	ToolCall  *models.ToolCall
	Reasoning *models.ReasoningPhase
}

// BuildTimeline merges messages, tool calls, and reasoning phases into one
// chronological sequence for display. Pure: inputs are not mutated and fixed
// inputs always produce the same order.
//
// A still-streaming message is pinned after the tool activity produced on
// its behalf: when any tool call would sort at or after the streaming
// message's own timestamp, the message sorts at the latest tool end time
// plus one instead. The stored timestamp is untouched.
func BuildTimeline(messages []*models.Message, toolCalls []*models.ToolCall, phases []*models.ReasoningPhase, activeStreamingID string) []TimelineItem {
	items := make([]TimelineItem, 0, len(messages)+len(toolCalls)+len(phases))

	var latestToolEnd int64
	for _, tc := range toolCalls {
		if end := tc.EffectiveEndTime(); end > latestToolEnd {
			latestToolEnd = end
		}
	}

	for _, m := range messages {
		ts := m.Timestamp
		if activeStreamingID != "" && m.ID == activeStreamingID && latestToolEnd >= ts {
			ts = latestToolEnd + 1
		}
		items = append(items, TimelineItem{Kind: TimelineMessage, Timestamp: ts, Message: m})
	}
	for _, tc := range toolCalls {
		items = append(items, TimelineItem{Kind: TimelineToolCall, Timestamp: tc.StartTime, ToolCall: tc})
	}
	for _, p := range phases {
		items = append(items, TimelineItem{Kind: TimelineReasoning, Timestamp: p.StartTime, Reasoning: p})
	}

	// Stable keeps insertion order on equal timestamps, which makes the
	// result deterministic.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp < items[j].Timestamp
	})
	return items
}
