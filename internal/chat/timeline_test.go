package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain/models"
)

func msgAt(id string, role models.MessageRole, ts int64) *models.Message {
	return &models.Message{
		ID:        id,
		Role:      role,
		Status:    models.MessageStatusCompleted,
		CreatedAt: time.UnixMilli(ts),
		Timestamp: ts,
	}
}

func toolAt(id string, start int64, end int64) *models.ToolCall {
	tc := &models.ToolCall{
		ID:        id,
		Name:      "search",
		Status:    models.ToolCallStatusCompleted,
		StartTime: start,
	}
	tc.EndTime = &end
	return tc
}

func TestBuildTimelineOrdersByTimestamp(t *testing.T) {
	messages := []*models.Message{
		msgAt("m2", models.MessageRoleAssistant, 300),
		msgAt("m1", models.MessageRoleUser, 100),
	}
	tools := []*models.ToolCall{toolAt("t1", 150, 200)}
	phases := []*models.ReasoningPhase{{ID: "r1", StartTime: 120}}

	items := BuildTimeline(messages, tools, phases, "")

	require.Len(t, items, 4)
	assert.Equal(t, "m1", items[0].Message.ID)
	assert.Equal(t, "r1", items[1].Reasoning.ID)
	assert.Equal(t, "t1", items[2].ToolCall.ID)
	assert.Equal(t, "m2", items[3].Message.ID)

	for i := 1; i < len(items); i++ {
		assert.LessOrEqual(t, items[i-1].Timestamp, items[i].Timestamp)
	}
}

func TestBuildTimelinePinsStreamingMessageAfterTools(t *testing.T) {
	streaming := msgAt(models.StreamingPlaceholderID, models.MessageRoleAssistant, 100)
	streaming.Status = models.MessageStatusStreaming
	messages := []*models.Message{
		msgAt("m1", models.MessageRoleUser, 50),
		streaming,
	}
	// Tool activity with end times after the placeholder's insertion point.
	tools := []*models.ToolCall{
		toolAt("t1", 110, 140),
		toolAt("t2", 150, 180),
	}

	items := BuildTimeline(messages, tools, nil, models.StreamingPlaceholderID)

	require.Len(t, items, 4)
	assert.Equal(t, "m1", items[0].Message.ID)
	assert.Equal(t, "t1", items[1].ToolCall.ID)
	assert.Equal(t, "t2", items[2].ToolCall.ID)
	assert.Equal(t, models.StreamingPlaceholderID, items[3].Message.ID)
	assert.Equal(t, int64(181), items[3].Timestamp)

	// The stored timestamp stays untouched.
	assert.Equal(t, int64(100), streaming.Timestamp)
}

func TestBuildTimelineNoPinWithoutActiveStream(t *testing.T) {
	msg := msgAt(models.StreamingPlaceholderID, models.MessageRoleAssistant, 100)
	tools := []*models.ToolCall{toolAt("t1", 110, 140)}

	items := BuildTimeline([]*models.Message{msg}, tools, nil, "")

	assert.Equal(t, models.StreamingPlaceholderID, items[0].Message.ID)
	assert.Equal(t, int64(100), items[0].Timestamp)
}

func TestBuildTimelineExecutingToolUsesStartTime(t *testing.T) {
	streaming := msgAt(models.StreamingPlaceholderID, models.MessageRoleAssistant, 100)
	executing := &models.ToolCall{
		ID: "t1", Name: "search",
		Status:    models.ToolCallStatusExecuting,
		StartTime: 120,
	}

	items := BuildTimeline([]*models.Message{streaming}, []*models.ToolCall{executing}, nil, models.StreamingPlaceholderID)

	require.Len(t, items, 2)
	assert.Equal(t, "t1", items[0].ToolCall.ID)
	assert.Equal(t, int64(121), items[1].Timestamp)
}

func TestBuildTimelineDeterministicOnTies(t *testing.T) {
	messages := []*models.Message{
		msgAt("m1", models.MessageRoleUser, 100),
		msgAt("m2", models.MessageRoleAssistant, 100),
	}
	phases := []*models.ReasoningPhase{{ID: "r1", StartTime: 100}}

	first := BuildTimeline(messages, nil, phases, "")
	for i := 0; i < 5; i++ {
		again := BuildTimeline(messages, nil, phases, "")
		require.Equal(t, first, again)
	}

	// Insertion order breaks the tie: messages before phases.
	assert.Equal(t, "m1", first[0].Message.ID)
	assert.Equal(t, "m2", first[1].Message.ID)
	assert.Equal(t, "r1", first[2].Reasoning.ID)
}

func TestBuildTimelineEmptyInputs(t *testing.T) {
	assert.Empty(t, BuildTimeline(nil, nil, nil, ""))
}
