package models

type ToolCallStatus string

const (
	ToolCallStatusExecuting ToolCallStatus = "executing"
	ToolCallStatusCompleted ToolCallStatus = "completed"
	ToolCallStatusFailed    ToolCallStatus = "failed"
)

// ToolCall represents a single invocation of an external capability during
// one exchange. Status transitions are monotonic: executing -> completed or
// executing -> failed, never reversed. EndTime is set exactly when leaving
// the executing state.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Status    ToolCallStatus `json:"status"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	StartTime int64          `json:"start_time"`
	EndTime   *int64         `json:"end_time,omitempty"`
}

func NewToolCall(id, name string, arguments map[string]any, startTime int64) *ToolCall {
	return &ToolCall{
		ID:        id,
		Name:      name,
		Arguments: arguments,
		Status:    ToolCallStatusExecuting,
		StartTime: startTime,
	}
}

func (tc *ToolCall) Complete(result string, endTime int64) {
	tc.Status = ToolCallStatusCompleted
	tc.Result = result
	tc.EndTime = &endTime
}

func (tc *ToolCall) Fail(errorMessage string, endTime int64) {
	tc.Status = ToolCallStatusFailed
	tc.Error = errorMessage
	tc.EndTime = &endTime
}

func (tc *ToolCall) IsExecuting() bool {
	return tc.Status == ToolCallStatusExecuting
}

// IsComplete returns true if the tool call has finished (completed or failed)
func (tc *ToolCall) IsComplete() bool {
	return tc.Status == ToolCallStatusCompleted || tc.Status == ToolCallStatusFailed
}

// EffectiveEndTime returns the end time for ordering purposes, falling back
// to the start time while the call is still executing.
func (tc *ToolCall) EffectiveEndTime() int64 {
	if tc.EndTime != nil {
		return *tc.EndTime
	}
	return tc.StartTime
}
