package models

// ReasoningPhase represents a contiguous span of the assistant's "thinking"
// text, distinct from the final answer content. StartTime is fixed at the
// first reasoning chunk of the phase; Content only grows until the phase
// closes.
type ReasoningPhase struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	StartTime int64  `json:"start_time"`
	EndTime   *int64 `json:"end_time,omitempty"`
}

func NewReasoningPhase(id string, startTime int64) *ReasoningPhase {
	return &ReasoningPhase{
		ID:        id,
		StartTime: startTime,
	}
}

// Append grows the phase content with an incrementally arriving chunk.
func (rp *ReasoningPhase) Append(chunk string) {
	rp.Content += chunk
}

// Close marks the end of the phase. Closing an already closed phase is a no-op.
func (rp *ReasoningPhase) Close(endTime int64) {
	if rp.EndTime == nil {
		rp.EndTime = &endTime
	}
}

func (rp *ReasoningPhase) IsOpen() bool {
	return rp.EndTime == nil
}
