package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu      sync.Mutex
	flushes []string
}

func (r *flushRecorder) record(content, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes = append(r.flushes, content)
}

func (r *flushRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.flushes...)
}

func TestAccumulatorFlushesPrefixConcatenation(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(10*time.Millisecond, rec.record)
	defer acc.Close()

	chunks := []string{"Hel", "lo", ", ", "wor", "ld"}
	var want string
	for _, c := range chunks {
		acc.AppendContent(c)
		want += c
		time.Sleep(25 * time.Millisecond)
	}

	flushes := rec.snapshot()
	require.NotEmpty(t, flushes)
	// Every flush is a prefix of the full text; the last one is complete.
	full := want
	for _, f := range flushes {
		assert.True(t, len(f) <= len(full) && full[:len(f)] == f, "flush %q is not a prefix of %q", f, full)
	}
	assert.Equal(t, full, flushes[len(flushes)-1])
}

func TestAccumulatorNoFlushWithoutChunks(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(5*time.Millisecond, rec.record)
	defer acc.Close()

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestAccumulatorBoundsFlushRate(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(50*time.Millisecond, rec.record)
	defer acc.Close()

	// A burst far faster than the interval collapses into few flushes.
	for i := 0; i < 100; i++ {
		acc.AppendContent("x")
		time.Sleep(time.Millisecond)
	}
	time.Sleep(80 * time.Millisecond)

	flushes := rec.snapshot()
	require.NotEmpty(t, flushes)
	assert.Less(t, len(flushes), 10)
}

func TestAccumulatorDrainClearsBuffers(t *testing.T) {
	acc := NewAccumulator(time.Hour, func(string, string) {
		t.Fatal("drain must not trigger the flush callback")
	})
	defer acc.Close()

	acc.AppendContent("partial answer")
	acc.AppendReasoning("partial thought")

	content, reasoning := acc.Drain()
	assert.Equal(t, "partial answer", content)
	assert.Equal(t, "partial thought", reasoning)

	content, reasoning = acc.Drain()
	assert.Empty(t, content)
	assert.Empty(t, reasoning)
}

func TestAccumulatorTakeReasoningLeavesContent(t *testing.T) {
	acc := NewAccumulator(time.Hour, func(string, string) {})
	defer acc.Close()

	acc.AppendContent("answer so far")
	acc.AppendReasoning("first thought")

	assert.Equal(t, "first thought", acc.TakeReasoning())
	assert.Empty(t, acc.TakeReasoning(), "taking clears the reasoning buffer")

	// Later reasoning starts from an empty buffer; content is untouched.
	acc.AppendReasoning("second thought")
	assert.Equal(t, "second thought", acc.TakeReasoning())

	content, _ := acc.Drain()
	assert.Equal(t, "answer so far", content)
}

func TestAccumulatorResetDiscardsPendingFlush(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(20*time.Millisecond, rec.record)
	defer acc.Close()

	acc.AppendContent("doomed")
	acc.Reset()
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
}

func TestAccumulatorCloseStopsAppends(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(5*time.Millisecond, rec.record)

	acc.Close()
	acc.AppendContent("ignored")
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
}
