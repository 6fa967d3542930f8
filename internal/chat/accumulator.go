package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/adapters/metrics"
)

// DefaultFlushInterval bounds the rate at which buffered text becomes
// observable, roughly 20 updates a second.
const DefaultFlushInterval = 50 * time.Millisecond

// Accumulator buffers streamed content and reasoning text and publishes
// snapshots at a bounded rate. Chunks append synchronously; a timer armed on
// the first chunk after a flush publishes the buffers. With no incoming
// chunks there are no flushes.
type Accumulator struct {
	mu        sync.Mutex
	content   strings.Builder
	reasoning strings.Builder
	interval  time.Duration
	timer     *time.Timer
	armed     bool
	closed    bool
	onFlush   func(content, reasoning string)
}

// NewAccumulator creates an accumulator publishing through onFlush. onFlush
// runs on the timer goroutine and must not call back into the accumulator.
func NewAccumulator(interval time.Duration, onFlush func(content, reasoning string)) *Accumulator {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Accumulator{
		interval: interval,
		onFlush:  onFlush,
	}
}

// AppendContent adds one answer-text chunk.
func (a *Accumulator) AppendContent(chunk string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.content.WriteString(chunk)
	a.armLocked()
}

// AppendReasoning adds one thinking-text chunk.
func (a *Accumulator) AppendReasoning(chunk string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.reasoning.WriteString(chunk)
	a.armLocked()
}

func (a *Accumulator) armLocked() {
	if a.armed {
		return
	}
	a.armed = true
	if a.timer == nil {
		a.timer = time.AfterFunc(a.interval, a.fire)
	} else {
		a.timer.Reset(a.interval)
	}
}

func (a *Accumulator) fire() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.armed = false
	content := a.content.String()
	reasoning := a.reasoning.String()
	a.mu.Unlock()

	metrics.AccumulatorFlushesTotal.Inc()
	a.onFlush(content, reasoning)
}

// Drain returns the buffered text and clears both buffers without invoking
// the flush callback. Used when a terminal event makes the server content
// authoritative and the local buffer is only needed one last time.
func (a *Accumulator) Drain() (content, reasoning string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	content = a.content.String()
	reasoning = a.reasoning.String()
	a.content.Reset()
	a.reasoning.Reset()
	a.disarmLocked()
	return content, reasoning
}

// TakeReasoning returns the buffered reasoning text and clears that buffer,
// leaving content untouched. A reasoning phase owns only its own chunks, so
// the buffer restarts whenever a phase closes.
func (a *Accumulator) TakeReasoning() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.reasoning.String()
	a.reasoning.Reset()
	return r
}

// Reset discards buffered text and any pending flush.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.content.Reset()
	a.reasoning.Reset()
	a.disarmLocked()
}

// Close permanently stops the accumulator. Pending chunks are discarded.
func (a *Accumulator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.disarmLocked()
}

func (a *Accumulator) disarmLocked() {
	a.armed = false
	if a.timer != nil {
		a.timer.Stop()
	}
}
