// Package chat holds the conversation reconciliation engine: the session
// state machine that turns user intent into REST calls plus a stream
// subscription and folds stream events into ordered message, tool-call, and
// reasoning records, the chunk accumulator that bounds update rate, and the
// timeline builder that merges everything for display.
package chat

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/adapters/metrics"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain/models"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/ports"
)

// Listener receives session output. Methods are called from the stream
// consumer goroutine or the flush timer and must not call back into the
// session synchronously.
type Listener interface {
	// OnStateChanged signals that messages, tool calls, or reasoning phases
	// changed; the listener should re-read the session's snapshot.
	OnStateChanged()
	// OnTitleGenerating signals the server started generating a title.
	OnTitleGenerating(conversationID string)
	// OnTitleUpdate forwards a new conversation title to whoever owns
	// conversation metadata.
	OnTitleUpdate(conversationID, title string)
	// OnNotice surfaces a non-fatal condition (partial upload failure,
	// nothing to regenerate).
	OnNotice(message string)
	// OnError surfaces a failed exchange as a human-readable string.
	OnError(message string)
}

// Options tunes a session. Zero values fall back to sensible defaults.
type Options struct {
	DefaultModel      string
	FlushInterval     time.Duration
	HistoryLimit      int
	UploadConcurrency int
}

func (o *Options) fillDefaults() {
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
	if o.UploadConcurrency <= 0 {
		o.UploadConcurrency = 4
	}
}

// Attachment is one file queued for upload alongside a user message.
type Attachment struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// SendOptions modifies one SendMessage call.
type SendOptions struct {
	Model            string
	Attachments      []Attachment
	UseTools         bool
	EnabledTools     []string
	ReasoningEnabled bool
}

// Session owns the in-memory conversation state for the currently open
// conversation: the message collection, tool-call records, and reasoning
// phases. All mutation happens under one mutex, driven either by public
// operations or by the single active stream's consumer goroutine.
type Session struct {
	api      ports.ConversationAPI
	streams  ports.StreamClient
	ids      ports.IDGenerator
	listener Listener
	opts     Options

	mu             sync.Mutex
	conversationID string
	messages       []*models.Message
	toolCalls      []*models.ToolCall
	phases         []*models.ReasoningPhase
	currentPhase   *models.ReasoningPhase

	streamActive bool
	activeStream ports.Stream
	generation   uint64
	acc          *Accumulator
	// reasoningDone holds the text of phases already closed this exchange;
	// the accumulator buffer only ever holds the open phase's chunks.
	reasoningDone string
	lastError     string
}

// NewSession wires a reconciler over the REST and stream clients. The
// session starts with no conversation selected.
func NewSession(api ports.ConversationAPI, streams ports.StreamClient, ids ports.IDGenerator, listener Listener, opts Options) *Session {
	opts.fillDefaults()
	s := &Session{
		api:      api,
		streams:  streams,
		ids:      ids,
		listener: listener,
		opts:     opts,
	}
	s.acc = NewAccumulator(opts.FlushInterval, s.onFlush)
	return s
}

// SetConversation switches the active conversation: any open stream is torn
// down, transient state is discarded, and history is reloaded over REST.
func (s *Session) SetConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.teardownLocked()
	s.conversationID = conversationID
	s.messages = nil
	s.toolCalls = nil
	s.phases = nil
	s.lastError = ""
	s.mu.Unlock()

	if conversationID == "" {
		s.listener.OnStateChanged()
		return nil
	}
	return s.LoadMessages(ctx)
}

// LoadMessages replaces the in-memory collection with a fresh REST fetch.
// All transient streaming, tool, and reasoning state is cleared.
func (s *Session) LoadMessages(ctx context.Context) error {
	s.mu.Lock()
	conversationID := s.conversationID
	s.mu.Unlock()
	if conversationID == "" {
		return domain.ErrNoConversation
	}

	list, err := s.api.ListMessages(ctx, conversationID, s.opts.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	s.mu.Lock()
	s.teardownLocked()
	s.messages = list.Messages
	s.toolCalls = nil
	s.phases = nil
	s.currentPhase = nil
	s.mu.Unlock()

	log.Printf("[chat] loaded %d/%d messages for conversation %s", len(list.Messages), list.TotalCount, conversationID)
	s.listener.OnStateChanged()
	return nil
}

// SendMessage creates the user turn over REST, uploads attachments, and
// opens the assistant stream. It is rejected while a stream is active and
// when there is nothing to send.
func (s *Session) SendMessage(ctx context.Context, content string, opts SendOptions) error {
	if content == "" && len(opts.Attachments) == 0 {
		return domain.ErrEmptyMessage
	}

	s.mu.Lock()
	if s.conversationID == "" {
		s.mu.Unlock()
		return domain.ErrNoConversation
	}
	if s.streamActive {
		s.mu.Unlock()
		return domain.ErrStreamActive
	}
	conversationID := s.conversationID
	s.mu.Unlock()

	model := opts.Model
	if model == "" {
		model = s.opts.DefaultModel
	}

	userMsg, err := s.api.CreateMessage(ctx, conversationID, content, model)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	s.mu.Lock()
	s.appendMessageLocked(userMsg)
	s.mu.Unlock()
	metrics.MessagesTotal.WithLabelValues(string(models.MessageRoleUser)).Inc()
	s.listener.OnStateChanged()

	if len(opts.Attachments) > 0 {
		if failed := s.uploadAttachments(ctx, userMsg, opts.Attachments); failed > 0 {
			// Partial upload failure is non-fatal: the message was sent and
			// the exchange still proceeds.
			s.listener.OnNotice(fmt.Sprintf("%d of %d attachments failed to upload", failed, len(opts.Attachments)))
		}
		s.listener.OnStateChanged()
	}

	return s.openStream(ctx, &ports.StreamRequest{
		ConversationID:        conversationID,
		Model:                 model,
		ExistingUserMessageID: userMsg.ID,
		UseTools:              opts.UseTools,
		EnabledTools:          opts.EnabledTools,
		ReasoningEnabled:      opts.ReasoningEnabled,
	})
}

// GenerateResponse re-runs the assistant turn from the most recent user
// message, for retry and regenerate flows.
func (s *Session) GenerateResponse(ctx context.Context, opts SendOptions) error {
	s.mu.Lock()
	if s.conversationID == "" {
		s.mu.Unlock()
		return domain.ErrNoConversation
	}
	if s.streamActive {
		s.mu.Unlock()
		return domain.ErrStreamActive
	}
	var lastUser *models.Message
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].IsFromUser() {
			lastUser = s.messages[i]
			break
		}
	}
	conversationID := s.conversationID
	s.mu.Unlock()

	if lastUser == nil {
		s.listener.OnNotice("nothing to regenerate: the conversation has no user message")
		return domain.ErrNoUserMessage
	}

	model := opts.Model
	if model == "" {
		model = s.opts.DefaultModel
	}
	return s.openStream(ctx, &ports.StreamRequest{
		ConversationID:        conversationID,
		Model:                 model,
		ExistingUserMessageID: lastUser.ID,
		UseTools:              opts.UseTools,
		EnabledTools:          opts.EnabledTools,
		ReasoningEnabled:      opts.ReasoningEnabled,
	})
}

// Close tears the session down. Safe to call with a stream in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	s.acc.Close()
}

// Snapshot returns copies of the current collections plus the merged
// timeline. The returned slices are owned by the caller; the records they
// point to must be treated as read-only.
func (s *Session) Snapshot() ([]*models.Message, []TimelineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := append([]*models.Message(nil), s.messages...)
	tools := append([]*models.ToolCall(nil), s.toolCalls...)
	phases := append([]*models.ReasoningPhase(nil), s.phases...)

	activeID := ""
	if s.streamActive {
		activeID = models.StreamingPlaceholderID
	}
	return messages, BuildTimeline(messages, tools, phases, activeID)
}

// LastError returns the error string of the most recent failed exchange, or
// "" when the last exchange succeeded.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// StreamActive reports whether an exchange is currently in flight.
func (s *Session) StreamActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamActive
}

func (s *Session) uploadAttachments(ctx context.Context, msg *models.Message, attachments []Attachment) (failed int) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.opts.UploadConcurrency)
	results := make([]*models.Document, len(attachments))
	errs := make([]error, len(attachments))

	for i, att := range attachments {
		wg.Add(1)
		go func(i int, att Attachment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			doc, err := s.api.UploadDocument(ctx, msg.ID, att.Filename, att.Size, att.Reader)
			if err != nil {
				log.Printf("[chat] upload of %s failed: %v", att.Filename, err)
				errs[i] = err
				return
			}
			results[i] = doc
		}(i, att)
	}
	wg.Wait()

	s.mu.Lock()
	for i, doc := range results {
		if doc != nil {
			msg.AttachDocument(doc)
		} else if errs[i] != nil {
			failed++
		}
	}
	s.mu.Unlock()
	return failed
}

func (s *Session) openStream(ctx context.Context, req *ports.StreamRequest) error {
	s.mu.Lock()
	if s.streamActive {
		s.mu.Unlock()
		return domain.ErrStreamActive
	}
	s.streamActive = true
	s.generation++
	gen := s.generation
	s.lastError = ""
	s.acc.Reset()
	s.reasoningDone = ""
	s.mu.Unlock()

	stream, err := s.streams.OpenStream(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.streamActive = false
		s.lastError = err.Error()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if gen != s.generation {
		// The conversation switched while connecting; this exchange is
		// already abandoned.
		s.mu.Unlock()
		stream.Close()
		return nil
	}
	s.activeStream = stream
	s.mu.Unlock()

	go s.consume(stream, gen)
	return nil
}

// consume folds one stream's events into session state, strictly in arrival
// order. It exits when the channel closes.
func (s *Session) consume(stream ports.Stream, gen uint64) {
	terminal := false
	for ev := range stream.Events() {
		if s.fold(ev, gen) {
			terminal = true
		}
	}

	if terminal {
		s.mu.Lock()
		if gen == s.generation {
			s.closeStreamLocked()
		}
		s.mu.Unlock()
		return
	}
	// The channel closed without a terminal event: either the conversation
	// switched (the generation moved on) or the connection dropped silently.
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.failExchange(gen, domain.ErrStreamInterrupted.Error())
}

// fold applies one event. Returns true for terminal events.
func (s *Session) fold(ev *ports.StreamEvent, gen uint64) bool {
	s.mu.Lock()
	if gen != s.generation {
		// Stale event from an abandoned exchange.
		s.mu.Unlock()
		return false
	}

	switch ev.Kind {
	case ports.StreamEventUserMessage:
		s.foldUserMessageLocked(ev.UserMessage)
		s.mu.Unlock()
		s.listener.OnStateChanged()

	case ports.StreamEventAssistantStart:
		ts := s.nextTimestampLocked()
		s.messages = append(s.messages, models.NewStreamingPlaceholder(s.conversationID, ts))
		s.mu.Unlock()
		s.listener.OnStateChanged()

	case ports.StreamEventContentChunk:
		s.closePhaseLocked()
		s.mu.Unlock()
		s.acc.AppendContent(ev.ContentChunk.Chunk)

	case ports.StreamEventReasoningChunk:
		if s.currentPhase == nil {
			s.currentPhase = models.NewReasoningPhase(s.ids.GenerateReasoningPhaseID(), nowMilli())
			s.phases = append(s.phases, s.currentPhase)
		}
		s.mu.Unlock()
		s.acc.AppendReasoning(ev.ReasoningChunk.Chunk)

	case ports.StreamEventToolCall:
		s.closePhaseLocked()
		tc := models.NewToolCall(s.ids.GenerateToolCallID(), ev.ToolCall.Name, ev.ToolCall.Arguments, nowMilli())
		s.toolCalls = append(s.toolCalls, tc)
		s.mu.Unlock()
		s.listener.OnStateChanged()

	case ports.StreamEventToolResult:
		s.foldToolResultLocked(ev.ToolResult)
		s.mu.Unlock()
		s.listener.OnStateChanged()

	case ports.StreamEventTitleGenerationStarted:
		conversationID := s.conversationID
		s.mu.Unlock()
		s.listener.OnTitleGenerating(conversationID)

	case ports.StreamEventTitleComplete:
		conversationID := s.conversationID
		s.mu.Unlock()
		s.listener.OnTitleUpdate(conversationID, ev.Title.Title)

	case ports.StreamEventAssistantComplete:
		s.foldCompleteLocked(ev.AssistantComplete)
		s.mu.Unlock()
		metrics.MessagesTotal.WithLabelValues(string(models.MessageRoleAssistant)).Inc()
		s.listener.OnStateChanged()
		return true

	case ports.StreamEventError:
		s.mu.Unlock()
		s.failExchange(gen, ev.Error.Message)
		return true

	case ports.StreamEventConnectionError:
		s.mu.Unlock()
		msg := domain.ErrStreamInterrupted.Error()
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		s.failExchange(gen, msg)
		return true

	default:
		s.mu.Unlock()
	}
	return false
}

// foldUserMessageLocked reconciles the server's echo of the user turn with
// the optimistically inserted record.
func (s *Session) foldUserMessageLocked(p *ports.UserMessagePayload) {
	for _, m := range s.messages {
		if m.ID == p.ID {
			m.Content = p.Content
			m.SequenceNumber = p.SequenceNumber
			return
		}
	}
	// Unknown ID: the turn was created server-side (e.g. a retry flow from
	// another client). Insert it past the latest message.
	m := models.NewUserMessage(p.ID, p.ConversationID, p.Content)
	if t := models.ParseWireTime(p.CreatedAt); !t.IsZero() {
		m.CreatedAt = t
	}
	m.SequenceNumber = p.SequenceNumber
	s.appendMessageLocked(m)
}

func (s *Session) foldToolResultLocked(p *ports.ToolResultPayload) {
	// Pair with the most recent executing call of the same name; the wire
	// carries no call identifier.
	for i := len(s.toolCalls) - 1; i >= 0; i-- {
		tc := s.toolCalls[i]
		if tc.Name != p.Name || !tc.IsExecuting() {
			continue
		}
		if p.Status == "failed" || p.Status == "error" {
			tc.Fail(p.Result, nowMilli())
		} else {
			tc.Complete(p.Result, nowMilli())
		}
		metrics.ToolCallsTotal.WithLabelValues(string(tc.Status)).Inc()
		return
	}
	log.Printf("[chat] tool result for %q with no executing call", p.Name)
}

// foldCompleteLocked finalizes the placeholder with the server-confirmed
// record in one update. The server's content supersedes the accumulator.
func (s *Session) foldCompleteLocked(p *ports.AssistantCompletePayload) {
	s.closePhaseLocked()
	s.acc.Drain()

	placeholder := s.placeholderLocked()
	if placeholder == nil {
		// Completion without a preceding start; rebuild the turn so the
		// confirmed content is not lost.
		placeholder = models.NewStreamingPlaceholder(s.conversationID, s.nextTimestampLocked())
		s.messages = append(s.messages, placeholder)
	}
	placeholder.Reasoning = s.reasoningDone
	placeholder.Finalize(p.ID, p.Content, p.ModelUsed, models.ParseWireTime(p.CreatedAt))

	// The stream stays open: the backend generates the conversation title
	// after the completion event, so title updates arrive on this same
	// connection. The consumer closes it when the channel drains.
	s.streamActive = false
}

// failExchange recovers to a clean state after an error or connection drop:
// the placeholder is removed, executing tool calls are failed, buffers are
// discarded, and a single error string is surfaced.
func (s *Session) failExchange(gen uint64, message string) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}

	s.removePlaceholderLocked()
	endTime := nowMilli()
	for _, tc := range s.toolCalls {
		if tc.IsExecuting() {
			tc.Fail("exchange aborted", endTime)
		}
	}
	s.closePhaseLocked()
	s.acc.Reset()
	s.reasoningDone = ""
	s.streamActive = false
	s.closeStreamLocked()
	s.lastError = message
	s.mu.Unlock()

	log.Printf("[chat] exchange failed: %s", message)
	s.listener.OnError(message)
	s.listener.OnStateChanged()
}

// onFlush publishes accumulator snapshots into the placeholder record. Runs
// on the flush timer goroutine.
func (s *Session) onFlush(content, reasoning string) {
	s.mu.Lock()
	placeholder := s.placeholderLocked()
	if placeholder == nil || !s.streamActive {
		// The exchange ended between arming and firing; the terminal event
		// already settled the final content.
		s.mu.Unlock()
		return
	}
	placeholder.Content = content
	if s.currentPhase != nil {
		s.currentPhase.Content = reasoning
	}
	placeholder.Reasoning = s.reasoningDone + reasoning
	s.mu.Unlock()

	s.listener.OnStateChanged()
}

func (s *Session) placeholderLocked() *models.Message {
	for _, m := range s.messages {
		if m.IsPlaceholder() {
			return m
		}
	}
	return nil
}

func (s *Session) removePlaceholderLocked() {
	for i, m := range s.messages {
		if m.IsPlaceholder() {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// appendMessageLocked inserts a message keeping the timestamp order
// monotonic even when the server clock lags local records.
func (s *Session) appendMessageLocked(m *models.Message) {
	if n := len(s.messages); n > 0 && m.Timestamp <= s.messages[n-1].Timestamp {
		m.Timestamp = s.messages[n-1].Timestamp + 1
	}
	s.messages = append(s.messages, m)
}

// nextTimestampLocked picks a timestamp strictly after every existing
// message, so placeholder insertion is stable under clock skew.
func (s *Session) nextTimestampLocked() int64 {
	ts := nowMilli()
	for _, m := range s.messages {
		if m.Timestamp >= ts {
			ts = m.Timestamp + 1
		}
	}
	return ts
}

func (s *Session) closePhaseLocked() {
	r := s.acc.TakeReasoning()
	if s.currentPhase != nil && s.currentPhase.IsOpen() {
		// The flush timer may not have fired since the last chunk; settle
		// the full phase text before closing.
		if r != "" {
			s.currentPhase.Content = r
		}
		s.currentPhase.Close(nowMilli())
	}
	s.reasoningDone += r
	s.currentPhase = nil
}

func (s *Session) closeStreamLocked() {
	if s.activeStream != nil {
		s.activeStream.Close()
		s.activeStream = nil
	}
}

// teardownLocked abandons any in-flight exchange immediately and totally.
func (s *Session) teardownLocked() {
	s.generation++
	s.streamActive = false
	s.closeStreamLocked()
	s.acc.Reset()
	s.removePlaceholderLocked()
	s.closePhaseLocked()
	s.reasoningDone = ""
}

func nowMilli() int64 {
	return time.Now().UnixMilli()
}
