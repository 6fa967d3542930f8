// Package devserver is a self-contained stand-in for the chat backend: an
// in-memory REST surface plus a scripted streaming endpoint. It exists for
// local development and integration tests, not production use.
package devserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain/models"
)

// ScriptedTool is one tool invocation replayed during a scripted exchange.
type ScriptedTool struct {
	Name      string
	Arguments map[string]any
	Result    string
	Status    string
}

// Script drives one assistant exchange. Zero-value fields are skipped.
type Script struct {
	Reasoning    []string
	Chunks       []string
	Tools        []ScriptedTool
	Title        string
	FinalContent string
	// ErrorMessage, when set, replaces the completion event with an error
	// event after the chunks.
	ErrorMessage string
	// ChunkDelay spaces out chunk emission to exercise client batching.
	ChunkDelay time.Duration
	// DropMidStream closes the connection without a terminal event.
	DropMidStream bool
}

type storedMessage struct {
	ID             string    `json:"id" msgpack:"id"`
	ConversationID string    `json:"conversation_id" msgpack:"conversation_id"`
	SequenceNumber int       `json:"sequence_number" msgpack:"sequence_number"`
	Role           string    `json:"role" msgpack:"role"`
	Content        string    `json:"content" msgpack:"content"`
	ModelUsed      string    `json:"model_used,omitempty" msgpack:"model_used,omitempty"`
	Status         string    `json:"status" msgpack:"status"`
	CreatedAt      time.Time `json:"-" msgpack:"-"`
}

type storedDocument struct {
	ID        string `json:"id" msgpack:"id"`
	MessageID string `json:"message_id" msgpack:"message_id"`
	Filename  string `json:"filename" msgpack:"filename"`
	FileType  string `json:"file_type" msgpack:"file_type"`
	FileSize  int64  `json:"file_size" msgpack:"file_size"`
	IsImage   bool   `json:"is_image" msgpack:"is_image"`
	CreatedAt string `json:"created_at" msgpack:"created_at"`
}

// wireMessage adds the serialized created_at field.
type wireMessage struct {
	storedMessage
	CreatedAt string `json:"created_at" msgpack:"created_at"`
}

func (m *storedMessage) wire() *wireMessage {
	return &wireMessage{storedMessage: *m, CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano)}
}

// Server is the scripted backend. Scripts are queued per conversation and
// consumed one per streaming exchange; with no script queued a default
// two-chunk reply is played.
type Server struct {
	router chi.Router

	mu            sync.Mutex
	nextID        int
	conversations map[string]*models.Conversation
	messages      map[string][]*storedMessage
	scripts       map[string][]*Script
}

func New() *Server {
	s := &Server{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*storedMessage),
		scripts:       make(map[string][]*Script),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/conversations", s.handleListConversations)
	r.Post("/conversations/{conversationID}/messages", s.handleCreateMessage)
	r.Get("/conversations/{conversationID}/messages", s.handleListMessages)
	r.Get("/conversations/{conversationID}/messages/{messageID}", s.handleGetMessage)
	r.Post("/conversations/{conversationID}/messages/stream", s.handleStream)
	r.Post("/messages/{messageID}/documents", s.handleUploadDocument)
	r.Handle("/metrics", promhttp.Handler())
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// QueueScript schedules the next streaming exchange for a conversation.
func (s *Server) QueueScript(conversationID string, script *Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[conversationID] = append(s.scripts[conversationID], script)
}

// Seed inserts a completed message directly into the store.
func (s *Server) Seed(conversationID, role, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.appendMessageLocked(conversationID, role, content, "")
	return m.ID
}

func (s *Server) appendMessageLocked(conversationID, role, content, model string) *storedMessage {
	now := time.Now().UTC()
	if conv, ok := s.conversations[conversationID]; ok {
		conv.UpdatedAt = now
		if model != "" {
			conv.CurrentModel = model
		}
	} else {
		s.conversations[conversationID] = &models.Conversation{
			ID:           conversationID,
			CurrentModel: model,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	s.nextID++
	m := &storedMessage{
		ID:             fmt.Sprintf("msg-%d", s.nextID),
		ConversationID: conversationID,
		SequenceNumber: len(s.messages[conversationID]) + 1,
		Role:           role,
		Content:        content,
		ModelUsed:      model,
		Status:         "completed",
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], m)
	return m
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]*models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	respond(w, r, map[string]any{"conversations": out}, http.StatusOK)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	var req struct {
		Content string `json:"content"`
		Model   string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		respondError(w, "content is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	m := s.appendMessageLocked(conversationID, "user", req.Content, req.Model)
	s.mu.Unlock()

	respond(w, r, m.wire(), http.StatusCreated)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			respondError(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	s.mu.Lock()
	all := s.messages[conversationID]
	total := len(all)
	page := all
	if len(page) > limit {
		page = page[len(page)-limit:]
	}
	out := make([]*wireMessage, 0, len(page))
	for _, m := range page {
		out = append(out, m.wire())
	}
	s.mu.Unlock()

	respond(w, r, map[string]any{
		"messages":    out,
		"total_count": total,
		"has_more":    total > limit,
	}, http.StatusOK)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	messageID := chi.URLParam(r, "messageID")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages[conversationID] {
		if m.ID == messageID {
			respond(w, r, m.wire(), http.StatusOK)
			return
		}
	}
	respondError(w, "message not found", http.StatusNotFound)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	if err := r.ParseMultipartForm(models.MaxDocumentSize); err != nil {
		respondError(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := models.ValidateDocumentUpload(header.Filename, header.Size); err != nil {
		respondError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	s.nextID++
	doc := &storedDocument{
		ID:        fmt.Sprintf("doc-%d", s.nextID),
		MessageID: messageID,
		Filename:  header.Filename,
		FileType:  header.Header.Get("Content-Type"),
		FileSize:  header.Size,
		IsImage:   strings.HasPrefix(header.Header.Get("Content-Type"), "image/"),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.mu.Unlock()

	respond(w, r, doc, http.StatusCreated)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	var req struct {
		MessageContent        string `json:"message_content"`
		Model                 string `json:"model"`
		ExistingUserMessageID string `json:"existing_user_message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	script := s.dequeueScriptLocked(conversationID)
	var userMsg *storedMessage
	if req.ExistingUserMessageID != "" {
		for _, m := range s.messages[conversationID] {
			if m.ID == req.ExistingUserMessageID {
				userMsg = m
				break
			}
		}
	}
	if userMsg == nil && req.MessageContent != "" {
		userMsg = s.appendMessageLocked(conversationID, "user", req.MessageContent, req.Model)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	emit := func(event string, payload any) {
		data, _ := json.Marshal(payload)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	if userMsg != nil {
		emit("user_message", map[string]any{
			"id": userMsg.ID, "conversation_id": conversationID,
			"sequence_number": userMsg.SequenceNumber, "role": "user",
			"content": userMsg.Content, "created_at": userMsg.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	emit("assistant_message_start", map[string]any{
		"conversation_id": conversationID, "role": "assistant",
		"model_used": req.Model, "status": "streaming",
	})

	for _, chunk := range script.Reasoning {
		emit("reasoning_chunk", map[string]any{"chunk": chunk, "content_type": "thinking"})
		s.pace(script)
	}

	var content strings.Builder
	for _, tool := range script.Tools {
		status := tool.Status
		if status == "" {
			status = "completed"
		}
		emit("tool_call", map[string]any{"name": tool.Name, "arguments": tool.Arguments, "status": "executing"})
		s.pace(script)
		emit("tool_result", map[string]any{"name": tool.Name, "result": tool.Result, "status": status})
	}

	for _, chunk := range script.Chunks {
		content.WriteString(chunk)
		emit("content_chunk", map[string]any{"chunk": chunk, "content_length": content.Len()})
		s.pace(script)
	}

	if script.DropMidStream {
		log.Printf("[devserver] dropping stream for %s mid-exchange", conversationID)
		return
	}

	if script.ErrorMessage != "" {
		emit("error", map[string]any{"message": script.ErrorMessage, "error_type": "scripted"})
		return
	}

	final := script.FinalContent
	if final == "" {
		final = content.String()
	}
	s.mu.Lock()
	assistant := s.appendMessageLocked(conversationID, "assistant", final, req.Model)
	s.mu.Unlock()

	emit("assistant_message_complete", map[string]any{
		"id": assistant.ID, "content": final, "status": "completed",
		"model_used": req.Model, "created_at": assistant.CreatedAt.UTC().Format(time.RFC3339Nano),
	})

	// Title generation runs after the response is complete, on the same
	// connection.
	if script.Title != "" {
		emit("title_generation_started", map[string]any{"conversation_id": conversationID})
		s.mu.Lock()
		if conv, ok := s.conversations[conversationID]; ok {
			conv.Title = script.Title
			conv.UpdatedAt = time.Now().UTC()
		}
		s.mu.Unlock()
		emit("title_complete", map[string]any{"conversation_id": conversationID, "title": script.Title})
	}
}

func (s *Server) dequeueScriptLocked(conversationID string) *Script {
	queue := s.scripts[conversationID]
	if len(queue) == 0 {
		return &Script{Chunks: []string{"Hello! ", "This is a scripted reply."}}
	}
	script := queue[0]
	s.scripts[conversationID] = queue[1:]
	return script
}

func (s *Server) pace(script *Script) {
	if script.ChunkDelay > 0 {
		time.Sleep(script.ChunkDelay)
	}
}

// respond negotiates msgpack against JSON from the Accept header.
func respond(w http.ResponseWriter, r *http.Request, payload any, status int) {
	if strings.Contains(r.Header.Get("Accept"), "application/msgpack") {
		data, err := msgpack.Marshal(payload)
		if err == nil {
			w.Header().Set("Content-Type", "application/msgpack")
			w.WriteHeader(status)
			w.Write(data)
			return
		}
		log.Printf("[devserver] msgpack encode failed, falling back to JSON: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[devserver] failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}
