// Package api implements the REST client for the chat backend: message
// creation and history, and document upload. The push stream has its own
// client in internal/stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/adapters/metrics"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/adapters/retry"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain/models"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/ports"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

// Client talks to the backend's REST surface.
type Client struct {
	baseURL     string
	authToken   string
	useMsgpack  bool
	httpClient  *http.Client
	retryPolicy retry.Policy
}

// NewClient creates a REST client. When useMsgpack is set, responses are
// negotiated as msgpack; the backend falls back to JSON if it cannot comply.
func NewClient(baseURL, authToken string, timeout time.Duration, useMsgpack bool) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authToken:  authToken,
		useMsgpack: useMsgpack,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryPolicy: retry.APIPolicy(),
	}
}

var _ ports.ConversationAPI = (*Client)(nil)

// messageRecord is the wire shape of a message on the REST surface.
type messageRecord struct {
	ID             string `json:"id" msgpack:"id"`
	ConversationID string `json:"conversation_id" msgpack:"conversation_id"`
	SequenceNumber int    `json:"sequence_number,omitempty" msgpack:"sequence_number,omitempty"`
	Role           string `json:"role" msgpack:"role"`
	Content        string `json:"content" msgpack:"content"`
	ModelUsed      string `json:"model_used,omitempty" msgpack:"model_used,omitempty"`
	Status         string `json:"status,omitempty" msgpack:"status,omitempty"`
	CreatedAt      string `json:"created_at" msgpack:"created_at"`
}

type messageListRecord struct {
	Messages   []*messageRecord `json:"messages" msgpack:"messages"`
	TotalCount int              `json:"total_count" msgpack:"total_count"`
	HasMore    bool             `json:"has_more" msgpack:"has_more"`
	NextCursor string           `json:"next_cursor,omitempty" msgpack:"next_cursor,omitempty"`
}

type conversationRecord struct {
	ID           string `json:"id" msgpack:"id"`
	Title        string `json:"title,omitempty" msgpack:"title,omitempty"`
	CurrentModel string `json:"current_model,omitempty" msgpack:"current_model,omitempty"`
	CreatedAt    string `json:"created_at" msgpack:"created_at"`
	UpdatedAt    string `json:"updated_at" msgpack:"updated_at"`
}

type documentRecord struct {
	ID        string `json:"id" msgpack:"id"`
	MessageID string `json:"message_id" msgpack:"message_id"`
	Filename  string `json:"filename" msgpack:"filename"`
	FileType  string `json:"file_type" msgpack:"file_type"`
	FileSize  int64  `json:"file_size" msgpack:"file_size"`
	IsImage   bool   `json:"is_image" msgpack:"is_image"`
	CreatedAt string `json:"created_at" msgpack:"created_at"`
}

func (r *messageRecord) toModel() *models.Message {
	createdAt := models.ParseWireTime(r.CreatedAt)
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	status := models.MessageStatus(r.Status)
	if status == "" {
		status = models.MessageStatusCompleted
	}
	return &models.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SequenceNumber: r.SequenceNumber,
		Role:           models.MessageRole(r.Role),
		Content:        r.Content,
		ModelUsed:      r.ModelUsed,
		Status:         status,
		CreatedAt:      createdAt,
		Timestamp:      createdAt.UnixMilli(),
	}
}

func (r *documentRecord) toModel() *models.Document {
	return &models.Document{
		ID:        r.ID,
		MessageID: r.MessageID,
		Filename:  r.Filename,
		FileType:  r.FileType,
		FileSize:  r.FileSize,
		IsImage:   r.IsImage,
		CreatedAt: models.ParseWireTime(r.CreatedAt),
	}
}

// CreateMessage persists a user turn via POST /conversations/{id}/messages.
func (c *Client) CreateMessage(ctx context.Context, conversationID, content, model string) (*models.Message, error) {
	body := map[string]any{"content": content}
	if model != "" {
		body["model"] = model
	}

	var rec messageRecord
	path := fmt.Sprintf("/conversations/%s/messages", conversationID)
	if err := c.doWithRetry(ctx, "create_message", http.MethodPost, path, body, &rec); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return rec.toModel(), nil
}

// GetMessage fetches one message record.
func (c *Client) GetMessage(ctx context.Context, conversationID, messageID string) (*models.Message, error) {
	var rec messageRecord
	path := fmt.Sprintf("/conversations/%s/messages/%s", conversationID, messageID)
	if err := c.doWithRetry(ctx, "get_message", http.MethodGet, path, nil, &rec); err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return rec.toModel(), nil
}

// ListMessages bulk-loads conversation history for a conversation switch.
func (c *Client) ListMessages(ctx context.Context, conversationID string, limit int) (*ports.MessageList, error) {
	var rec messageListRecord
	path := fmt.Sprintf("/conversations/%s/messages?limit=%s", conversationID, strconv.Itoa(limit))
	if err := c.doWithRetry(ctx, "list_messages", http.MethodGet, path, nil, &rec); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := &ports.MessageList{
		Messages:   make([]*models.Message, 0, len(rec.Messages)),
		TotalCount: rec.TotalCount,
		HasMore:    rec.HasMore,
		NextCursor: rec.NextCursor,
	}
	for _, m := range rec.Messages {
		out.Messages = append(out.Messages, m.toModel())
	}
	return out, nil
}

// ListConversations fetches the conversations visible to this client.
// Conversation metadata is backend-owned; the session engine only ever
// references conversations by ID.
func (c *Client) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	var rec struct {
		Conversations []*conversationRecord `json:"conversations" msgpack:"conversations"`
	}
	if err := c.doWithRetry(ctx, "list_conversations", http.MethodGet, "/conversations", nil, &rec); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]*models.Conversation, 0, len(rec.Conversations))
	for _, r := range rec.Conversations {
		out = append(out, &models.Conversation{
			ID:           r.ID,
			Title:        r.Title,
			CurrentModel: r.CurrentModel,
			CreatedAt:    models.ParseWireTime(r.CreatedAt),
			UpdatedAt:    models.ParseWireTime(r.UpdatedAt),
		})
	}
	return out, nil
}

// UploadDocument attaches one file to a message via multipart POST
// /messages/{id}/documents. Uploads are not retried: the caller treats a
// failure as a non-fatal partial-upload condition.
func (c *Client) UploadDocument(ctx context.Context, messageID, filename string, size int64, file io.Reader) (*models.Document, error) {
	if err := models.ValidateDocumentUpload(filename, size); err != nil {
		metrics.DocumentUploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := createFormFile(mw, "file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	path := fmt.Sprintf("/messages/%s/documents", messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setCommonHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APIRequestDuration.WithLabelValues("upload_document").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DocumentUploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		metrics.DocumentUploadsTotal.WithLabelValues("error").Inc()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upload %s: %s - %s", filename, resp.Status, strings.TrimSpace(string(respBody)))
	}

	var rec documentRecord
	if err := c.decodeResponse(resp, &rec); err != nil {
		metrics.DocumentUploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	metrics.DocumentUploadsTotal.WithLabelValues("ok").Inc()
	return rec.toModel(), nil
}

// doWithRetry runs one JSON request with the client's backoff policy and
// decodes a 2xx response into out.
func (c *Client) doWithRetry(ctx context.Context, operation, method, path string, body any, out any) error {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var respBody []byte
	var respContentType string
	var statusErr error

	start := time.Now()
	err := retry.Do(ctx, c.retryPolicy, func() (int, error) {
		var reader io.Reader
		if reqBody != nil {
			reader = bytes.NewReader(reqBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return 0, err
		}
		if reqBody != nil {
			req.Header.Set("Content-Type", contentTypeJSON)
		}
		c.setCommonHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		respContentType = resp.Header.Get("Content-Type")
		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("read response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// Returned through the status code so the policy decides whether
			// to retry; the body is kept for the final error message.
			statusErr = fmt.Errorf("API error: %s - %s", resp.Status, strings.TrimSpace(string(respBody)))
			return resp.StatusCode, nil
		}
		statusErr = nil
		return resp.StatusCode, nil
	})
	metrics.APIRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(operation, "error").Inc()
		if statusErr != nil {
			return statusErr
		}
		return err
	}
	metrics.APIRequestsTotal.WithLabelValues(operation, "ok").Inc()

	if out == nil {
		return nil
	}
	return decodeBody(respContentType, respBody, out)
}

func (c *Client) setCommonHeaders(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if c.useMsgpack {
		req.Header.Set("Accept", contentTypeMsgpack+", "+contentTypeJSON)
	} else {
		req.Header.Set("Accept", contentTypeJSON)
	}
}

func (c *Client) decodeResponse(resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return decodeBody(resp.Header.Get("Content-Type"), body, out)
}

// decodeBody picks the decoder from the response content type. Anything
// that is not msgpack is treated as JSON, which matches the backend's
// fallback behavior.
func decodeBody(contentType string, body []byte, out any) error {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == contentTypeMsgpack {
		if err := msgpack.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode msgpack response: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode JSON response: %w", err)
	}
	return nil
}

// createFormFile is multipart.Writer.CreateFormFile with a content type
// inferred from the file extension instead of octet-stream.
func createFormFile(mw *multipart.Writer, fieldName, filename string) (io.Writer, error) {
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, filepath.Base(filename)))
	h.Set("Content-Type", contentType)
	return mw.CreatePart(h)
}
