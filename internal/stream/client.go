// Package stream implements the push-connection client for assistant
// exchanges. One connection covers exactly one exchange: it is opened when a
// response is requested and closed by the terminal event or by the caller.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/adapters/metrics"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/adapters/retry"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/ports"
)

const eventBufferSize = 64

// Client opens SSE connections against the backend's streaming endpoint.
type Client struct {
	baseURL     string
	authToken   string
	httpClient  *http.Client
	retryPolicy retry.Policy
	tracer      trace.Tracer
}

// NewClient creates a stream client. No timeout is set on the HTTP client:
// an exchange legitimately stays open for as long as the model generates.
// Cancellation happens through the request context instead.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		authToken:   authToken,
		httpClient:  &http.Client{},
		retryPolicy: retry.StreamPolicy(),
		tracer:      otel.Tracer("t3chat/stream"),
	}
}

var _ ports.StreamClient = (*Client)(nil)

type streamRequestBody struct {
	MessageContent        string   `json:"message_content,omitempty"`
	Model                 string   `json:"model,omitempty"`
	ExistingUserMessageID string   `json:"existing_user_message_id,omitempty"`
	UseTools              bool     `json:"use_tools"`
	EnabledTools          []string `json:"enabled_tools,omitempty"`
	Reasoning             bool     `json:"reasoning"`
}

// OpenStream starts an exchange. The initial connection is retried per the
// stream policy; once the stream is open it is never retried, a mid-exchange
// drop surfaces as a connection_error event instead.
func (c *Client) OpenStream(ctx context.Context, req *ports.StreamRequest) (ports.Stream, error) {
	body, err := json.Marshal(&streamRequestBody{
		MessageContent:        req.MessageContent,
		Model:                 req.Model,
		ExistingUserMessageID: req.ExistingUserMessageID,
		UseTools:              req.UseTools,
		EnabledTools:          req.EnabledTools,
		Reasoning:             req.ReasoningEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "stream.open",
		trace.WithAttributes(
			attribute.String("conversation.id", req.ConversationID),
			attribute.String("model", req.Model),
			attribute.Bool("tools.enabled", req.UseTools),
		))

	streamCtx, cancel := context.WithCancel(ctx)

	var resp *http.Response
	var statusErr error
	err = retry.Do(ctx, c.retryPolicy, func() (int, error) {
		url := fmt.Sprintf("%s/conversations/%s/messages/stream", c.baseURL, req.ConversationID)
		httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		if c.authToken != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
		}

		resp, err = c.httpClient.Do(httpReq)
		if err != nil {
			return 0, err
		}
		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			// Returned through the status code so the policy decides whether
			// to retry; the body is kept for the final error message.
			statusErr = fmt.Errorf("stream rejected: %s - %s", resp.Status, strings.TrimSpace(string(respBody)))
			return resp.StatusCode, nil
		}
		statusErr = nil
		return resp.StatusCode, nil
	})
	if err != nil {
		if statusErr != nil {
			err = statusErr
		}
		cancel()
		span.End()
		metrics.StreamFailuresTotal.WithLabelValues("connect").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrAPIUnavailable, err)
	}

	s := &sseStream{
		events: make(chan *ports.StreamEvent, eventBufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	metrics.StreamsActive.Inc()
	go s.readLoop(streamCtx, resp.Body, span)
	return s, nil
}

// sseStream reads one server-sent-event connection and feeds the event
// channel until a terminal event, a transport drop, or Close.
type sseStream struct {
	events    chan *ports.StreamEvent
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

func (s *sseStream) Events() <-chan *ports.StreamEvent {
	return s.events
}

// Close stops delivery and tears the connection down. Server-side work is
// not cancelled beyond the transport closing. Idempotent.
func (s *sseStream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
}

// deliver sends one event unless the stream was closed first.
func (s *sseStream) deliver(ev *ports.StreamEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *sseStream) readLoop(ctx context.Context, body io.ReadCloser, span trace.Span) {
	start := time.Now()
	terminal := false

	defer func() {
		body.Close()
		close(s.events)
		s.cancel()
		metrics.StreamsActive.Dec()
		span.SetAttributes(attribute.Int64("stream.duration_ms", time.Since(start).Milliseconds()))
		span.End()
	}()

	reader := bufio.NewReader(body)
	var eventName string
	var data bytes.Buffer

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// Transport drop. A dangling frame is discarded; if no terminal
			// event arrived the exchange is reported as interrupted, exactly
			// once, unless the caller closed us deliberately.
			if terminal {
				return
			}
			select {
			case <-s.done:
				return
			default:
			}
			if ctx.Err() != nil {
				return
			}

			if err == io.EOF {
				err = domain.ErrStreamInterrupted
			}
			log.Printf("[stream] connection dropped mid-exchange: %v", err)
			metrics.StreamFailuresTotal.WithLabelValues("connection").Inc()
			s.deliver(&ports.StreamEvent{
				Kind: ports.StreamEventConnectionError,
				Err:  err,
			})
			return
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			// Blank line dispatches the buffered frame.
			if eventName == "" {
				continue
			}
			ev, err := decodeEvent(eventName, data.Bytes())
			eventName = ""
			data.Reset()
			if err != nil {
				log.Printf("[stream] dropping malformed event: %v", err)
				continue
			}
			if ev == nil {
				continue
			}

			metrics.StreamEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
			if ev.ContentChunk != nil {
				metrics.StreamChunkBytes.Add(float64(len(ev.ContentChunk.Chunk)))
			}
			if ev.ReasoningChunk != nil {
				metrics.StreamChunkBytes.Add(float64(len(ev.ReasoningChunk.Chunk)))
			}

			if terminal && !isTitle(ev.Kind) {
				// Only title events follow a completed exchange; the backend
				// reports title-generation failures as error events, which
				// must not disturb the settled exchange.
				continue
			}
			if !s.deliver(ev) {
				return
			}
			if isTerminal(ev.Kind) {
				terminal = true
				if ev.Kind == ports.StreamEventError {
					metrics.StreamFailuresTotal.WithLabelValues("server").Inc()
					return
				}
				// The backend generates the conversation title after the
				// completion event; keep reading until it closes the
				// connection.
			}
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Comments and unknown fields are ignored per the SSE format.
		}
	}
}
