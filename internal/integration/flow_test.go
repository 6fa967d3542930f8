package integration

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/adapters/id"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/api"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/chat"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/devserver"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain/models"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/stream"
)

type listener struct {
	mu      sync.Mutex
	titles  []string
	notices []string
	errs    []string
}

func (l *listener) OnStateChanged()          {}
func (l *listener) OnTitleGenerating(string) {}

func (l *listener) OnTitleUpdate(_, title string) {
	l.mu.Lock()
	l.titles = append(l.titles, title)
	l.mu.Unlock()
}

func (l *listener) OnNotice(msg string) {
	l.mu.Lock()
	l.notices = append(l.notices, msg)
	l.mu.Unlock()
}

func (l *listener) OnError(msg string) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}

func setup(t *testing.T) (*chat.Session, *devserver.Server, *listener) {
	t.Helper()
	backend := devserver.New()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	l := &listener{}
	session := chat.NewSession(
		api.NewClient(srv.URL, "", 10*time.Second, false),
		stream.NewClient(srv.URL, ""),
		id.New(),
		l,
		chat.Options{DefaultModel: "test-model", FlushInterval: 5 * time.Millisecond},
	)
	t.Cleanup(session.Close)
	require.NoError(t, session.SetConversation(context.Background(), "conv-1"))
	return session, backend, l
}

func settle(t *testing.T, s *chat.Session) {
	t.Helper()
	require.Eventually(t, func() bool { return !s.StreamActive() },
		5*time.Second, 5*time.Millisecond, "exchange did not finish")
}

func TestFullExchangeOverHTTP(t *testing.T) {
	session, backend, _ := setup(t)
	backend.QueueScript("conv-1", &devserver.Script{
		Chunks:     []string{"Hi", " there"},
		ChunkDelay: 2 * time.Millisecond,
	})

	require.NoError(t, session.SendMessage(context.Background(), "Hello", chat.SendOptions{Model: "m1"}))
	settle(t, session)

	messages, _ := session.Snapshot()
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, models.MessageRoleUser, messages[0].Role)
	assert.Equal(t, "Hi there", messages[1].Content)
	assert.Equal(t, models.MessageStatusCompleted, messages[1].Status)
	assert.NotEqual(t, models.StreamingPlaceholderID, messages[1].ID)
	assert.Empty(t, session.LastError())
}

func TestToolAndReasoningExchangeOverHTTP(t *testing.T) {
	session, backend, l := setup(t)
	backend.QueueScript("conv-1", &devserver.Script{
		Reasoning: []string{"let me ", "search"},
		Tools:     []devserver.ScriptedTool{{Name: "search", Arguments: map[string]any{"q": "news"}, Result: "3 hits"}},
		Chunks:    []string{"found 3 results"},
		Title:     "News search",
	})

	require.NoError(t, session.SendMessage(context.Background(), "whats new", chat.SendOptions{
		UseTools:         true,
		EnabledTools:     []string{"search"},
		ReasoningEnabled: true,
	}))
	settle(t, session)

	messages, timeline := session.Snapshot()
	require.Len(t, messages, 2)

	var tools, phases int
	for _, item := range timeline {
		switch item.Kind {
		case chat.TimelineToolCall:
			tools++
			assert.Equal(t, models.ToolCallStatusCompleted, item.ToolCall.Status)
			assert.Equal(t, "3 hits", item.ToolCall.Result)
		case chat.TimelineReasoning:
			phases++
			assert.Equal(t, "let me search", item.Reasoning.Content)
			assert.False(t, item.Reasoning.IsOpen())
		}
	}
	assert.Equal(t, 1, tools)
	assert.Equal(t, 1, phases)

	// The title is generated after the completion event, so it lands
	// shortly after the exchange settles.
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.titles) == 1
	}, 5*time.Second, 5*time.Millisecond, "title update did not arrive")
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Equal(t, "News search", l.titles[0])
}

func TestServerErrorOverHTTP(t *testing.T) {
	session, backend, l := setup(t)
	backend.QueueScript("conv-1", &devserver.Script{
		Chunks:       []string{"doomed"},
		ErrorMessage: "model overloaded",
	})

	require.NoError(t, session.SendMessage(context.Background(), "q", chat.SendOptions{}))
	settle(t, session)

	assert.Equal(t, "model overloaded", session.LastError())
	messages, _ := session.Snapshot()
	require.Len(t, messages, 1, "the failed assistant turn must vanish")
	assert.Equal(t, models.MessageRoleUser, messages[0].Role)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.errs, 1)
}

func TestConnectionDropOverHTTP(t *testing.T) {
	session, backend, _ := setup(t)
	backend.QueueScript("conv-1", &devserver.Script{
		Chunks:        []string{"partial answer"},
		DropMidStream: true,
	})

	require.NoError(t, session.SendMessage(context.Background(), "q", chat.SendOptions{}))
	settle(t, session)

	assert.NotEmpty(t, session.LastError())
	messages, _ := session.Snapshot()
	for _, m := range messages {
		assert.NotEqual(t, models.StreamingPlaceholderID, m.ID)
	}
}

func TestAttachmentUploadOverHTTP(t *testing.T) {
	session, backend, _ := setup(t)
	backend.QueueScript("conv-1", &devserver.Script{Chunks: []string{"got your file"}})

	content := "hello from a file"
	require.NoError(t, session.SendMessage(context.Background(), "see attached", chat.SendOptions{
		Attachments: []chat.Attachment{{
			Filename: "notes.txt",
			Size:     int64(len(content)),
			Reader:   strings.NewReader(content),
		}},
	}))
	settle(t, session)

	messages, _ := session.Snapshot()
	require.Len(t, messages, 2)
	require.Len(t, messages[0].Documents, 1)
	assert.Equal(t, "notes.txt", messages[0].Documents[0].Filename)
}

func TestHistoryReloadOnConversationSwitch(t *testing.T) {
	session, backend, _ := setup(t)
	backend.Seed("conv-2", "user", "old question")
	backend.Seed("conv-2", "assistant", "old answer")

	require.NoError(t, session.SetConversation(context.Background(), "conv-2"))

	messages, _ := session.Snapshot()
	require.Len(t, messages, 2)
	assert.Equal(t, "old question", messages[0].Content)
	assert.Equal(t, "old answer", messages[1].Content)
	assert.LessOrEqual(t, messages[0].Timestamp, messages[1].Timestamp)
}

func TestRegenerateOverHTTP(t *testing.T) {
	session, backend, _ := setup(t)
	backend.Seed("conv-1", "user", "original question")
	require.NoError(t, session.LoadMessages(context.Background()))

	backend.QueueScript("conv-1", &devserver.Script{Chunks: []string{"regenerated ", "answer"}})
	require.NoError(t, session.GenerateResponse(context.Background(), chat.SendOptions{}))
	settle(t, session)

	messages, _ := session.Snapshot()
	require.Len(t, messages, 2)
	assert.Equal(t, "regenerated answer", messages[1].Content)
}
