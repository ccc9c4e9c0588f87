package webchat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wisrod/chat-platform/internal/bot"
	"github.com/wisrod/chat-platform/internal/chat"
	"github.com/wisrod/chat-platform/internal/users"
	"github.com/wisrod/chat-platform/pkg/logging"
)

type mockUserDir struct {
	users map[string]*users.User
}

func newMockUserDir() *mockUserDir {
	return &mockUserDir{users: map[string]*users.User{}}
}

func (m *mockUserDir) GetOrCreateWebUser(_ context.Context, webSessionID string) (*users.User, error) {
	if u, ok := m.users[webSessionID]; ok {
		return u, nil
	}
	u := &users.User{ID: uuid.New(), Username: "web_" + webSessionID}
	m.users[webSessionID] = u
	return u, nil
}

type mockSessionStore struct {
	sessions map[string]*chat.Session
	messages map[uuid.UUID][]chat.Message
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{
		sessions: map[string]*chat.Session{},
		messages: map[uuid.UUID][]chat.Message{},
	}
}

func (m *mockSessionStore) GetOrCreateActiveSession(_ context.Context, platform, externalID string, userID uuid.UUID) (*chat.Session, error) {
	key := platform + ":" + externalID
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}
	s := &chat.Session{ID: uuid.New(), UserID: userID, Platform: platform, ExternalIdentifier: externalID, Status: chat.StatusActive}
	m.sessions[key] = s
	return s, nil
}

func (m *mockSessionStore) StoreMessage(_ context.Context, msg chat.Message) (uuid.UUID, error) {
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return msg.ID, nil
}

func (m *mockSessionStore) ListMessages(_ context.Context, sessionID uuid.UUID, limit int) ([]chat.Message, error) {
	msgs := m.messages[sessionID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

type mockEngine struct {
	reply bot.Reply
}

func (m *mockEngine) HandleMessage(_ context.Context, _ *chat.Session, _ string) (*bot.Reply, error) {
	r := m.reply
	return &r, nil
}

func newTestHandler() (*Handler, *mockSessionStore) {
	store := newMockSessionStore()
	h := NewHandler(newMockUserDir(), store, &mockEngine{reply: bot.Reply{Text: "Hello! How can I help?", Route: bot.RouteGreeting}}, logging.New("error"))
	return h, store
}

func TestGenerateSessionID(t *testing.T) {
	s1 := generateSessionID()
	s2 := generateSessionID()
	assert.NotEmpty(t, s1)
	assert.NotEqual(t, s1, s2)
	assert.Len(t, s1, 32)
}

func TestHandleMessageHTTP(t *testing.T) {
	h, store := newTestHandler()

	body := `{"session_id":"sess1","message":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/webchat/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bot_response", resp["type"])
	assert.Equal(t, "Hello! How can I help?", resp["message"])
	assert.Equal(t, "sess1", resp["session_id"])

	// Both turn halves persisted on the web session.
	sess := store.sessions["web:sess1"]
	require.NotNil(t, sess)
	require.Len(t, store.messages[sess.ID], 2)
	assert.Equal(t, chat.DirectionIn, store.messages[sess.ID][0].Direction)
	assert.Equal(t, chat.DirectionOut, store.messages[sess.ID][1].Direction)
}

func TestHandleMessageGeneratesSessionID(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/webchat/message", strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()
	h.HandleMessage(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["session_id"], 32)
}

func TestHandleMessageRejectsEmpty(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/webchat/message", strings.NewReader(`{"message":"  "}`))
	w := httptest.NewRecorder()
	h.HandleMessage(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory(t *testing.T) {
	h, _ := newTestHandler()

	// Seed a turn through the HTTP path first.
	req := httptest.NewRequest(http.MethodPost, "/webchat/message", strings.NewReader(`{"session_id":"sess9","message":"hello"}`))
	h.HandleMessage(httptest.NewRecorder(), req)

	histReq := httptest.NewRequest(http.MethodGet, "/webchat/history?session=sess9", nil)
	w := httptest.NewRecorder()
	h.HandleHistory(w, histReq)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Messages []HistoryEntry `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "hello", resp.Messages[0].Text)
	assert.Equal(t, chat.DirectionOut, resp.Messages[1].Direction)
}

func TestPushDeliversToConnectedSocket(t *testing.T) {
	h, _ := newTestHandler()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=sess-ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	var frame OutboundFrame
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	require.Equal(t, "session", frame.Type)

	// The socket registers just after the session frame goes out.
	require.Eventually(t, func() bool {
		return h.Push("sess-ws", "An agent will be with you shortly.")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, "agent_message", frame.Type)
	assert.Equal(t, "An agent will be with you shortly.", frame.Message)
}

func TestPushReturnsFalseWhenDisconnected(t *testing.T) {
	h, _ := newTestHandler()
	assert.False(t, h.Push("nobody", "hello"))
}

func TestHandleHistoryRequiresSession(t *testing.T) {
	h, _ := newTestHandler()
	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/webchat/history", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
