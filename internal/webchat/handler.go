package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wisrod/chat-platform/internal/bot"
	"github.com/wisrod/chat-platform/internal/chat"
	"github.com/wisrod/chat-platform/internal/users"
	"github.com/wisrod/chat-platform/pkg/logging"
)

// UserDirectory resolves web visitors to user records.
type UserDirectory interface {
	GetOrCreateWebUser(ctx context.Context, webSessionID string) (*users.User, error)
}

// SessionStore is the chat persistence the web channel needs.
type SessionStore interface {
	GetOrCreateActiveSession(ctx context.Context, platform, externalID string, userID uuid.UUID) (*chat.Session, error)
	StoreMessage(ctx context.Context, msg chat.Message) (uuid.UUID, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]chat.Message, error)
}

// BotEngine routes an inbound message to a reply.
type BotEngine interface {
	HandleMessage(ctx context.Context, session *chat.Session, text string) (*bot.Reply, error)
}

// InboundFrame is what the web widget sends over the socket.
type InboundFrame struct {
	Message string `json:"message"`
}

// OutboundFrame is what the server sends to the widget.
type OutboundFrame struct {
	Type    string `json:"type"` // "bot_response", "agent_message", "error", "session"
	Message string `json:"message,omitempty"`
	Session string `json:"session_id,omitempty"`
}

// HistoryEntry is one transcript line in the history endpoint response.
type HistoryEntry struct {
	Direction string `json:"direction"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Handler serves the website chat channel: a WebSocket endpoint plus HTTP
// fallbacks for environments that cannot hold a socket open.
type Handler struct {
	userDir  UserDirectory
	sessions SessionStore
	engine   BotEngine
	logger   *logging.Logger

	mu    sync.RWMutex
	conns map[string]*websocket.Conn // web session id -> active connection
}

func NewHandler(userDir UserDirectory, sessions SessionStore, engine BotEngine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		userDir:  userDir,
		sessions: sessions,
		engine:   engine,
		logger:   logger,
		conns:    make(map[string]*websocket.Conn),
	}
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and relays messages through the bot.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	webSessionID := r.URL.Query().Get("session")
	if webSessionID == "" {
		webSessionID = generateSessionID()
	}

	_ = websocket.JSON.Send(conn, OutboundFrame{Type: "session", Session: webSessionID})

	h.mu.Lock()
	h.conns[webSessionID] = conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.conns[webSessionID] == conn {
			delete(h.conns, webSessionID)
		}
		h.mu.Unlock()
	}()

	h.logger.Info("webchat: connection opened", "web_session_id", webSessionID)

	for {
		var frame InboundFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			h.logger.Debug("webchat: connection closed", "web_session_id", webSessionID, "error", err)
			return
		}
		if strings.TrimSpace(frame.Message) == "" {
			continue
		}

		reply, err := h.processMessage(r.Context(), webSessionID, frame.Message)
		if err != nil {
			h.logger.Error("webchat: message processing failed", "web_session_id", webSessionID, "error", err)
			_ = websocket.JSON.Send(conn, OutboundFrame{
				Type:    "error",
				Message: "Sorry, I couldn't process that message.",
			})
			continue
		}
		_ = websocket.JSON.Send(conn, OutboundFrame{Type: "bot_response", Message: reply.Text})
	}
}

// Push delivers a message to a connected web session outside the normal
// request/reply turn, for agent replies. Returns false when the session
// has no open socket.
func (h *Handler) Push(webSessionID, text string) bool {
	h.mu.RLock()
	conn := h.conns[webSessionID]
	h.mu.RUnlock()
	if conn == nil {
		return false
	}
	if err := websocket.JSON.Send(conn, OutboundFrame{Type: "agent_message", Message: text}); err != nil {
		h.logger.Warn("webchat: push failed", "web_session_id", webSessionID, "error", err)
		return false
	}
	return true
}

func (h *Handler) processMessage(ctx context.Context, webSessionID, text string) (*bot.Reply, error) {
	user, err := h.userDir.GetOrCreateWebUser(ctx, webSessionID)
	if err != nil {
		return nil, err
	}
	session, err := h.sessions.GetOrCreateActiveSession(ctx, chat.PlatformWeb, webSessionID, user.ID)
	if err != nil {
		return nil, err
	}

	if _, err := h.sessions.StoreMessage(ctx, chat.Message{
		SessionID: session.ID,
		Direction: chat.DirectionIn,
		Content:   text,
		Metadata:  map[string]any{chat.MetaWebSessionID: webSessionID},
	}); err != nil {
		return nil, err
	}

	reply, err := h.engine.HandleMessage(ctx, session, text)
	if err != nil {
		return nil, err
	}

	if _, err := h.sessions.StoreMessage(ctx, chat.Message{
		SessionID: session.ID,
		Direction: chat.DirectionOut,
		Content:   reply.Text,
		Metadata:  map[string]any{"route": reply.Route},
	}); err != nil {
		h.logger.Warn("webchat: could not persist outbound turn", "session_id", session.ID, "error", err)
	}
	return reply, nil
}

// HandleMessage is the HTTP fallback for sending one message.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	reply, err := h.processMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.logger.Error("webchat: http message failed", "web_session_id", req.SessionID, "error", err)
		http.Error(w, "failed to process message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"type":       "bot_response",
		"message":    reply.Text,
		"session_id": req.SessionID,
	})
}

// HandleHistory returns the transcript for a web session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	webSessionID := r.URL.Query().Get("session")
	if webSessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	user, err := h.userDir.GetOrCreateWebUser(r.Context(), webSessionID)
	if err != nil {
		h.logger.Error("webchat: history user lookup failed", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	session, err := h.sessions.GetOrCreateActiveSession(r.Context(), chat.PlatformWeb, webSessionID, user.ID)
	if err != nil {
		h.logger.Error("webchat: history session lookup failed", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	msgs, err := h.sessions.ListMessages(r.Context(), session.ID, 100)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	history := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryEntry{
			Direction: m.Direction,
			Text:      m.Content,
			Timestamp: m.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": history})
}
