package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisrod/chat-platform/internal/chat"
	"github.com/wisrod/chat-platform/pkg/logging"
)

type sessionDirectory interface {
	ListSessions(ctx context.Context, status string, limit int) ([]chat.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*chat.Session, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]chat.Message, error)
	StoreMessage(ctx context.Context, msg chat.Message) (uuid.UUID, error)
	EndSession(ctx context.Context, id uuid.UUID) error
	SetSatisfaction(ctx context.Context, id uuid.UUID, score int) error
}

type agentReleaser interface {
	Release(ctx context.Context, agentID uuid.UUID) error
}

// outboundSender delivers agent replies over the provider channels.
type outboundSender interface {
	SendWhatsApp(ctx context.Context, to, body string) (string, error)
	SendMessenger(ctx context.Context, to, body string) (string, error)
}

// webPusher delivers agent replies to connected web chat sockets.
type webPusher interface {
	Push(webSessionID, text string) bool
}

// AdminSessionsHandler exposes chat session oversight to the admin API.
type AdminSessionsHandler struct {
	sessions sessionDirectory
	agents   agentReleaser
	sender   outboundSender
	pusher   webPusher
	auditor  auditRecorder
	logger   *logging.Logger
}

func NewAdminSessionsHandler(sessions sessionDirectory, agents agentReleaser, sender outboundSender, pusher webPusher, auditor auditRecorder, logger *logging.Logger) *AdminSessionsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSessionsHandler{sessions: sessions, agents: agents, sender: sender, pusher: pusher, auditor: auditor, logger: logger}
}

type sessionResponse struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	AgentID            *uuid.UUID `json:"agent_id,omitempty"`
	Platform           string     `json:"platform"`
	ExternalIdentifier string     `json:"external_identifier"`
	Status             string     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	SatisfactionScore  *int       `json:"satisfaction_score,omitempty"`
}

func toSessionResponse(s chat.Session) sessionResponse {
	return sessionResponse{
		ID:                 s.ID,
		UserID:             s.UserID,
		AgentID:            s.AgentID,
		Platform:           s.Platform,
		ExternalIdentifier: s.ExternalIdentifier,
		Status:             s.Status,
		StartedAt:          s.StartedAt,
		EndedAt:            s.EndedAt,
		SatisfactionScore:  s.SatisfactionScore,
	}
}

// ListSessions returns recent sessions, optionally filtered by status.
// Route: GET /admin/sessions?status=active&limit=50
func (h *AdminSessionsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	sessions, err := h.sessions.ListSessions(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("admin sessions: list failed", "error", err)
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// GetSession returns one session with its recent transcript.
// Route: GET /admin/sessions/{sessionID}
func (h *AdminSessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "sessionID must be a UUID", http.StatusBadRequest)
		return
	}
	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin sessions: get failed", "error", err, "session_id", sessionID)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	messages, err := h.sessions.ListMessages(r.Context(), sessionID, 200)
	if err != nil {
		h.logger.Error("admin sessions: list messages failed", "error", err, "session_id", sessionID)
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}
	type messageResponse struct {
		Direction string    `json:"direction"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	}
	transcript := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		transcript = append(transcript, messageResponse{Direction: m.Direction, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  toSessionResponse(*session),
		"messages": transcript,
	})
}

// CloseSession ends an active session and frees its agent slot.
// Route: POST /admin/sessions/{sessionID}/close
func (h *AdminSessionsHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "sessionID must be a UUID", http.StatusBadRequest)
		return
	}
	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin sessions: get failed", "error", err, "session_id", sessionID)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	if err := h.sessions.EndSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, chat.ErrSessionClosed) {
			http.Error(w, "session already closed", http.StatusConflict)
			return
		}
		h.logger.Error("admin sessions: close failed", "error", err, "session_id", sessionID)
		http.Error(w, "failed to close session", http.StatusInternalServerError)
		return
	}
	if session.AgentID != nil && h.agents != nil {
		if err := h.agents.Release(r.Context(), *session.AgentID); err != nil {
			h.logger.Warn("admin sessions: agent release failed", "error", err, "agent_id", *session.AgentID)
		}
	}
	recordAudit(r, h.auditor, h.logger, "session.closed", "chat_session", sessionID.String(), nil)
	writeJSON(w, http.StatusOK, map[string]any{"id": sessionID, "status": chat.StatusClosed})
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessage delivers an agent reply into an active session over its
// originating channel and records the outbound turn.
// Route: POST /admin/sessions/{sessionID}/message
func (h *AdminSessionsHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "sessionID must be a UUID", http.StatusBadRequest)
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin sessions: get failed", "error", err, "session_id", sessionID)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	if session.Status == chat.StatusClosed {
		http.Error(w, "session is closed", http.StatusConflict)
		return
	}

	var providerSID string
	switch session.Platform {
	case chat.PlatformWhatsApp:
		if h.sender == nil {
			http.Error(w, "outbound delivery not configured", http.StatusServiceUnavailable)
			return
		}
		providerSID, err = h.sender.SendWhatsApp(r.Context(), session.ExternalIdentifier, req.Message)
	case chat.PlatformFacebook:
		if h.sender == nil {
			http.Error(w, "outbound delivery not configured", http.StatusServiceUnavailable)
			return
		}
		providerSID, err = h.sender.SendMessenger(r.Context(), session.ExternalIdentifier, req.Message)
	case chat.PlatformWeb:
		if h.pusher == nil || !h.pusher.Push(session.ExternalIdentifier, req.Message) {
			http.Error(w, "web session is not connected", http.StatusConflict)
			return
		}
	default:
		http.Error(w, "unsupported platform", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		h.logger.Error("admin sessions: outbound send failed", "error", err, "session_id", sessionID, "platform", session.Platform)
		http.Error(w, "delivery failed", http.StatusBadGateway)
		return
	}

	if _, err := h.sessions.StoreMessage(r.Context(), chat.Message{
		SessionID:  sessionID,
		Direction:  chat.DirectionOut,
		Content:    req.Message,
		ExternalID: providerSID,
		Metadata:   map[string]any{"source": "agent"},
	}); err != nil {
		h.logger.Warn("admin sessions: could not persist outbound turn", "error", err, "session_id", sessionID)
	}
	recordAudit(r, h.auditor, h.logger, "session.message_sent", "chat_session", sessionID.String(), map[string]any{"platform": session.Platform})
	writeJSON(w, http.StatusOK, map[string]any{"id": sessionID, "provider_sid": providerSID})
}

type satisfactionRequest struct {
	Score int `json:"score"`
}

// SetSatisfaction records a post-chat satisfaction score.
// Route: POST /admin/sessions/{sessionID}/satisfaction
func (h *AdminSessionsHandler) SetSatisfaction(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "sessionID must be a UUID", http.StatusBadRequest)
		return
	}
	var req satisfactionRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Score < 1 || req.Score > 5 {
		http.Error(w, "score must be between 1 and 5", http.StatusBadRequest)
		return
	}
	if err := h.sessions.SetSatisfaction(r.Context(), sessionID, req.Score); err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin sessions: set satisfaction failed", "error", err, "session_id", sessionID)
		http.Error(w, "failed to record satisfaction", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": sessionID, "satisfaction_score": req.Score})
}
