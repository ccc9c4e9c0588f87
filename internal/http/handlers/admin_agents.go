package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisrod/chat-platform/internal/agents"
	"github.com/wisrod/chat-platform/pkg/logging"
)

type agentDirectory interface {
	Get(ctx context.Context, agentID uuid.UUID) (*agents.Availability, error)
	UpdateStatus(ctx context.Context, agentID uuid.UUID, status string) error
	FindAvailable(ctx context.Context, skills []string, limit int) ([]agents.Availability, error)
	SetAutoAssign(ctx context.Context, agentID uuid.UUID, enabled bool) error
	ListPerformance(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]agents.Performance, error)
}

// AdminAgentsHandler exposes agent availability management to the admin API.
type AdminAgentsHandler struct {
	store   agentDirectory
	auditor auditRecorder
	logger  *logging.Logger
}

func NewAdminAgentsHandler(store agentDirectory, auditor auditRecorder, logger *logging.Logger) *AdminAgentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAgentsHandler{store: store, auditor: auditor, logger: logger}
}

type agentResponse struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	Status             string    `json:"status"`
	CurrentChats       int       `json:"current_chats"`
	MaxConcurrentChats int       `json:"max_concurrent_chats"`
	AutoAssignEnabled  bool      `json:"auto_assign_enabled"`
	Skills             []string  `json:"skills"`
	LastActiveAt       time.Time `json:"last_active_at"`
}

func toAgentResponse(a agents.Availability) agentResponse {
	skills := a.Skills
	if skills == nil {
		skills = []string{}
	}
	return agentResponse{
		ID:                 a.ID,
		UserID:             a.UserID,
		Status:             a.Status,
		CurrentChats:       a.CurrentChats,
		MaxConcurrentChats: a.MaxConcurrentChats,
		AutoAssignEnabled:  a.AutoAssignEnabled,
		Skills:             skills,
		LastActiveAt:       a.LastActiveAt,
	}
}

// GetAgent returns one agent's availability record.
// Route: GET /admin/agents/{agentID}
func (h *AdminAgentsHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		http.Error(w, "agentID must be a UUID", http.StatusBadRequest)
		return
	}
	agent, err := h.store.Get(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, agents.ErrAgentNotFound) {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin agents: get failed", "error", err, "agent_id", agentID)
		http.Error(w, "failed to load agent", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(*agent))
}

// FindAvailable lists agents with spare capacity, optionally filtered by
// comma-separated skills.
// Route: GET /admin/agents/available?skills=loans,escalations
func (h *AdminAgentsHandler) FindAvailable(w http.ResponseWriter, r *http.Request) {
	var skills []string
	if raw := strings.TrimSpace(r.URL.Query().Get("skills")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				skills = append(skills, s)
			}
		}
	}
	available, err := h.store.FindAvailable(r.Context(), skills, 50)
	if err != nil {
		h.logger.Error("admin agents: find available failed", "error", err)
		http.Error(w, "failed to list agents", http.StatusInternalServerError)
		return
	}
	out := make([]agentResponse, 0, len(available))
	for _, a := range available {
		out = append(out, toAgentResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}

type updateAgentStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus changes an agent's availability status.
// Route: POST /admin/agents/{agentID}/status
func (h *AdminAgentsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		http.Error(w, "agentID must be a UUID", http.StatusBadRequest)
		return
	}
	var req updateAgentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.store.UpdateStatus(r.Context(), agentID, req.Status); err != nil {
		switch {
		case errors.Is(err, agents.ErrInvalidStatus):
			http.Error(w, "invalid status", http.StatusBadRequest)
		case errors.Is(err, agents.ErrAgentNotFound):
			http.Error(w, "agent not found", http.StatusNotFound)
		default:
			h.logger.Error("admin agents: update status failed", "error", err, "agent_id", agentID)
			http.Error(w, "failed to update status", http.StatusInternalServerError)
		}
		return
	}
	h.audit(r, "agent.status_updated", agentID.String(), map[string]any{"status": req.Status})
	writeJSON(w, http.StatusOK, map[string]any{"id": agentID, "status": strings.ToLower(strings.TrimSpace(req.Status))})
}

type setAutoAssignRequest struct {
	Enabled bool `json:"enabled"`
}

// SetAutoAssign toggles whether the assigner may route chats to the agent.
// Route: POST /admin/agents/{agentID}/auto-assign
func (h *AdminAgentsHandler) SetAutoAssign(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		http.Error(w, "agentID must be a UUID", http.StatusBadRequest)
		return
	}
	var req setAutoAssignRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.store.SetAutoAssign(r.Context(), agentID, req.Enabled); err != nil {
		if errors.Is(err, agents.ErrAgentNotFound) {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin agents: set auto assign failed", "error", err, "agent_id", agentID)
		http.Error(w, "failed to update agent", http.StatusInternalServerError)
		return
	}
	h.audit(r, "agent.auto_assign_updated", agentID.String(), map[string]any{"enabled": req.Enabled})
	writeJSON(w, http.StatusOK, map[string]any{"id": agentID, "auto_assign_enabled": req.Enabled})
}

// GetPerformance returns daily performance rows for a date window.
// Route: GET /admin/agents/{agentID}/performance?from=2026-08-01&to=2026-08-31
func (h *AdminAgentsHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "agentID"))
	if err != nil {
		http.Error(w, "agentID must be a UUID", http.StatusBadRequest)
		return
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	rows, err := h.store.ListPerformance(r.Context(), agentID, from, to)
	if err != nil {
		h.logger.Error("admin agents: list performance failed", "error", err, "agent_id", agentID)
		http.Error(w, "failed to load performance", http.StatusInternalServerError)
		return
	}
	type perfResponse struct {
		Day             string   `json:"day"`
		ChatsHandled    int      `json:"chats_handled"`
		Resolutions     int      `json:"resolutions"`
		Escalated       int      `json:"escalated"`
		AvgSatisfaction *float64 `json:"avg_satisfaction,omitempty"`
		AvgResponseSecs *float64 `json:"avg_response_secs,omitempty"`
	}
	out := make([]perfResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, perfResponse{
			Day:             p.Day.Format("2006-01-02"),
			ChatsHandled:    p.ChatsHandled,
			Resolutions:     p.Resolutions,
			Escalated:       p.Escalated,
			AvgSatisfaction: p.AvgSatisfaction,
			AvgResponseSecs: p.AvgResponseSecs,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent_id": agentID, "performance": out})
}

func (h *AdminAgentsHandler) audit(r *http.Request, action, objectID string, changes map[string]any) {
	recordAudit(r, h.auditor, h.logger, action, "agent_availability", objectID, changes)
}
