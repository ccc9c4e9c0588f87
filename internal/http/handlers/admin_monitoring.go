package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wisrod/chat-platform/internal/monitoring"
	"github.com/wisrod/chat-platform/pkg/logging"
)

type monitoringReader interface {
	EventsSince(ctx context.Context, since time.Time, limit int) ([]monitoring.AnalyticsEvent, error)
	AuditTrail(ctx context.Context, objectType, objectID string, limit int) ([]monitoring.AuditLog, error)
	LatestSnapshots(ctx context.Context, limit int) ([]monitoring.MetricsSnapshot, error)
}

// AdminMonitoringHandler serves the analytics and audit views of the admin
// dashboard.
type AdminMonitoringHandler struct {
	service monitoringReader
	logger  *logging.Logger
}

func NewAdminMonitoringHandler(service monitoringReader, logger *logging.Logger) *AdminMonitoringHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminMonitoringHandler{service: service, logger: logger}
}

// ListEvents returns analytics events within a trailing window.
// Route: GET /admin/monitoring/events?hours=24&limit=100
func (h *AdminMonitoringHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 24*30 {
			http.Error(w, "hours must be between 1 and 720", http.StatusBadRequest)
			return
		}
		hours = parsed
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	events, err := h.service.EventsSince(r.Context(), since, limit)
	if err != nil {
		h.logger.Error("admin monitoring: list events failed", "error", err)
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	type eventResponse struct {
		Name       string         `json:"name"`
		Properties map[string]any `json:"properties,omitempty"`
		CreatedAt  time.Time      `json:"created_at"`
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{Name: e.Name, Properties: e.Properties, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"since": since, "events": out})
}

// GetAuditTrail returns audit entries for one object.
// Route: GET /admin/monitoring/audit?object_type=faq&object_id={id}
func (h *AdminMonitoringHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	objectType := r.URL.Query().Get("object_type")
	objectID := r.URL.Query().Get("object_id")
	if objectType == "" || objectID == "" {
		http.Error(w, "object_type and object_id required", http.StatusBadRequest)
		return
	}
	trail, err := h.service.AuditTrail(r.Context(), objectType, objectID, 50)
	if err != nil {
		h.logger.Error("admin monitoring: audit trail failed", "error", err, "object_type", objectType)
		http.Error(w, "failed to load audit trail", http.StatusInternalServerError)
		return
	}
	type auditResponse struct {
		ActorID   string         `json:"actor_id"`
		Action    string         `json:"action"`
		Changes   map[string]any `json:"changes,omitempty"`
		IPAddress string         `json:"ip_address,omitempty"`
		CreatedAt time.Time      `json:"created_at"`
	}
	out := make([]auditResponse, 0, len(trail))
	for _, a := range trail {
		out = append(out, auditResponse{
			ActorID:   a.ActorID.String(),
			Action:    a.Action,
			Changes:   a.Changes,
			IPAddress: a.IPAddress,
			CreatedAt: a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"object_type": objectType, "object_id": objectID, "entries": out})
}

// GetSnapshots returns recent platform metric rollups.
// Route: GET /admin/monitoring/snapshots?limit=24
func (h *AdminMonitoringHandler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 24
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	snaps, err := h.service.LatestSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("admin monitoring: snapshots failed", "error", err)
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		return
	}
	type snapshotResponse struct {
		ActiveSessions  int       `json:"active_sessions"`
		MessagesHandled int       `json:"messages_handled"`
		FAQHitRate      float64   `json:"faq_hit_rate"`
		AgentsAvailable int       `json:"agents_available"`
		TakenAt         time.Time `json:"taken_at"`
	}
	out := make([]snapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, snapshotResponse{
			ActiveSessions:  s.ActiveSessions,
			MessagesHandled: s.MessagesHandled,
			FAQHitRate:      s.FAQHitRate,
			AgentsAvailable: s.AgentsAvailable,
			TakenAt:         s.TakenAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": out})
}
