package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wisrod/chat-platform/internal/users"
	"github.com/wisrod/chat-platform/pkg/logging"
)

type notificationCreator interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
	CreateNotification(ctx context.Context, userID uuid.UUID, title, body string) (uuid.UUID, error)
}

// AdminNotificationsHandler queues account notifications that the chat
// menu surfaces to customers.
type AdminNotificationsHandler struct {
	store   notificationCreator
	auditor auditRecorder
	logger  *logging.Logger
}

func NewAdminNotificationsHandler(store notificationCreator, auditor auditRecorder, logger *logging.Logger) *AdminNotificationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminNotificationsHandler{store: store, auditor: auditor, logger: logger}
}

type createNotificationRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Create queues a notification for one user.
// Route: POST /admin/notifications
func (h *AdminNotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		http.Error(w, "user_id must be a UUID", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	if _, err := h.store.GetByID(r.Context(), userID); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin notifications: user lookup failed", "error", err, "user_id", userID)
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return
	}
	id, err := h.store.CreateNotification(r.Context(), userID, strings.TrimSpace(req.Title), strings.TrimSpace(req.Body))
	if err != nil {
		h.logger.Error("admin notifications: create failed", "error", err, "user_id", userID)
		http.Error(w, "failed to create notification", http.StatusInternalServerError)
		return
	}
	recordAudit(r, h.auditor, h.logger, "notification.created", "notification", id.String(), map[string]any{"user_id": userID.String()})
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}
