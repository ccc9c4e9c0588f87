package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/wisrod/chat-platform/internal/http/middleware"
	"github.com/wisrod/chat-platform/internal/monitoring"
	"github.com/wisrod/chat-platform/pkg/logging"
)

type auditRecorder interface {
	RecordAudit(ctx context.Context, entry monitoring.AuditLog) error
}

// recordAudit writes an audit trail entry for an admin mutation. Failures are
// logged, never surfaced to the caller.
func recordAudit(r *http.Request, auditor auditRecorder, logger *logging.Logger, action, objectType, objectID string, changes map[string]any) {
	if auditor == nil {
		return
	}
	actor := uuid.Nil
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok {
		if parsed, err := uuid.Parse(claims.Subject); err == nil {
			actor = parsed
		}
	}
	ip := r.RemoteAddr
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		ip = xri
	}
	entry := monitoring.AuditLog{
		ActorID:    actor,
		Action:     action,
		ObjectType: objectType,
		ObjectID:   objectID,
		Changes:    changes,
		IPAddress:  ip,
	}
	if err := auditor.RecordAudit(r.Context(), entry); err != nil && logger != nil {
		logger.Warn("audit record failed", "error", err, "action", action, "object_id", objectID)
	}
}
