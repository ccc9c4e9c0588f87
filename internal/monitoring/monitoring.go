// Package monitoring records analytics events, audit trail entries, and
// periodic metric snapshots for the admin dashboard.
package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wisrod/chat-platform/pkg/logging"
)

// AnalyticsEvent is one product analytics data point.
type AnalyticsEvent struct {
	ID         uuid.UUID
	Name       string
	UserID     *uuid.UUID
	SessionID  *uuid.UUID
	Properties map[string]any
	CreatedAt  time.Time
}

// AuditLog is one admin action recorded for compliance.
type AuditLog struct {
	ID         uuid.UUID
	ActorID    uuid.UUID
	Action     string
	ObjectType string
	ObjectID   string
	Changes    map[string]any
	IPAddress  string
	CreatedAt  time.Time
}

// MetricsSnapshot is a periodic rollup of platform-wide counters.
type MetricsSnapshot struct {
	ID              uuid.UUID
	ActiveSessions  int
	MessagesHandled int
	FAQHitRate      float64
	AgentsAvailable int
	TakenAt         time.Time
}

// Service persists monitoring records through database/sql.
type Service struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewService(db *sql.DB, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, logger: logger}
}

// RecordEvent appends an analytics event.
func (s *Service) RecordEvent(ctx context.Context, event AnalyticsEvent) error {
	if event.Name == "" {
		return fmt.Errorf("monitoring: event name required")
	}
	props, err := json.Marshal(orEmpty(event.Properties))
	if err != nil {
		return fmt.Errorf("monitoring: marshal event properties: %w", err)
	}
	const query = `
		INSERT INTO analytics_events (name, user_id, session_id, properties)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, event.Name, event.UserID, event.SessionID, props); err != nil {
		return fmt.Errorf("monitoring: insert event: %w", err)
	}
	return nil
}

// RecordAudit appends an audit trail entry for an admin action.
func (s *Service) RecordAudit(ctx context.Context, entry AuditLog) error {
	if entry.Action == "" || entry.ObjectType == "" {
		return fmt.Errorf("monitoring: audit action and object type required")
	}
	changes, err := json.Marshal(orEmpty(entry.Changes))
	if err != nil {
		return fmt.Errorf("monitoring: marshal audit changes: %w", err)
	}
	const query = `
		INSERT INTO audit_logs (actor_id, action, object_type, object_id, changes, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query, entry.ActorID, entry.Action, entry.ObjectType, entry.ObjectID, changes, entry.IPAddress); err != nil {
		return fmt.Errorf("monitoring: insert audit log: %w", err)
	}
	return nil
}

// Snapshot persists a metrics rollup.
func (s *Service) Snapshot(ctx context.Context, snap MetricsSnapshot) error {
	const query = `
		INSERT INTO metrics_snapshots (active_sessions, messages_handled, faq_hit_rate, agents_available)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, snap.ActiveSessions, snap.MessagesHandled, snap.FAQHitRate, snap.AgentsAvailable); err != nil {
		return fmt.Errorf("monitoring: insert snapshot: %w", err)
	}
	return nil
}

// EventsSince returns analytics events recorded after the cutoff, newest
// first.
func (s *Service) EventsSince(ctx context.Context, since time.Time, limit int) ([]AnalyticsEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT id, name, user_id, session_id, properties, created_at
		FROM analytics_events
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("monitoring: query events: %w", err)
	}
	defer rows.Close()

	var out []AnalyticsEvent
	for rows.Next() {
		var e AnalyticsEvent
		var props []byte
		if err := rows.Scan(&e.ID, &e.Name, &e.UserID, &e.SessionID, &props, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("monitoring: scan event: %w", err)
		}
		if len(props) > 0 {
			if err := json.Unmarshal(props, &e.Properties); err != nil {
				return nil, fmt.Errorf("monitoring: decode event properties: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AuditTrail returns audit entries for one object, newest first.
func (s *Service) AuditTrail(ctx context.Context, objectType, objectID string, limit int) ([]AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, actor_id, action, object_type, object_id, changes, ip_address, created_at
		FROM audit_logs
		WHERE object_type = $1 AND object_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, objectType, objectID, limit)
	if err != nil {
		return nil, fmt.Errorf("monitoring: query audit trail: %w", err)
	}
	defer rows.Close()

	var out []AuditLog
	for rows.Next() {
		var a AuditLog
		var changes []byte
		if err := rows.Scan(&a.ID, &a.ActorID, &a.Action, &a.ObjectType, &a.ObjectID, &changes, &a.IPAddress, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("monitoring: scan audit log: %w", err)
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &a.Changes); err != nil {
				return nil, fmt.Errorf("monitoring: decode audit changes: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestSnapshots returns the most recent metric snapshots, newest first.
func (s *Service) LatestSnapshots(ctx context.Context, limit int) ([]MetricsSnapshot, error) {
	if limit <= 0 {
		limit = 24
	}
	const query = `
		SELECT id, active_sessions, messages_handled, faq_hit_rate, agents_available, taken_at
		FROM metrics_snapshots
		ORDER BY taken_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("monitoring: query snapshots: %w", err)
	}
	defer rows.Close()

	var out []MetricsSnapshot
	for rows.Next() {
		var m MetricsSnapshot
		if err := rows.Scan(&m.ID, &m.ActiveSessions, &m.MessagesHandled, &m.FAQHitRate, &m.AgentsAvailable, &m.TakenAt); err != nil {
			return nil, fmt.Errorf("monitoring: scan snapshot: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
