package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification is an account message surfaced through the chat menu.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Body      string
	IsRead    bool
	CreatedAt time.Time
}

// CreateNotification queues a notification for the user.
func (s *Store) CreateNotification(ctx context.Context, userID uuid.UUID, title, body string) (uuid.UUID, error) {
	query := `
		INSERT INTO notifications (user_id, title, body)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, query, userID, title, body).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("users: insert notification: %w", err)
	}
	return id, nil
}

// ListUnreadNotifications returns the user's unread notifications oldest-first.
func (s *Store) ListUnreadNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, user_id, title, body, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND NOT is_read
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("users: list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("users: scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationsRead marks all of the user's notifications as read.
func (s *Store) MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`
	if _, err := s.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("users: mark notifications read: %w", err)
	}
	return nil
}
