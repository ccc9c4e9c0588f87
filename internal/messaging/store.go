package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrIntegrationNotFound is returned when a platform has no active
// integration configured.
var ErrIntegrationNotFound = errors.New("messaging: integration not found")

// PgxPool is the pool subset the store needs; pgxmock satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Integration is one configured outbound channel.
type Integration struct {
	ID        uuid.UUID
	Platform  string
	IsActive  bool
	APIKey    string
	APISecret string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HealthSample is one point-in-time delivery health observation.
type HealthSample struct {
	ID             uuid.UUID
	Platform       string
	Status         string
	MessagesSent   int
	MessagesFailed int
	Details        map[string]any
	RecordedAt     time.Time
}

// Health statuses.
const (
	HealthUp       = "up"
	HealthDegraded = "degraded"
	HealthDown     = "down"
)

// Store persists platform integrations and delivery health samples.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// GetIntegration returns the active integration for a platform.
func (s *Store) GetIntegration(ctx context.Context, platform string) (*Integration, error) {
	query := `
		SELECT id, platform, is_active, api_key, api_secret, created_at, updated_at
		FROM platform_integrations
		WHERE platform = $1 AND is_active
	`
	var in Integration
	err := s.pool.QueryRow(ctx, query, platform).Scan(
		&in.ID, &in.Platform, &in.IsActive, &in.APIKey, &in.APISecret, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("messaging: get integration: %w", err)
	}
	return &in, nil
}

// UpsertIntegration stores credentials for a platform, replacing existing
// ones.
func (s *Store) UpsertIntegration(ctx context.Context, platform, apiKey, apiSecret string) error {
	query := `
		INSERT INTO platform_integrations (platform, is_active, api_key, api_secret)
		VALUES ($1, TRUE, $2, $3)
		ON CONFLICT (platform) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			api_secret = EXCLUDED.api_secret,
			is_active = TRUE,
			updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, platform, apiKey, apiSecret); err != nil {
		return fmt.Errorf("messaging: upsert integration: %w", err)
	}
	return nil
}

// RecordHealth appends a delivery health sample for the platform.
func (s *Store) RecordHealth(ctx context.Context, sample HealthSample) error {
	if sample.Details == nil {
		sample.Details = map[string]any{}
	}
	details, err := json.Marshal(sample.Details)
	if err != nil {
		return fmt.Errorf("messaging: marshal health details: %w", err)
	}
	query := `
		INSERT INTO platform_health (platform, status, messages_sent, messages_failed, details)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, sample.Platform, sample.Status, sample.MessagesSent, sample.MessagesFailed, details); err != nil {
		return fmt.Errorf("messaging: record health: %w", err)
	}
	return nil
}

// RecentHealth returns the latest health samples for a platform, newest
// first.
func (s *Store) RecentHealth(ctx context.Context, platform string, limit int) ([]HealthSample, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, platform, status, messages_sent, messages_failed, details, recorded_at
		FROM platform_health
		WHERE platform = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, platform, limit)
	if err != nil {
		return nil, fmt.Errorf("messaging: recent health: %w", err)
	}
	defer rows.Close()

	var out []HealthSample
	for rows.Next() {
		var h HealthSample
		var details []byte
		if err := rows.Scan(&h.ID, &h.Platform, &h.Status, &h.MessagesSent, &h.MessagesFailed, &details, &h.RecordedAt); err != nil {
			return nil, fmt.Errorf("messaging: scan health: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &h.Details); err != nil {
				return nil, fmt.Errorf("messaging: decode health details: %w", err)
			}
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
