package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("wisrod.internal.agents")

// PgxPool is the pool subset the store needs; pgxmock satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists agent availability and daily performance in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

const availabilityColumns = `id, user_id, status, current_chats, max_concurrent_chats,
		auto_assign_enabled, skills, last_active_at, updated_at`

func (s *Store) Get(ctx context.Context, agentID uuid.UUID) (*Availability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM agent_availability WHERE id = $1`
	av, err := scanAvailability(s.pool.QueryRow(ctx, query, agentID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("agents: get availability: %w", err)
	}
	return av, nil
}

// UpdateStatus moves the agent to a new availability status and refreshes
// their last-active timestamp.
func (s *Store) UpdateStatus(ctx context.Context, agentID uuid.UUID, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validStatuses[status] {
		return ErrInvalidStatus
	}
	query := `
		UPDATE agent_availability
		SET status = $2,
			last_active_at = now(),
			updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, agentID, status)
	if err != nil {
		return fmt.Errorf("agents: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// FindAvailable returns auto-assignable agents with spare capacity, least
// busy first. When skills are given, only agents whose skills contain all of
// them qualify.
func (s *Store) FindAvailable(ctx context.Context, skills []string, limit int) ([]Availability, error) {
	ctx, span := tracer.Start(ctx, "agents.find_available")
	defer span.End()

	if limit <= 0 {
		limit = 10
	}
	if skills == nil {
		skills = []string{}
	}
	required, err := json.Marshal(skills)
	if err != nil {
		return nil, fmt.Errorf("agents: marshal skills: %w", err)
	}
	query := `
		SELECT ` + availabilityColumns + `
		FROM agent_availability
		WHERE status = 'available'
			AND auto_assign_enabled
			AND current_chats < max_concurrent_chats
			AND ($1 = '[]'::jsonb OR skills @> $1)
		ORDER BY current_chats, last_active_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, required, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("agents: find available: %w", err)
	}
	defer rows.Close()

	var out []Availability
	for rows.Next() {
		av, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("agents: scan availability: %w", err)
		}
		out = append(out, *av)
	}
	return out, rows.Err()
}

// Assign increments the agent's chat counter, flipping them to busy when the
// increment reaches their limit. The capacity check lives in the WHERE clause
// so two concurrent assignments cannot push an agent past their maximum.
func (s *Store) Assign(ctx context.Context, agentID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "agents.assign")
	defer span.End()

	query := `
		UPDATE agent_availability
		SET current_chats = current_chats + 1,
			status = CASE WHEN current_chats + 1 >= max_concurrent_chats THEN 'busy' ELSE status END,
			updated_at = now()
		WHERE id = $1 AND current_chats < max_concurrent_chats
	`
	tag, err := s.pool.Exec(ctx, query, agentID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("agents: assign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAtCapacity
	}
	return nil
}

// Release decrements the agent's chat counter, never below zero, and flips a
// busy agent back to available once they drop under their limit.
func (s *Store) Release(ctx context.Context, agentID uuid.UUID) error {
	query := `
		UPDATE agent_availability
		SET current_chats = GREATEST(current_chats - 1, 0),
			status = CASE
				WHEN status = 'busy' AND GREATEST(current_chats - 1, 0) < max_concurrent_chats THEN 'available'
				ELSE status
			END,
			updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, agentID)
	if err != nil {
		return fmt.Errorf("agents: release: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// SetAutoAssign toggles whether the agent participates in auto-assignment.
func (s *Store) SetAutoAssign(ctx context.Context, agentID uuid.UUID, enabled bool) error {
	query := `UPDATE agent_availability SET auto_assign_enabled = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, agentID, enabled)
	if err != nil {
		return fmt.Errorf("agents: set auto assign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// UpsertDailyPerformance writes one agent/day rollup, replacing any earlier
// rollup for the same day.
func (s *Store) UpsertDailyPerformance(ctx context.Context, p Performance) error {
	query := `
		INSERT INTO agent_performance (agent_id, day, chats_handled, resolutions, escalated, avg_satisfaction, avg_response_secs)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7)
		ON CONFLICT (agent_id, day) DO UPDATE SET
			chats_handled = EXCLUDED.chats_handled,
			resolutions = EXCLUDED.resolutions,
			escalated = EXCLUDED.escalated,
			avg_satisfaction = EXCLUDED.avg_satisfaction,
			avg_response_secs = EXCLUDED.avg_response_secs
	`
	if _, err := s.pool.Exec(ctx, query, p.AgentID, p.Day, p.ChatsHandled, p.Resolutions, p.Escalated, p.AvgSatisfaction, p.AvgResponseSecs); err != nil {
		return fmt.Errorf("agents: upsert performance: %w", err)
	}
	return nil
}

// ListPerformance returns an agent's daily rollups for a date range.
func (s *Store) ListPerformance(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]Performance, error) {
	query := `
		SELECT id, agent_id, day, chats_handled, resolutions, escalated, avg_satisfaction, avg_response_secs
		FROM agent_performance
		WHERE agent_id = $1 AND day BETWEEN $2::date AND $3::date
		ORDER BY day
	`
	rows, err := s.pool.Query(ctx, query, agentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("agents: list performance: %w", err)
	}
	defer rows.Close()

	var out []Performance
	for rows.Next() {
		var p Performance
		if err := rows.Scan(&p.ID, &p.AgentID, &p.Day, &p.ChatsHandled, &p.Resolutions, &p.Escalated, &p.AvgSatisfaction, &p.AvgResponseSecs); err != nil {
			return nil, fmt.Errorf("agents: scan performance: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanAvailability(row pgx.Row) (*Availability, error) {
	var av Availability
	var skills []byte
	if err := row.Scan(&av.ID, &av.UserID, &av.Status, &av.CurrentChats, &av.MaxConcurrentChats,
		&av.AutoAssignEnabled, &skills, &av.LastActiveAt, &av.UpdatedAt); err != nil {
		return nil, err
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &av.Skills); err != nil {
			return nil, fmt.Errorf("agents: decode skills: %w", err)
		}
	}
	return &av, nil
}
