package chat

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

var tracer = otel.Tracer("wisrod.internal.chat")

// PgxPool is the pool subset the store needs; pgxmock satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists chat sessions and platform messages in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

const sessionColumns = `id, user_id, agent_id, platform, external_identifier,
		channel_type, status, metadata, started_at, ended_at, satisfaction_score`

// GetOrCreateActiveSession returns the single active session for the
// (platform, external identifier) pair, creating one if none exists. The
// partial unique index on active sessions makes concurrent first contacts
// converge on one row instead of racing into duplicates.
func (s *Store) GetOrCreateActiveSession(ctx context.Context, platform, externalID string, userID uuid.UUID) (*Session, error) {
	ctx, span := tracer.Start(ctx, "chat.get_or_create_session")
	defer span.End()

	platform = strings.ToLower(strings.TrimSpace(platform))
	externalID = strings.TrimSpace(externalID)
	if platform == "" || externalID == "" {
		return nil, fmt.Errorf("chat: platform and external identifier required")
	}

	insert := `
		INSERT INTO chat_sessions (id, user_id, platform, external_identifier, channel_type, status, metadata)
		VALUES ($1, $2, $3, $4, $5, 'active', '{}'::jsonb)
		ON CONFLICT (platform, external_identifier) WHERE status = 'active' DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, insert, uuid.New(), userID, platform, externalID, ChannelGeneral); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chat: insert session: %w", err)
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM chat_sessions
		WHERE platform = $1 AND external_identifier = $2 AND status = 'active'
	`
	sess, err := s.scanSession(s.pool.QueryRow(ctx, query, platform, externalID))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chat: lookup active session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1`
	sess, err := s.scanSession(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("chat: get session: %w", err)
	}
	return sess, nil
}

// SetAuthenticated records a successful account validation on the session.
func (s *Store) SetAuthenticated(ctx context.Context, id uuid.UUID, accountID string) error {
	query := `
		UPDATE chat_sessions
		SET metadata = metadata || jsonb_build_object('is_authenticated', TRUE, 'account_id', $2::text)
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("chat: set authenticated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// AssignAgent attaches a human agent to the session.
// AssignAgent attaches an agent to an active session and stamps the
// escalation flag the daily performance rollup counts.
func (s *Store) AssignAgent(ctx context.Context, id, agentID uuid.UUID) error {
	query := `
		UPDATE chat_sessions
		SET agent_id = $2,
			metadata = COALESCE(metadata, '{}'::jsonb) || '{"escalated": true}'::jsonb
		WHERE id = $1 AND status = 'active'
	`
	tag, err := s.pool.Exec(ctx, query, id, agentID)
	if err != nil {
		return fmt.Errorf("chat: assign agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// EndSession closes the session and stamps the end time. The conditional
// update makes the stamp happen exactly once: ending an already-closed
// session returns ErrSessionClosed and leaves ended_at untouched.
func (s *Store) EndSession(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "chat.end_session")
	defer span.End()

	query := `
		UPDATE chat_sessions
		SET status = 'closed',
			ended_at = now()
		WHERE id = $1 AND status <> 'closed'
	`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionClosed
	}
	return nil
}

// SetSatisfaction records the post-chat satisfaction score (1-5).
func (s *Store) SetSatisfaction(ctx context.Context, id uuid.UUID, score int) error {
	if score < 1 || score > 5 {
		return fmt.Errorf("chat: satisfaction score out of range: %d", score)
	}
	query := `UPDATE chat_sessions SET satisfaction_score = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, score)
	if err != nil {
		return fmt.Errorf("chat: set satisfaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// StoreMessage persists one turn half for the session.
func (s *Store) StoreMessage(ctx context.Context, msg Message) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "chat.store_message")
	defer span.End()

	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("chat: marshal message metadata: %w", err)
	}
	query := `
		INSERT INTO platform_messages (session_id, direction, content, external_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, query, msg.SessionID, msg.Direction, msg.Content, msg.ExternalID, meta).Scan(&id); err != nil {
		span.RecordError(err)
		return uuid.Nil, fmt.Errorf("chat: insert message: %w", err)
	}
	return id, nil
}

// ListMessages returns the session transcript oldest-first.
func (s *Store) ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, session_id, direction, content, external_id, metadata, created_at
		FROM platform_messages
		WHERE session_id = $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var meta []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Direction, &m.Content, &m.ExternalID, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("chat: decode message metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMessages returns the number of persisted turn halves for a session.
func (s *Store) CountMessages(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM platform_messages WHERE session_id = $1`
	if err := s.pool.QueryRow(ctx, query, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("chat: count messages: %w", err)
	}
	return n, nil
}

// ListSessions returns sessions filtered by optional status, newest first.
func (s *Store) ListSessions(ctx context.Context, status string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + sessionColumns + `
		FROM chat_sessions
		WHERE ($1 = '' OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := s.scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// AgentDailyStats aggregates one agent's sessions for a calendar day.
type AgentDailyStats struct {
	ChatsHandled    int
	Resolutions     int
	Escalated       int
	AvgSatisfaction *float64
}

// AgentStatsForDay computes the per-agent rollup backing performance records.
func (s *Store) AgentStatsForDay(ctx context.Context, agentID uuid.UUID, day time.Time) (*AgentDailyStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'closed'),
			COUNT(*) FILTER (WHERE metadata->>'escalated' = 'true'),
			AVG(satisfaction_score)
		FROM chat_sessions
		WHERE agent_id = $1 AND started_at::date = $2::date
	`
	var stats AgentDailyStats
	if err := s.pool.QueryRow(ctx, query, agentID, day).Scan(
		&stats.ChatsHandled, &stats.Resolutions, &stats.Escalated, &stats.AvgSatisfaction); err != nil {
		return nil, fmt.Errorf("chat: agent stats: %w", err)
	}
	return &stats, nil
}

// AgentIDsForDay lists the agents that handled at least one session on
// the given day.
func (s *Store) AgentIDsForDay(ctx context.Context, day time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT agent_id
		FROM chat_sessions
		WHERE agent_id IS NOT NULL AND started_at::date = $1::date
	`
	rows, err := s.pool.Query(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("chat: agents for day: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("chat: scan agent id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) scanSession(row pgx.Row) (*Session, error) {
	var sess Session
	var meta []byte
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.AgentID, &sess.Platform, &sess.ExternalIdentifier,
		&sess.ChannelType, &sess.Status, &meta, &sess.StartedAt, &sess.EndedAt, &sess.SatisfactionScore); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &sess.Metadata); err != nil {
			return nil, fmt.Errorf("chat: decode session metadata: %w", err)
		}
	}
	return &sess, nil
}

func (s *Store) scanSessionRows(rows pgx.Rows) (*Session, error) {
	sess, err := s.scanSession(rows)
	if err != nil {
		return nil, fmt.Errorf("chat: scan session: %w", err)
	}
	return sess, nil
}
