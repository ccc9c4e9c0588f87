package faq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pool subset the store needs; pgxmock satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists FAQ rows in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// ListCandidates returns the active+public rows the matcher scans,
// highest priority first so ties resolve the way the admin ordered them.
func (s *Store) ListCandidates(ctx context.Context) ([]FAQ, error) {
	query := `
		SELECT id, question, answer, variations, priority, is_active, is_public, usage_count, created_at, updated_at
		FROM faqs
		WHERE is_active AND is_public
		ORDER BY priority DESC, usage_count DESC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("faq: list candidates: %w", err)
	}
	defer rows.Close()
	return scanFAQs(rows)
}

// List returns all rows for the admin surface.
func (s *Store) List(ctx context.Context, limit int) ([]FAQ, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, question, answer, variations, priority, is_active, is_public, usage_count, created_at, updated_at
		FROM faqs
		ORDER BY priority DESC, usage_count DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("faq: list: %w", err)
	}
	defer rows.Close()
	return scanFAQs(rows)
}

// Create inserts a new FAQ row.
func (s *Store) Create(ctx context.Context, f FAQ) (uuid.UUID, error) {
	if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
		return uuid.Nil, fmt.Errorf("faq: question and answer required")
	}
	if f.Priority < 1 {
		f.Priority = 1
	}
	if f.Priority > 10 {
		f.Priority = 10
	}
	if f.Variations == nil {
		f.Variations = []string{}
	}
	variations, err := json.Marshal(f.Variations)
	if err != nil {
		return uuid.Nil, fmt.Errorf("faq: marshal variations: %w", err)
	}
	query := `
		INSERT INTO faqs (question, answer, variations, priority, is_active, is_public)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, query, f.Question, f.Answer, variations, f.Priority, f.IsActive, f.IsPublic).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("faq: insert: %w", err)
	}
	return id, nil
}

// Update replaces the editable fields of an existing FAQ row.
func (s *Store) Update(ctx context.Context, f FAQ) error {
	if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
		return fmt.Errorf("faq: question and answer required")
	}
	if f.Priority < 1 {
		f.Priority = 1
	}
	if f.Priority > 10 {
		f.Priority = 10
	}
	if f.Variations == nil {
		f.Variations = []string{}
	}
	variations, err := json.Marshal(f.Variations)
	if err != nil {
		return fmt.Errorf("faq: marshal variations: %w", err)
	}
	query := `
		UPDATE faqs
		SET question = $2, answer = $3, variations = $4, priority = $5, is_active = $6, is_public = $7, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, f.ID, f.Question, f.Answer, variations, f.Priority, f.IsActive, f.IsPublic)
	if err != nil {
		return fmt.Errorf("faq: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("faq: row not found")
	}
	return nil
}

// IncrementUsage bumps the usage counter for a matched row.
func (s *Store) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE faqs SET usage_count = usage_count + 1 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("faq: increment usage: %w", err)
	}
	return nil
}

// SetActive toggles a row in or out of the matcher's candidate set.
func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE faqs SET is_active = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("faq: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("faq: row not found")
	}
	return nil
}

func scanFAQs(rows pgx.Rows) ([]FAQ, error) {
	var out []FAQ
	for rows.Next() {
		var f FAQ
		var variations []byte
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer, &variations, &f.Priority,
			&f.IsActive, &f.IsPublic, &f.UsageCount, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("faq: scan row: %w", err)
		}
		if len(variations) > 0 {
			if err := json.Unmarshal(variations, &f.Variations); err != nil {
				return nil, fmt.Errorf("faq: decode variations: %w", err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
