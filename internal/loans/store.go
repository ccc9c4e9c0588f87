package loans

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("wisrod.internal.loans")

// PgxPool is the pool subset the store needs; pgxmock satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists loan products and applications in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

const productColumns = `id, name, description, min_amount, max_amount, interest_rate,
		term_months, required_documents, is_active, created_at, updated_at`

// ListProducts returns loan products, optionally only active ones.
func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM loan_products
		WHERE NOT $1 OR is_active
		ORDER BY name
	`
	rows, err := s.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("loans: list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("loans: scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetProduct returns one loan product.
func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM loan_products WHERE id = $1`
	p, err := scanProduct(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("loans: get product: %w", err)
	}
	return p, nil
}

// CreateProduct stores a new loan product.
func (s *Store) CreateProduct(ctx context.Context, p Product) (uuid.UUID, error) {
	if p.MinAmount < 0 || p.MaxAmount < p.MinAmount {
		return uuid.Nil, fmt.Errorf("loans: invalid amount range %v-%v", p.MinAmount, p.MaxAmount)
	}
	docs, err := json.Marshal(nonNil(p.RequiredDocuments))
	if err != nil {
		return uuid.Nil, fmt.Errorf("loans: marshal required documents: %w", err)
	}
	query := `
		INSERT INTO loan_products (name, description, min_amount, max_amount, interest_rate, term_months, required_documents, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, query, p.Name, p.Description, p.MinAmount, p.MaxAmount,
		p.InterestRate, p.TermMonths, docs, p.IsActive).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("loans: insert product: %w", err)
	}
	return id, nil
}

const applicationColumns = `id, user_id, product_id, amount_requested, purpose, status,
		credit_score, risk_category, decision_note, decided_by, decided_at, metadata, created_at, updated_at`

// CreateApplication opens a draft application after validating the amount
// against the product limits.
func (s *Store) CreateApplication(ctx context.Context, app Application) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "loans.create_application")
	defer span.End()

	product, err := s.GetProduct(ctx, app.ProductID)
	if err != nil {
		return uuid.Nil, err
	}
	if app.AmountRequested < product.MinAmount || app.AmountRequested > product.MaxAmount {
		return uuid.Nil, ErrAmountOutOfRange
	}

	meta, err := json.Marshal(nonNilMap(app.Metadata))
	if err != nil {
		return uuid.Nil, fmt.Errorf("loans: marshal application metadata: %w", err)
	}
	query := `
		INSERT INTO loan_applications (user_id, product_id, amount_requested, purpose, status, metadata)
		VALUES ($1, $2, $3, $4, 'draft', $5)
		RETURNING id
	`
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, query, app.UserID, app.ProductID, app.AmountRequested, app.Purpose, meta).Scan(&id); err != nil {
		span.RecordError(err)
		return uuid.Nil, fmt.Errorf("loans: insert application: %w", err)
	}
	return id, nil
}

// GetApplication returns one application.
func (s *Store) GetApplication(ctx context.Context, id uuid.UUID) (*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan_applications WHERE id = $1`
	app, err := scanApplication(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("loans: get application: %w", err)
	}
	return app, nil
}

// ListApplicationsByUser returns a user's applications, newest first.
func (s *Store) ListApplicationsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Application, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + applicationColumns + `
		FROM loan_applications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loans: list applications: %w", err)
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("loans: scan application: %w", err)
		}
		out = append(out, *app)
	}
	return out, rows.Err()
}

// Submit moves a draft application to submitted. Only drafts can be
// submitted; the WHERE clause enforces the transition so a double submit
// fails instead of silently rewriting state.
func (s *Store) Submit(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "loans.submit")
	defer span.End()

	query := `
		UPDATE loan_applications
		SET status = 'submitted', updated_at = now()
		WHERE id = $1 AND status = 'draft'
	`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("loans: submit application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBadTransition
	}
	return nil
}

// MarkUnderReview moves a submitted application into review with its
// scoring results.
func (s *Store) MarkUnderReview(ctx context.Context, id uuid.UUID, creditScore int, riskCategory string) error {
	query := `
		UPDATE loan_applications
		SET status = 'under_review', credit_score = $2, risk_category = $3, updated_at = now()
		WHERE id = $1 AND status = 'submitted'
	`
	tag, err := s.pool.Exec(ctx, query, id, creditScore, riskCategory)
	if err != nil {
		return fmt.Errorf("loans: mark under review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBadTransition
	}
	return nil
}

// Decide approves or rejects an application under review. The decision
// timestamp and decider are stamped exactly once; deciding twice returns
// ErrBadTransition.
func (s *Store) Decide(ctx context.Context, id, decidedBy uuid.UUID, approve bool, note string) error {
	ctx, span := tracer.Start(ctx, "loans.decide")
	defer span.End()

	status := StatusRejected
	if approve {
		status = StatusApproved
	}
	query := `
		UPDATE loan_applications
		SET status = $2,
			decision_note = $3,
			decided_by = $4,
			decided_at = now(),
			updated_at = now()
		WHERE id = $1 AND status IN ('submitted', 'under_review')
	`
	tag, err := s.pool.Exec(ctx, query, id, status, note, decidedBy)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("loans: decide application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBadTransition
	}
	return nil
}

// MarkDisbursed closes out an approved application once funds move.
func (s *Store) MarkDisbursed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE loan_applications
		SET status = 'disbursed', updated_at = now()
		WHERE id = $1 AND status = 'approved'
	`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("loans: mark disbursed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBadTransition
	}
	return nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var docs []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.MinAmount, &p.MaxAmount, &p.InterestRate,
		&p.TermMonths, &docs, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &p.RequiredDocuments); err != nil {
			return nil, fmt.Errorf("loans: decode required documents: %w", err)
		}
	}
	return &p, nil
}

func scanApplication(row pgx.Row) (*Application, error) {
	var app Application
	var meta []byte
	var risk, note *string
	if err := row.Scan(&app.ID, &app.UserID, &app.ProductID, &app.AmountRequested, &app.Purpose, &app.Status,
		&app.CreditScore, &risk, &note, &app.DecidedBy, &app.DecidedAt, &meta, &app.CreatedAt, &app.UpdatedAt); err != nil {
		return nil, err
	}
	if risk != nil {
		app.RiskCategory = *risk
	}
	if note != nil {
		app.DecisionNote = strings.TrimSpace(*note)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &app.Metadata); err != nil {
			return nil, fmt.Errorf("loans: decode application metadata: %w", err)
		}
	}
	return &app, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
