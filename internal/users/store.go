package users

import (
	"context"
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

// Store persists user identities in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

const userColumns = `id, username, phone_number, email, first_name, last_name,
		account_tier, core_account_id, is_active, is_verified, created_at`

// GetOrCreateByPhone resolves a user by phone number, creating it on first
// contact. The unique index on phone_number makes concurrent first contacts
// converge on a single row: the losing insert becomes a no-op and the
// follow-up select sees the winner.
func (s *Store) GetOrCreateByPhone(ctx context.Context, phone string) (*User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("users: phone required")
	}
	insert := `
		INSERT INTO users (id, username, phone_number, account_tier, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (phone_number) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, insert, uuid.New(), phone, phone, TierStandard); err != nil {
		return nil, fmt.Errorf("users: insert by phone: %w", err)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1`
	user, err := s.scanOne(s.pool.QueryRow(ctx, query, phone))
	if err != nil {
		return nil, fmt.Errorf("users: lookup by phone: %w", err)
	}
	return user, nil
}

// GetOrCreateWebUser resolves the synthetic identity backing an anonymous
// web chat session.
func (s *Store) GetOrCreateWebUser(ctx context.Context, webSessionID string) (*User, error) {
	webSessionID = strings.TrimSpace(webSessionID)
	if webSessionID == "" {
		return nil, fmt.Errorf("users: web session id required")
	}
	username := "web_" + webSessionID
	insert := `
		INSERT INTO users (id, username, phone_number, account_tier, is_active, is_verified)
		VALUES ($1, $2, $3, $4, TRUE, FALSE)
		ON CONFLICT (username) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, insert, uuid.New(), username, username, TierStandard); err != nil {
		return nil, fmt.Errorf("users: insert web user: %w", err)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := s.scanOne(s.pool.QueryRow(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("users: lookup web user: %w", err)
	}
	return user, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := s.scanOne(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("users: get by id: %w", err)
	}
	return user, nil
}

// SetCoreAccountID links a validated core-banking account to the user and
// marks the identity verified.
func (s *Store) SetCoreAccountID(ctx context.Context, id uuid.UUID, accountID string) error {
	query := `
		UPDATE users
		SET core_account_id = $2,
			is_verified = TRUE
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("users: set core account id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Store) scanOne(row pgx.Row) (*User, error) {
	var u User
	var phone, email, coreAccount *string
	if err := row.Scan(&u.ID, &u.Username, &phone, &email, &u.FirstName, &u.LastName,
		&u.AccountTier, &coreAccount, &u.IsActive, &u.IsVerified, &u.CreatedAt); err != nil {
		return nil, err
	}
	if phone != nil {
		u.PhoneNumber = *phone
	}
	if email != nil {
		u.Email = *email
	}
	if coreAccount != nil {
		u.CoreAccountID = *coreAccount
	}
	return &u, nil
}
