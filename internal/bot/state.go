package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Conversation flow states held between turns.
const (
	StateMenu           = "menu"
	StateAwaitAccountID = "await_account_id"
)

// StateStore keeps short-lived conversation flow state in Redis. State
// expires on its own so an abandoned chat falls back to a clean slate.
type StateStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStateStore(redisClient *redis.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StateStore{redis: redisClient, ttl: ttl}
}

func (s *StateStore) stateKey(sessionID uuid.UUID) string {
	return "wisrod:bot:state:" + sessionID.String()
}

func (s *StateStore) turnsKey(sessionID uuid.UUID) string {
	return "wisrod:bot:turns:" + sessionID.String()
}

// SetState records the session's flow state and refreshes its TTL.
func (s *StateStore) SetState(ctx context.Context, sessionID uuid.UUID, state string) error {
	if err := s.redis.Set(ctx, s.stateKey(sessionID), state, s.ttl).Err(); err != nil {
		return fmt.Errorf("bot: set state: %w", err)
	}
	return nil
}

// State returns the session's flow state, or "" when none is set or it
// has expired.
func (s *StateStore) State(ctx context.Context, sessionID uuid.UUID) (string, error) {
	val, err := s.redis.Get(ctx, s.stateKey(sessionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("bot: get state: %w", err)
	}
	return val, nil
}

// ClearState drops the session's flow state.
func (s *StateStore) ClearState(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.redis.Del(ctx, s.stateKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("bot: clear state: %w", err)
	}
	return nil
}

// IncrementTurns bumps the session's turn counter and returns the new
// count. The counter shares the state TTL so long-idle chats restart at
// zero.
func (s *StateStore) IncrementTurns(ctx context.Context, sessionID uuid.UUID) (int, error) {
	key := s.turnsKey(sessionID)
	n, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("bot: increment turns: %w", err)
	}
	if err := s.redis.Expire(ctx, key, s.ttl).Err(); err != nil {
		return 0, fmt.Errorf("bot: expire turns: %w", err)
	}
	return int(n), nil
}

// ResetTurns zeroes the session's turn counter.
func (s *StateStore) ResetTurns(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.redis.Del(ctx, s.turnsKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("bot: reset turns: %w", err)
	}
	return nil
}
