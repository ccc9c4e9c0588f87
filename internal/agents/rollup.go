package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wisrod/chat-platform/internal/chat"
	"github.com/wisrod/chat-platform/pkg/logging"
)

// SessionStats is the per-agent activity source the rollup reads.
type SessionStats interface {
	AgentIDsForDay(ctx context.Context, day time.Time) ([]uuid.UUID, error)
	AgentStatsForDay(ctx context.Context, agentID uuid.UUID, day time.Time) (*chat.AgentDailyStats, error)
}

// PerformanceRollup periodically recomputes each active agent's daily
// performance record from the session rows.
type PerformanceRollup struct {
	store    *Store
	stats    SessionStats
	interval time.Duration
	logger   *logging.Logger
}

func NewPerformanceRollup(store *Store, stats SessionStats, interval time.Duration, logger *logging.Logger) *PerformanceRollup {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PerformanceRollup{store: store, stats: stats, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, refreshing the current day's rollup
// once per interval. The upsert keyed on (agent, day) makes repeated runs
// within the same day converge instead of double counting.
func (r *PerformanceRollup) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RollupDay(ctx, time.Now().UTC()); err != nil {
				r.logger.Warn("agents: performance rollup failed", "error", err)
			}
		}
	}
}

// RollupDay recomputes performance records for every agent that handled a
// session on the given day.
func (r *PerformanceRollup) RollupDay(ctx context.Context, day time.Time) error {
	ids, err := r.stats.AgentIDsForDay(ctx, day)
	if err != nil {
		return fmt.Errorf("agents: rollup day: %w", err)
	}
	for _, agentID := range ids {
		stats, err := r.stats.AgentStatsForDay(ctx, agentID, day)
		if err != nil {
			return fmt.Errorf("agents: rollup day: %w", err)
		}
		if err := r.store.UpsertDailyPerformance(ctx, Performance{
			AgentID:         agentID,
			Day:             day,
			ChatsHandled:    stats.ChatsHandled,
			Resolutions:     stats.Resolutions,
			Escalated:       stats.Escalated,
			AvgSatisfaction: stats.AvgSatisfaction,
		}); err != nil {
			return err
		}
	}
	return nil
}
