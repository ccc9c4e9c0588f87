package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/wisrod/chat-platform/pkg/logging"
)

// Collector periodically rolls platform counters into metrics_snapshots.
type Collector struct {
	service  *Service
	interval time.Duration
	logger   *logging.Logger
}

func NewCollector(service *Service, interval time.Duration, logger *logging.Logger) *Collector {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Collector{service: service, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, taking one snapshot per interval.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.collect(ctx); err != nil {
				c.logger.Warn("monitoring: snapshot collection failed", "error", err)
			}
		}
	}
}

func (c *Collector) collect(ctx context.Context) error {
	snap, err := c.measure(ctx)
	if err != nil {
		return err
	}
	return c.service.Snapshot(ctx, snap)
}

func (c *Collector) measure(ctx context.Context) (MetricsSnapshot, error) {
	var snap MetricsSnapshot
	const query = `
		SELECT
			(SELECT COUNT(*) FROM chat_sessions WHERE status = 'active'),
			(SELECT COUNT(*) FROM platform_messages WHERE created_at >= now() - interval '1 hour'),
			(SELECT COALESCE(AVG(CASE WHEN usage_count > 0 THEN 1.0 ELSE 0.0 END), 0) FROM faqs WHERE is_active),
			(SELECT COUNT(*) FROM agent_availability WHERE status = 'available')
	`
	row := c.service.db.QueryRowContext(ctx, query)
	if err := row.Scan(&snap.ActiveSessions, &snap.MessagesHandled, &snap.FAQHitRate, &snap.AgentsAvailable); err != nil {
		return snap, fmt.Errorf("monitoring: measure snapshot: %w", err)
	}
	return snap, nil
}
