package faq

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/wisrod/chat-platform/pkg/logging"
)

var tracer = otel.Tracer("wisrod.internal.faq")

// DefaultThreshold is the minimum similarity score yielding a match.
const DefaultThreshold = 0.7

// priorityBoostStep is the additive boost per priority level above 1.
const priorityBoostStep = 0.02

// Matcher performs best-effort similarity lookup against the FAQ set.
type Matcher struct {
	store     *Store
	threshold float64
	logger    *logging.Logger
}

func NewMatcher(store *Store, threshold float64, logger *logging.Logger) *Matcher {
	if logger == nil {
		logger = logging.Default()
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{store: store, threshold: threshold, logger: logger}
}

// FindMatch scans the active+public rows, scoring the query against each
// question and its recorded variations, and returns the highest scorer at
// or above the threshold. A per-row priority adds a small additive boost.
// Only strictly greater scores advance the best match, so the first-seen
// row wins ties. A returned match has its usage counter bumped exactly once.
func (m *Matcher) FindMatch(ctx context.Context, query string) (*Match, error) {
	ctx, span := tracer.Start(ctx, "faq.find_match")
	defer span.End()

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	candidates, err := m.store.ListCandidates(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var best *FAQ
	var bestScore float64
	for i := range candidates {
		f := &candidates[i]
		score := Ratio(query, strings.ToLower(f.Question))
		for _, variation := range f.Variations {
			if v := Ratio(query, strings.ToLower(variation)); v > score {
				score = v
			}
		}
		score += float64(f.Priority-1) * priorityBoostStep

		if score > bestScore && score >= m.threshold {
			bestScore = score
			best = f
		}
	}

	if best == nil {
		return nil, nil
	}

	if err := m.store.IncrementUsage(ctx, best.ID); err != nil {
		m.logger.Warn("faq: failed to increment usage", "faq_id", best.ID, "error", err)
	}
	return &Match{FAQ: best, Confidence: bestScore}, nil
}
