package agents

import (
	"context"
	"errors"

	"github.com/wisrod/chat-platform/pkg/logging"
)

// Assigner picks a human agent for an escalated chat.
type Assigner struct {
	store  *Store
	logger *logging.Logger
}

func NewAssigner(store *Store, logger *logging.Logger) *Assigner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Assigner{store: store, logger: logger}
}

// PickAgent claims the least busy qualifying agent. Candidates are tried in
// capacity order; a candidate another assignment filled in the meantime is
// skipped rather than overloaded. Returns ErrNoAgents when nobody can take
// the chat.
func (a *Assigner) PickAgent(ctx context.Context, skills []string) (*Availability, error) {
	candidates, err := a.store.FindAvailable(ctx, skills, 10)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidate := candidates[i]
		if err := a.store.Assign(ctx, candidate.ID); err != nil {
			if errors.Is(err, ErrAtCapacity) {
				a.logger.Debug("agents: candidate filled up, trying next", "agent_id", candidate.ID)
				continue
			}
			return nil, err
		}
		candidate.CurrentChats++
		if candidate.CurrentChats >= candidate.MaxConcurrentChats {
			candidate.Status = StatusBusy
		}
		return &candidate, nil
	}
	return nil, ErrNoAgents
}
