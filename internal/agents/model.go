package agents

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Agent availability statuses.
const (
	StatusAvailable = "available"
	StatusBusy      = "busy"
	StatusOffline   = "offline"
	StatusBreak     = "break"
)

var (
	ErrAgentNotFound = errors.New("agents: agent not found")
	// ErrAtCapacity is returned when an assignment races the agent past
	// their concurrent chat limit.
	ErrAtCapacity    = errors.New("agents: agent at capacity")
	ErrNoAgents      = errors.New("agents: no agents available")
	ErrInvalidStatus = errors.New("agents: invalid status")
)

var validStatuses = map[string]bool{
	StatusAvailable: true,
	StatusBusy:      true,
	StatusOffline:   true,
	StatusBreak:     true,
}

// Availability is one agent's live capacity record.
type Availability struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Status             string
	CurrentChats       int
	MaxConcurrentChats int
	AutoAssignEnabled  bool
	Skills             []string
	LastActiveAt       time.Time
	UpdatedAt          time.Time
}

// HasCapacity reports whether the agent can take one more chat.
func (a *Availability) HasCapacity() bool {
	return a.CurrentChats < a.MaxConcurrentChats
}

// Performance is one agent's rollup for a calendar day.
type Performance struct {
	ID              uuid.UUID
	AgentID         uuid.UUID
	Day             time.Time
	ChatsHandled    int
	Resolutions     int
	Escalated       int
	AvgSatisfaction *float64
	AvgResponseSecs *float64
}
