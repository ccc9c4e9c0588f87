package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Platforms a session can live on.
const (
	PlatformWhatsApp = "whatsapp"
	PlatformFacebook = "facebook"
	PlatformWeb      = "web"
)

// Session lifecycle states.
const (
	StatusActive  = "active"
	StatusClosed  = "closed"
	StatusPending = "pending"
)

// Channel types carried over from the support taxonomy.
const (
	ChannelSupport = "support"
	ChannelSales   = "sales"
	ChannelGeneral = "general"
)

// Message directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Session metadata keys. Authentication state and the linked core-banking
// account live in the session's metadata document, not in columns.
const (
	MetaAuthenticated = "is_authenticated"
	MetaAccountID     = "account_id"
	MetaWebSessionID  = "web_session_id"
	MetaEscalated     = "escalated"
)

var (
	ErrSessionNotFound = errors.New("chat: session not found")
	ErrSessionClosed   = errors.New("chat: session already closed")
)

// Session is one user's ongoing interaction on a single channel.
type Session struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	AgentID            *uuid.UUID
	Platform           string
	ExternalIdentifier string
	ChannelType        string
	Status             string
	Metadata           map[string]any
	StartedAt          time.Time
	EndedAt            *time.Time
	SatisfactionScore  *int
}

// Authenticated reports whether the session holds a validated account link.
func (s *Session) Authenticated() bool {
	if s == nil || s.Metadata == nil {
		return false
	}
	v, ok := s.Metadata[MetaAuthenticated].(bool)
	return ok && v
}

// AccountID returns the linked core-banking account id, if any.
func (s *Session) AccountID() string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	v, _ := s.Metadata[MetaAccountID].(string)
	return v
}

// Message is a single persisted turn half (inbound or outbound).
type Message struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	Direction  string
	Content    string
	ExternalID string
	Metadata   map[string]any
	CreatedAt  time.Time
}
