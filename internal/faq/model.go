package faq

import (
	"time"

	"github.com/google/uuid"
)

// FAQ is a stored question/answer pair used for canned responses.
type FAQ struct {
	ID         uuid.UUID
	Question   string
	Answer     string
	Variations []string
	Priority   int // 1-10, higher means higher priority
	IsActive   bool
	IsPublic   bool
	UsageCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Match is a successful similarity lookup.
type Match struct {
	FAQ        *FAQ
	Confidence float64
}
