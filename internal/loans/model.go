package loans

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Application statuses.
const (
	StatusDraft       = "draft"
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
	StatusDisbursed   = "disbursed"
)

// Risk categories assigned at review time.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

var (
	ErrProductNotFound     = errors.New("loans: product not found")
	ErrApplicationNotFound = errors.New("loans: application not found")
	// ErrBadTransition is returned when an application is moved out of a
	// status that does not allow the requested transition.
	ErrBadTransition    = errors.New("loans: invalid status transition")
	ErrAmountOutOfRange = errors.New("loans: amount outside product limits")
)

// Product is a loan offering customers can apply for.
type Product struct {
	ID                uuid.UUID
	Name              string
	Description       string
	MinAmount         float64
	MaxAmount         float64
	InterestRate      float64
	TermMonths        int
	RequiredDocuments []string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Application is one customer's request for a loan product.
type Application struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	ProductID       uuid.UUID
	AmountRequested float64
	Purpose         string
	Status          string
	CreditScore     *int
	RiskCategory    string
	DecisionNote    string
	DecidedBy       *uuid.UUID
	DecidedAt       *time.Time
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
