package users

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a user lookup misses.
var ErrUserNotFound = errors.New("users: user not found")

// Account tiers mirror the customer segmentation used for escalation rules.
const (
	TierStandard = "standard"
	TierPremium  = "premium"
	TierVIP      = "vip"
)

// User is a customer or web visitor identity.
type User struct {
	ID            uuid.UUID
	Username      string
	PhoneNumber   string
	Email         string
	FirstName     string
	LastName      string
	AccountTier   string
	CoreAccountID string
	IsActive      bool
	IsVerified    bool
	CreatedAt     time.Time
}
