package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/wisrod/chat-platform/pkg/logging"
)

var tracer = otel.Tracer("wisrod.internal.accounts")

var (
	// ErrUnauthorized means the core-banking API rejected our credentials.
	ErrUnauthorized = errors.New("accounts: core api session invalid or expired")
	// ErrForbidden means our credentials lack the lookup permission.
	ErrForbidden = errors.New("accounts: insufficient permissions for core api")
)

// Debt is one outstanding loan on a core-banking account.
type Debt struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	Principal float64 `json:"principal"`
	Balance   float64 `json:"balance"`
	DueDate   string  `json:"due_date"`
}

// Account is the core-banking view of a customer account.
type Account struct {
	ExternalID   string `json:"external_id"`
	CustomerName string `json:"customer_name"`
	Debts        []Debt `json:"debts"`
}

type lookupRequest struct {
	Accounts []string       `json:"accounts"`
	Debts    map[string]any `json:"debts"`
}

type lookupResponse struct {
	Accounts []Account `json:"accounts"`
}

// Client talks to the Instafin core-banking API over HTTP basic auth.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewClient(baseURL, username, password string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// LookupAccount fetches an account and its debts by external identifier.
// Returns (nil, nil) when the identifier is unknown to the core system, so
// callers can treat "not found" as a validation failure instead of an outage.
func (c *Client) LookupAccount(ctx context.Context, accountID string) (*Account, error) {
	ctx, span := tracer.Start(ctx, "accounts.lookup")
	defer span.End()

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("accounts: account identifier required")
	}

	// The debts key must be present even when empty.
	body, err := json.Marshal(lookupRequest{Accounts: []string{accountID}, Debts: map[string]any{}})
	if err != nil {
		return nil, fmt.Errorf("accounts: marshal lookup request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		account, err := c.doLookup(ctx, body)
		if err == nil {
			return account, nil
		}
		// Credential problems will not fix themselves on retry.
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
			span.RecordError(err)
			return nil, err
		}
		lastErr = err
		c.logger.Warn("accounts: lookup attempt failed", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	span.RecordError(lastErr)
	return nil, fmt.Errorf("accounts: lookup failed after retries: %w", lastErr)
}

func (c *Client) doLookup(ctx context.Context, body []byte) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit/account.LookupDebts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("accounts: build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("accounts: call core api: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out lookupResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("accounts: decode lookup response: %w", err)
		}
		if len(out.Accounts) == 0 {
			return nil, nil
		}
		return &out.Accounts[0], nil
	case http.StatusBadRequest:
		// Field-level validation failure means the identifier is malformed
		// or unknown, not that the service is down.
		c.logValidationErrors(resp.Body)
		return nil, nil
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusForbidden:
		return nil, ErrForbidden
	default:
		return nil, fmt.Errorf("accounts: unexpected core api status %d", resp.StatusCode)
	}
}

func (c *Client) logValidationErrors(body io.Reader) {
	var fields []struct {
		FieldRef string `json:"fieldRef"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		return
	}
	for _, f := range fields {
		c.logger.Warn("accounts: core api validation error", "field", f.FieldRef, "message", f.Message)
	}
}
