package messaging

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CredentialVerifier checks stored Twilio credentials against the provider.
type CredentialVerifier struct {
	baseURL    string
	httpClient *http.Client
}

func NewCredentialVerifier(baseURL string) *CredentialVerifier {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &CredentialVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify calls the provider's account endpoint with the given credentials.
// A 2xx means the credentials are live; 401/403 means they are not.
func (v *CredentialVerifier) Verify(ctx context.Context, accountSID, authToken string) (bool, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s.json", v.baseURL, accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("messaging: build verify request: %w", err)
	}
	req.SetBasicAuth(accountSID, authToken)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("messaging: verify credentials: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("messaging: verify credentials: unexpected status %d", resp.StatusCode)
	}
}
