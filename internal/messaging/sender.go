package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wisrod/chat-platform/internal/observability/metrics"
	"github.com/wisrod/chat-platform/pkg/logging"
)

var senderTracer = otel.Tracer("wisrod.internal.messaging.sender")

// healthRecorder receives one delivery health sample per send outcome.
type healthRecorder interface {
	RecordHealth(ctx context.Context, sample HealthSample) error
}

// TwilioSender posts outbound WhatsApp and Messenger messages through
// Twilio's REST API.
type TwilioSender struct {
	accountSID          string
	authToken           string
	whatsappFrom        string
	facebookPageID      string
	messagingServiceSID string
	baseURL             string
	httpClient          *http.Client
	health              healthRecorder
	metrics             *metrics.ChatMetrics
	logger              *logging.Logger
}

type TwilioSenderConfig struct {
	AccountSID          string
	AuthToken           string
	WhatsAppFrom        string
	FacebookPageID      string
	MessagingServiceSID string
	// BaseURL overrides the Twilio API host, for tests.
	BaseURL string
}

func NewTwilioSender(cfg TwilioSenderConfig, health healthRecorder, m *metrics.ChatMetrics, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &TwilioSender{
		accountSID:          cfg.AccountSID,
		authToken:           cfg.AuthToken,
		whatsappFrom:        cfg.WhatsAppFrom,
		facebookPageID:      cfg.FacebookPageID,
		messagingServiceSID: cfg.MessagingServiceSID,
		baseURL:             strings.TrimRight(baseURL, "/"),
		httpClient:          &http.Client{Timeout: 10 * time.Second},
		health:              health,
		metrics:             m,
		logger:              logger,
	}
}

// SendWhatsApp delivers a WhatsApp message. Returns the provider message sid.
func (s *TwilioSender) SendWhatsApp(ctx context.Context, to, body string) (string, error) {
	return s.send(ctx, "whatsapp", whatsappPrefix+s.whatsappFrom, whatsappPrefix+strings.TrimPrefix(to, whatsappPrefix), body)
}

// SendMessenger delivers a Facebook Messenger message. Returns the provider
// message sid.
func (s *TwilioSender) SendMessenger(ctx context.Context, to, body string) (string, error) {
	return s.send(ctx, "facebook", messengerPrefix+s.facebookPageID, messengerPrefix+strings.TrimPrefix(to, messengerPrefix), body)
}

func (s *TwilioSender) send(ctx context.Context, platform, from, to, body string) (string, error) {
	if s.accountSID == "" || s.authToken == "" {
		return "", errors.New("messaging: twilio credentials missing")
	}
	if strings.TrimSpace(body) == "" {
		return "", errors.New("messaging: body required")
	}

	ctx, span := senderTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("wisrod.platform", platform),
		attribute.String("wisrod.to", to),
	)

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", from)
	payload.Set("Body", body)
	if platform == "facebook" && s.messagingServiceSID != "" {
		payload.Set("MessagingServiceSid", s.messagingServiceSID)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					SID    string `json:"sid"`
					Status string `json:"status"`
				}
				_ = json.Unmarshal(respBody, &parsed)
				s.metrics.ObserveOutbound(platform, "sent")
				s.recordHealth(ctx, platform, HealthUp, 1, 0, nil)
				s.logger.Info("messaging: twilio message sent", "platform", platform, "to", to, "sid", parsed.SID)
				return parsed.SID, nil
			}
			lastErr = fmt.Errorf("messaging: twilio send failed: %s", formatTwilioError(resp.StatusCode, respBody))
			// Non-rate-limit 4xx errors will not succeed on retry.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}

		if attempt < 3 {
			time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}

	s.metrics.ObserveOutbound(platform, "failed")
	details := map[string]any{}
	if lastErr != nil {
		span.RecordError(lastErr)
		details["last_error"] = lastErr.Error()
	}
	s.recordHealth(ctx, platform, HealthDegraded, 0, 1, details)
	return "", lastErr
}

func (s *TwilioSender) recordHealth(ctx context.Context, platform, status string, sent, failed int, details map[string]any) {
	if s.health == nil {
		return
	}
	if err := s.health.RecordHealth(ctx, HealthSample{
		Platform:       platform,
		Status:         status,
		MessagesSent:   sent,
		MessagesFailed: failed,
		Details:        details,
	}); err != nil {
		s.logger.Warn("messaging: could not record health sample", "platform", platform, "error", err)
	}
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
