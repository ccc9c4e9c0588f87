package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wisrod/chat-platform/internal/messaging"
	"github.com/wisrod/chat-platform/pkg/logging"
)

type integrationStore interface {
	GetIntegration(ctx context.Context, platform string) (*messaging.Integration, error)
	UpsertIntegration(ctx context.Context, platform, apiKey, apiSecret string) error
	RecentHealth(ctx context.Context, platform string, limit int) ([]messaging.HealthSample, error)
}

type credentialVerifier interface {
	Verify(ctx context.Context, accountSID, authToken string) (bool, error)
}

var knownPlatforms = map[string]bool{
	"whatsapp": true,
	"facebook": true,
	"web":      true,
}

// AdminIntegrationsHandler manages messaging platform credentials and health.
type AdminIntegrationsHandler struct {
	store    integrationStore
	verifier credentialVerifier
	auditor  auditRecorder
	logger   *logging.Logger
}

func NewAdminIntegrationsHandler(store integrationStore, verifier credentialVerifier, auditor auditRecorder, logger *logging.Logger) *AdminIntegrationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminIntegrationsHandler{store: store, verifier: verifier, auditor: auditor, logger: logger}
}

// GetIntegration returns the active integration for one platform. Secrets are
// never echoed back.
// Route: GET /admin/integrations/{platform}
func (h *AdminIntegrationsHandler) GetIntegration(w http.ResponseWriter, r *http.Request) {
	platform := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "platform")))
	if !knownPlatforms[platform] {
		http.Error(w, "unknown platform", http.StatusBadRequest)
		return
	}
	integration, err := h.store.GetIntegration(r.Context(), platform)
	if err != nil {
		if errors.Is(err, messaging.ErrIntegrationNotFound) {
			http.Error(w, "integration not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin integrations: get failed", "error", err, "platform", platform)
		http.Error(w, "failed to load integration", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"platform":   integration.Platform,
		"is_active":  integration.IsActive,
		"api_key":    maskCredential(integration.APIKey),
		"updated_at": integration.UpdatedAt,
	})
}

type upsertIntegrationRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// UpsertIntegration stores or replaces a platform's credentials after
// verifying them against the provider.
// Route: PUT /admin/integrations/{platform}
func (h *AdminIntegrationsHandler) UpsertIntegration(w http.ResponseWriter, r *http.Request) {
	platform := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "platform")))
	if !knownPlatforms[platform] {
		http.Error(w, "unknown platform", http.StatusBadRequest)
		return
	}
	var req upsertIntegrationRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.APIKey == "" || req.APISecret == "" {
		http.Error(w, "api_key and api_secret required", http.StatusBadRequest)
		return
	}
	if h.verifier != nil {
		ok, err := h.verifier.Verify(r.Context(), req.APIKey, req.APISecret)
		if err != nil {
			h.logger.Error("admin integrations: credential check failed", "error", err, "platform", platform)
			http.Error(w, "credential check unavailable", http.StatusBadGateway)
			return
		}
		if !ok {
			http.Error(w, "credentials rejected by provider", http.StatusUnprocessableEntity)
			return
		}
	}
	if err := h.store.UpsertIntegration(r.Context(), platform, req.APIKey, req.APISecret); err != nil {
		h.logger.Error("admin integrations: upsert failed", "error", err, "platform", platform)
		http.Error(w, "failed to store integration", http.StatusInternalServerError)
		return
	}
	recordAudit(r, h.auditor, h.logger, "integration.credentials_updated", "platform_integration", platform, map[string]any{"api_key": maskCredential(req.APIKey)})
	writeJSON(w, http.StatusOK, map[string]any{"platform": platform, "verified": h.verifier != nil})
}

// VerifyCredentials checks stored credentials against the provider without
// persisting anything.
// Route: POST /admin/integrations/{platform}/verify
func (h *AdminIntegrationsHandler) VerifyCredentials(w http.ResponseWriter, r *http.Request) {
	platform := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "platform")))
	if !knownPlatforms[platform] {
		http.Error(w, "unknown platform", http.StatusBadRequest)
		return
	}
	if h.verifier == nil {
		http.Error(w, "credential verification not configured", http.StatusServiceUnavailable)
		return
	}
	integration, err := h.store.GetIntegration(r.Context(), platform)
	if err != nil {
		if errors.Is(err, messaging.ErrIntegrationNotFound) {
			http.Error(w, "integration not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin integrations: get failed", "error", err, "platform", platform)
		http.Error(w, "failed to load integration", http.StatusInternalServerError)
		return
	}
	ok, err := h.verifier.Verify(r.Context(), integration.APIKey, integration.APISecret)
	if err != nil {
		h.logger.Error("admin integrations: credential check failed", "error", err, "platform", platform)
		http.Error(w, "credential check unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"platform": platform, "valid": ok})
}

// GetHealth returns recent delivery health samples for one platform.
// Route: GET /admin/integrations/{platform}/health
func (h *AdminIntegrationsHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	platform := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "platform")))
	if !knownPlatforms[platform] {
		http.Error(w, "unknown platform", http.StatusBadRequest)
		return
	}
	samples, err := h.store.RecentHealth(r.Context(), platform, 50)
	if err != nil {
		h.logger.Error("admin integrations: health query failed", "error", err, "platform", platform)
		http.Error(w, "failed to load health samples", http.StatusInternalServerError)
		return
	}
	type healthResponse struct {
		Status         string    `json:"status"`
		MessagesSent   int       `json:"messages_sent"`
		MessagesFailed int       `json:"messages_failed"`
		RecordedAt     time.Time `json:"recorded_at"`
	}
	out := make([]healthResponse, 0, len(samples))
	for _, s := range samples {
		out = append(out, healthResponse{
			Status:         s.Status,
			MessagesSent:   s.MessagesSent,
			MessagesFailed: s.MessagesFailed,
			RecordedAt:     s.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"platform": platform, "samples": out})
}

// maskCredential keeps the last four characters for recognition.
func maskCredential(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
