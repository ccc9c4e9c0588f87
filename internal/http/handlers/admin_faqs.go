package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisrod/chat-platform/internal/faq"
	"github.com/wisrod/chat-platform/pkg/logging"
)

type faqRepository interface {
	List(ctx context.Context, limit int) ([]faq.FAQ, error)
	Create(ctx context.Context, f faq.FAQ) (uuid.UUID, error)
	Update(ctx context.Context, f faq.FAQ) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// AdminFAQsHandler manages the FAQ knowledge base behind the matcher.
type AdminFAQsHandler struct {
	store   faqRepository
	auditor auditRecorder
	logger  *logging.Logger
}

func NewAdminFAQsHandler(store faqRepository, auditor auditRecorder, logger *logging.Logger) *AdminFAQsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminFAQsHandler{store: store, auditor: auditor, logger: logger}
}

type faqPayload struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Variations []string `json:"variations"`
	Priority   int      `json:"priority"`
	IsActive   bool     `json:"is_active"`
	IsPublic   bool     `json:"is_public"`
}

type faqResponse struct {
	ID         uuid.UUID `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Variations []string  `json:"variations"`
	Priority   int       `json:"priority"`
	IsActive   bool      `json:"is_active"`
	IsPublic   bool      `json:"is_public"`
	UsageCount int       `json:"usage_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toFAQResponse(f faq.FAQ) faqResponse {
	variations := f.Variations
	if variations == nil {
		variations = []string{}
	}
	return faqResponse{
		ID:         f.ID,
		Question:   f.Question,
		Answer:     f.Answer,
		Variations: variations,
		Priority:   f.Priority,
		IsActive:   f.IsActive,
		IsPublic:   f.IsPublic,
		UsageCount: f.UsageCount,
		UpdatedAt:  f.UpdatedAt,
	}
}

// List returns FAQ rows ordered by priority then usage.
// Route: GET /admin/faqs?limit=100
func (h *AdminFAQsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	faqs, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("admin faqs: list failed", "error", err)
		http.Error(w, "failed to list faqs", http.StatusInternalServerError)
		return
	}
	out := make([]faqResponse, 0, len(faqs))
	for _, f := range faqs {
		out = append(out, toFAQResponse(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"faqs": out})
}

// Create adds a new FAQ row.
// Route: POST /admin/faqs
func (h *AdminFAQsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req faqPayload
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id, err := h.store.Create(r.Context(), faq.FAQ{
		Question:   req.Question,
		Answer:     req.Answer,
		Variations: req.Variations,
		Priority:   req.Priority,
		IsActive:   req.IsActive,
		IsPublic:   req.IsPublic,
	})
	if err != nil {
		h.logger.Error("admin faqs: create failed", "error", err)
		http.Error(w, "failed to create faq", http.StatusBadRequest)
		return
	}
	recordAudit(r, h.auditor, h.logger, "faq.created", "faq", id.String(), map[string]any{"question": req.Question})
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// Update replaces an existing FAQ row's editable fields.
// Route: PUT /admin/faqs/{faqID}
func (h *AdminFAQsHandler) Update(w http.ResponseWriter, r *http.Request) {
	faqID, err := uuid.Parse(chi.URLParam(r, "faqID"))
	if err != nil {
		http.Error(w, "faqID must be a UUID", http.StatusBadRequest)
		return
	}
	var req faqPayload
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err = h.store.Update(r.Context(), faq.FAQ{
		ID:         faqID,
		Question:   req.Question,
		Answer:     req.Answer,
		Variations: req.Variations,
		Priority:   req.Priority,
		IsActive:   req.IsActive,
		IsPublic:   req.IsPublic,
	})
	if err != nil {
		h.logger.Error("admin faqs: update failed", "error", err, "faq_id", faqID)
		http.Error(w, "failed to update faq", http.StatusBadRequest)
		return
	}
	recordAudit(r, h.auditor, h.logger, "faq.updated", "faq", faqID.String(), map[string]any{"question": req.Question})
	writeJSON(w, http.StatusOK, map[string]any{"id": faqID})
}

type setFAQActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive toggles a row in or out of the matcher's candidate set.
// Route: POST /admin/faqs/{faqID}/active
func (h *AdminFAQsHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	faqID, err := uuid.Parse(chi.URLParam(r, "faqID"))
	if err != nil {
		http.Error(w, "faqID must be a UUID", http.StatusBadRequest)
		return
	}
	var req setFAQActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.store.SetActive(r.Context(), faqID, req.Active); err != nil {
		h.logger.Error("admin faqs: set active failed", "error", err, "faq_id", faqID)
		http.Error(w, "failed to update faq", http.StatusNotFound)
		return
	}
	recordAudit(r, h.auditor, h.logger, "faq.active_updated", "faq", faqID.String(), map[string]any{"active": req.Active})
	writeJSON(w, http.StatusOK, map[string]any{"id": faqID, "is_active": req.Active})
}
