package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisrod/chat-platform/internal/http/middleware"
	"github.com/wisrod/chat-platform/internal/loans"
	"github.com/wisrod/chat-platform/pkg/logging"
)

type loanRepository interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]loans.Product, error)
	CreateProduct(ctx context.Context, p loans.Product) (uuid.UUID, error)
	CreateApplication(ctx context.Context, app loans.Application) (uuid.UUID, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*loans.Application, error)
	ListApplicationsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]loans.Application, error)
	Submit(ctx context.Context, id uuid.UUID) error
	MarkUnderReview(ctx context.Context, id uuid.UUID, creditScore int, riskCategory string) error
	Decide(ctx context.Context, id, decidedBy uuid.UUID, approve bool, note string) error
	MarkDisbursed(ctx context.Context, id uuid.UUID) error
}

// AdminLoansHandler exposes loan products and application workflow to the
// admin API.
type AdminLoansHandler struct {
	store   loanRepository
	auditor auditRecorder
	logger  *logging.Logger
}

func NewAdminLoansHandler(store loanRepository, auditor auditRecorder, logger *logging.Logger) *AdminLoansHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminLoansHandler{store: store, auditor: auditor, logger: logger}
}

type productResponse struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	MinAmount         float64   `json:"min_amount"`
	MaxAmount         float64   `json:"max_amount"`
	InterestRate      float64   `json:"interest_rate"`
	TermMonths        int       `json:"term_months"`
	RequiredDocuments []string  `json:"required_documents"`
	IsActive          bool      `json:"is_active"`
}

type applicationResponse struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	ProductID       uuid.UUID  `json:"product_id"`
	AmountRequested float64    `json:"amount_requested"`
	Purpose         string     `json:"purpose"`
	Status          string     `json:"status"`
	CreditScore     *int       `json:"credit_score,omitempty"`
	RiskCategory    string     `json:"risk_category,omitempty"`
	DecisionNote    string     `json:"decision_note,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toApplicationResponse(app loans.Application) applicationResponse {
	return applicationResponse{
		ID:              app.ID,
		UserID:          app.UserID,
		ProductID:       app.ProductID,
		AmountRequested: app.AmountRequested,
		Purpose:         app.Purpose,
		Status:          app.Status,
		CreditScore:     app.CreditScore,
		RiskCategory:    app.RiskCategory,
		DecisionNote:    app.DecisionNote,
		DecidedAt:       app.DecidedAt,
		CreatedAt:       app.CreatedAt,
	}
}

// ListProducts returns loan products.
// Route: GET /admin/loans/products?active=true
func (h *AdminLoansHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	products, err := h.store.ListProducts(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("admin loans: list products failed", "error", err)
		http.Error(w, "failed to list products", http.StatusInternalServerError)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		docs := p.RequiredDocuments
		if docs == nil {
			docs = []string{}
		}
		out = append(out, productResponse{
			ID:                p.ID,
			Name:              p.Name,
			Description:       p.Description,
			MinAmount:         p.MinAmount,
			MaxAmount:         p.MaxAmount,
			InterestRate:      p.InterestRate,
			TermMonths:        p.TermMonths,
			RequiredDocuments: docs,
			IsActive:          p.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out})
}

type createProductRequest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	MinAmount         float64  `json:"min_amount"`
	MaxAmount         float64  `json:"max_amount"`
	InterestRate      float64  `json:"interest_rate"`
	TermMonths        int      `json:"term_months"`
	RequiredDocuments []string `json:"required_documents"`
	IsActive          bool     `json:"is_active"`
}

// CreateProduct adds a loan product.
// Route: POST /admin/loans/products
func (h *AdminLoansHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id, err := h.store.CreateProduct(r.Context(), loans.Product{
		Name:              req.Name,
		Description:       req.Description,
		MinAmount:         req.MinAmount,
		MaxAmount:         req.MaxAmount,
		InterestRate:      req.InterestRate,
		TermMonths:        req.TermMonths,
		RequiredDocuments: req.RequiredDocuments,
		IsActive:          req.IsActive,
	})
	if err != nil {
		h.logger.Error("admin loans: create product failed", "error", err)
		http.Error(w, "failed to create product", http.StatusBadRequest)
		return
	}
	recordAudit(r, h.auditor, h.logger, "loan_product.created", "loan_product", id.String(), map[string]any{"name": req.Name})
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type createApplicationRequest struct {
	UserID          uuid.UUID `json:"user_id"`
	ProductID       uuid.UUID `json:"product_id"`
	AmountRequested float64   `json:"amount_requested"`
	Purpose         string    `json:"purpose"`
}

// CreateApplication opens a draft application on a user's behalf.
// Route: POST /admin/loans/applications
func (h *AdminLoansHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id, err := h.store.CreateApplication(r.Context(), loans.Application{
		UserID:          req.UserID,
		ProductID:       req.ProductID,
		AmountRequested: req.AmountRequested,
		Purpose:         req.Purpose,
	})
	if err != nil {
		switch {
		case errors.Is(err, loans.ErrProductNotFound):
			http.Error(w, "product not found", http.StatusNotFound)
		case errors.Is(err, loans.ErrAmountOutOfRange):
			http.Error(w, "amount outside product limits", http.StatusUnprocessableEntity)
		default:
			h.logger.Error("admin loans: create application failed", "error", err)
			http.Error(w, "failed to create application", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": loans.StatusDraft})
}

// GetApplication returns one application.
// Route: GET /admin/loans/applications/{applicationID}
func (h *AdminLoansHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "applicationID"))
	if err != nil {
		http.Error(w, "applicationID must be a UUID", http.StatusBadRequest)
		return
	}
	app, err := h.store.GetApplication(r.Context(), id)
	if err != nil {
		if errors.Is(err, loans.ErrApplicationNotFound) {
			http.Error(w, "application not found", http.StatusNotFound)
			return
		}
		h.logger.Error("admin loans: get application failed", "error", err, "application_id", id)
		http.Error(w, "failed to load application", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponse(*app))
}

// ListApplications returns a user's applications, newest first.
// Route: GET /admin/loans/applications?user_id={uuid}&limit=50
func (h *AdminLoansHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "user_id must be a UUID", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			http.Error(w, "limit must be between 1 and 200", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	apps, err := h.store.ListApplicationsByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("admin loans: list applications failed", "error", err, "user_id", userID)
		http.Error(w, "failed to list applications", http.StatusInternalServerError)
		return
	}
	out := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, toApplicationResponse(app))
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": out})
}

// Submit moves a draft application into the submitted state.
// Route: POST /admin/loans/applications/{applicationID}/submit
func (h *AdminLoansHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "loan_application.submitted", loans.StatusSubmitted, func(ctx context.Context, id uuid.UUID) error {
		return h.store.Submit(ctx, id)
	})
}

type reviewRequest struct {
	CreditScore  int    `json:"credit_score"`
	RiskCategory string `json:"risk_category"`
}

// Review moves a submitted application into under_review with scoring data.
// Route: POST /admin/loans/applications/{applicationID}/review
func (h *AdminLoansHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "applicationID"))
	if err != nil {
		http.Error(w, "applicationID must be a UUID", http.StatusBadRequest)
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.store.MarkUnderReview(r.Context(), id, req.CreditScore, req.RiskCategory); err != nil {
		h.transitionError(w, err, id)
		return
	}
	recordAudit(r, h.auditor, h.logger, "loan_application.under_review", "loan_application", id.String(), map[string]any{"risk_category": req.RiskCategory})
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": loans.StatusUnderReview})
}

type decisionRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// Decide approves or rejects an application, stamping the deciding admin.
// Route: POST /admin/loans/applications/{applicationID}/decision
func (h *AdminLoansHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "applicationID"))
	if err != nil {
		http.Error(w, "applicationID must be a UUID", http.StatusBadRequest)
		return
	}
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	decidedBy := uuid.Nil
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok {
		if parsed, err := uuid.Parse(claims.Subject); err == nil {
			decidedBy = parsed
		}
	}
	if err := h.store.Decide(r.Context(), id, decidedBy, req.Approve, req.Note); err != nil {
		h.transitionError(w, err, id)
		return
	}
	status := loans.StatusRejected
	if req.Approve {
		status = loans.StatusApproved
	}
	recordAudit(r, h.auditor, h.logger, "loan_application.decided", "loan_application", id.String(), map[string]any{"approve": req.Approve})
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

// Disburse marks an approved application as disbursed.
// Route: POST /admin/loans/applications/{applicationID}/disburse
func (h *AdminLoansHandler) Disburse(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "loan_application.disbursed", loans.StatusDisbursed, func(ctx context.Context, id uuid.UUID) error {
		return h.store.MarkDisbursed(ctx, id)
	})
}

func (h *AdminLoansHandler) transition(w http.ResponseWriter, r *http.Request, action, newStatus string, fn func(context.Context, uuid.UUID) error) {
	id, err := uuid.Parse(chi.URLParam(r, "applicationID"))
	if err != nil {
		http.Error(w, "applicationID must be a UUID", http.StatusBadRequest)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		h.transitionError(w, err, id)
		return
	}
	recordAudit(r, h.auditor, h.logger, action, "loan_application", id.String(), nil)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": newStatus})
}

func (h *AdminLoansHandler) transitionError(w http.ResponseWriter, err error, id uuid.UUID) {
	switch {
	case errors.Is(err, loans.ErrApplicationNotFound):
		http.Error(w, "application not found", http.StatusNotFound)
	case errors.Is(err, loans.ErrBadTransition):
		http.Error(w, "transition not allowed from current status", http.StatusConflict)
	default:
		h.logger.Error("admin loans: transition failed", "error", err, "application_id", id)
		http.Error(w, "failed to update application", http.StatusInternalServerError)
	}
}
