package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisrod/chat-platform/internal/loans"
)

type fakeLoanRepository struct {
	products     map[uuid.UUID]*loans.Product
	applications map[uuid.UUID]*loans.Application
}

func newFakeLoanRepository() *fakeLoanRepository {
	return &fakeLoanRepository{
		products:     map[uuid.UUID]*loans.Product{},
		applications: map[uuid.UUID]*loans.Application{},
	}
}

func (f *fakeLoanRepository) ListProducts(ctx context.Context, activeOnly bool) ([]loans.Product, error) {
	var out []loans.Product
	for _, p := range f.products {
		if !activeOnly || p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeLoanRepository) CreateProduct(ctx context.Context, p loans.Product) (uuid.UUID, error) {
	p.ID = uuid.New()
	f.products[p.ID] = &p
	return p.ID, nil
}

func (f *fakeLoanRepository) CreateApplication(ctx context.Context, app loans.Application) (uuid.UUID, error) {
	p, ok := f.products[app.ProductID]
	if !ok {
		return uuid.Nil, loans.ErrProductNotFound
	}
	if app.AmountRequested < p.MinAmount || app.AmountRequested > p.MaxAmount {
		return uuid.Nil, loans.ErrAmountOutOfRange
	}
	app.ID = uuid.New()
	app.Status = loans.StatusDraft
	f.applications[app.ID] = &app
	return app.ID, nil
}

func (f *fakeLoanRepository) GetApplication(ctx context.Context, id uuid.UUID) (*loans.Application, error) {
	app, ok := f.applications[id]
	if !ok {
		return nil, loans.ErrApplicationNotFound
	}
	return app, nil
}

func (f *fakeLoanRepository) ListApplicationsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]loans.Application, error) {
	var out []loans.Application
	for _, app := range f.applications {
		if app.UserID == userID {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (f *fakeLoanRepository) Submit(ctx context.Context, id uuid.UUID) error {
	return f.transition(id, loans.StatusDraft, loans.StatusSubmitted)
}

func (f *fakeLoanRepository) MarkUnderReview(ctx context.Context, id uuid.UUID, creditScore int, riskCategory string) error {
	if err := f.transition(id, loans.StatusSubmitted, loans.StatusUnderReview); err != nil {
		return err
	}
	f.applications[id].CreditScore = &creditScore
	f.applications[id].RiskCategory = riskCategory
	return nil
}

func (f *fakeLoanRepository) Decide(ctx context.Context, id, decidedBy uuid.UUID, approve bool, note string) error {
	app, ok := f.applications[id]
	if !ok {
		return loans.ErrApplicationNotFound
	}
	if app.Status != loans.StatusSubmitted && app.Status != loans.StatusUnderReview {
		return loans.ErrBadTransition
	}
	if approve {
		app.Status = loans.StatusApproved
	} else {
		app.Status = loans.StatusRejected
	}
	app.DecisionNote = note
	app.DecidedBy = &decidedBy
	return nil
}

func (f *fakeLoanRepository) MarkDisbursed(ctx context.Context, id uuid.UUID) error {
	return f.transition(id, loans.StatusApproved, loans.StatusDisbursed)
}

func (f *fakeLoanRepository) transition(id uuid.UUID, from, to string) error {
	app, ok := f.applications[id]
	if !ok {
		return loans.ErrApplicationNotFound
	}
	if app.Status != from {
		return loans.ErrBadTransition
	}
	app.Status = to
	return nil
}

func loansTestRouter(h *AdminLoansHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/loans/products", h.ListProducts)
	r.Post("/loans/products", h.CreateProduct)
	r.Post("/loans/applications", h.CreateApplication)
	r.Get("/loans/applications/{applicationID}", h.GetApplication)
	r.Post("/loans/applications/{applicationID}/submit", h.Submit)
	r.Post("/loans/applications/{applicationID}/review", h.Review)
	r.Post("/loans/applications/{applicationID}/decision", h.Decide)
	r.Post("/loans/applications/{applicationID}/disburse", h.Disburse)
	return r
}

func seedProduct(repo *fakeLoanRepository) uuid.UUID {
	id := uuid.New()
	repo.products[id] = &loans.Product{
		ID:        id,
		Name:      "Emergency Loan",
		MinAmount: 5000,
		MaxAmount: 100000,
		IsActive:  true,
	}
	return id
}

func TestAdminLoansCreateApplicationOutOfRange(t *testing.T) {
	repo := newFakeLoanRepository()
	productID := seedProduct(repo)
	router := loansTestRouter(NewAdminLoansHandler(repo, nil, nil))

	payload, _ := json.Marshal(map[string]any{
		"user_id":          uuid.New(),
		"product_id":       productID,
		"amount_requested": 500000,
		"purpose":          "expansion",
	})
	req := httptest.NewRequest(http.MethodPost, "/loans/applications", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestAdminLoansApplicationLifecycle(t *testing.T) {
	repo := newFakeLoanRepository()
	productID := seedProduct(repo)
	router := loansTestRouter(NewAdminLoansHandler(repo, nil, nil))

	payload, _ := json.Marshal(map[string]any{
		"user_id":          uuid.New(),
		"product_id":       productID,
		"amount_requested": 20000,
		"purpose":          "school fees",
	})
	req := httptest.NewRequest(http.MethodPost, "/loans/applications", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))

	steps := []struct {
		path string
		body string
		want string
	}{
		{"/submit", "", loans.StatusSubmitted},
		{"/review", `{"credit_score":710,"risk_category":"low"}`, loans.StatusUnderReview},
		{"/decision", `{"approve":true,"note":"good standing"}`, loans.StatusApproved},
		{"/disburse", "", loans.StatusDisbursed},
	}
	for _, step := range steps {
		req := httptest.NewRequest(http.MethodPost, "/loans/applications/"+created.ID.String()+step.path, bytes.NewBufferString(step.body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equalf(t, http.StatusOK, rr.Code, "step %s: %s", step.path, rr.Body.String())
		assert.Equal(t, step.want, repo.applications[created.ID].Status)
	}
}

func TestAdminLoansDisburseBeforeApprovalConflicts(t *testing.T) {
	repo := newFakeLoanRepository()
	productID := seedProduct(repo)
	router := loansTestRouter(NewAdminLoansHandler(repo, nil, nil))

	appID := uuid.New()
	repo.applications[appID] = &loans.Application{ID: appID, ProductID: productID, Status: loans.StatusDraft}

	req := httptest.NewRequest(http.MethodPost, "/loans/applications/"+appID.String()+"/disburse", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAdminLoansGetApplicationNotFound(t *testing.T) {
	router := loansTestRouter(NewAdminLoansHandler(newFakeLoanRepository(), nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/loans/applications/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
