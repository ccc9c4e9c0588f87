package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisrod/chat-platform/internal/agents"
	"github.com/wisrod/chat-platform/internal/monitoring"
)

type fakeAgentDirectory struct {
	agents        map[uuid.UUID]*agents.Availability
	statusUpdates map[uuid.UUID]string
}

func newFakeAgentDirectory() *fakeAgentDirectory {
	return &fakeAgentDirectory{
		agents:        map[uuid.UUID]*agents.Availability{},
		statusUpdates: map[uuid.UUID]string{},
	}
}

func (f *fakeAgentDirectory) Get(ctx context.Context, agentID uuid.UUID) (*agents.Availability, error) {
	a, ok := f.agents[agentID]
	if !ok {
		return nil, agents.ErrAgentNotFound
	}
	return a, nil
}

func (f *fakeAgentDirectory) UpdateStatus(ctx context.Context, agentID uuid.UUID, status string) error {
	if status == "bogus" {
		return agents.ErrInvalidStatus
	}
	if _, ok := f.agents[agentID]; !ok {
		return agents.ErrAgentNotFound
	}
	f.statusUpdates[agentID] = status
	return nil
}

func (f *fakeAgentDirectory) FindAvailable(ctx context.Context, skills []string, limit int) ([]agents.Availability, error) {
	var out []agents.Availability
	for _, a := range f.agents {
		if a.Status == agents.StatusAvailable {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAgentDirectory) SetAutoAssign(ctx context.Context, agentID uuid.UUID, enabled bool) error {
	a, ok := f.agents[agentID]
	if !ok {
		return agents.ErrAgentNotFound
	}
	a.AutoAssignEnabled = enabled
	return nil
}

func (f *fakeAgentDirectory) ListPerformance(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]agents.Performance, error) {
	return []agents.Performance{{AgentID: agentID, Day: from, ChatsHandled: 7, Resolutions: 5}}, nil
}

type fakeAuditor struct {
	entries []monitoring.AuditLog
}

func (f *fakeAuditor) RecordAudit(ctx context.Context, entry monitoring.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func agentsTestRouter(h *AdminAgentsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/agents/available", h.FindAvailable)
	r.Get("/agents/{agentID}", h.GetAgent)
	r.Post("/agents/{agentID}/status", h.UpdateStatus)
	r.Get("/agents/{agentID}/performance", h.GetPerformance)
	return r
}

func TestAdminAgentsGetAgent(t *testing.T) {
	dir := newFakeAgentDirectory()
	agentID := uuid.New()
	dir.agents[agentID] = &agents.Availability{
		ID:                 agentID,
		UserID:             uuid.New(),
		Status:             agents.StatusAvailable,
		MaxConcurrentChats: 5,
		Skills:             []string{"loans"},
	}
	router := agentsTestRouter(NewAdminAgentsHandler(dir, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/agents/"+agentID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp agentResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, agentID, resp.ID)
	assert.Equal(t, []string{"loans"}, resp.Skills)
}

func TestAdminAgentsGetAgentNotFound(t *testing.T) {
	router := agentsTestRouter(NewAdminAgentsHandler(newFakeAgentDirectory(), nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/agents/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminAgentsUpdateStatusRecordsAudit(t *testing.T) {
	dir := newFakeAgentDirectory()
	agentID := uuid.New()
	dir.agents[agentID] = &agents.Availability{ID: agentID}
	auditor := &fakeAuditor{}
	router := agentsTestRouter(NewAdminAgentsHandler(dir, auditor, nil))

	body := bytes.NewBufferString(`{"status":"break"}`)
	req := httptest.NewRequest(http.MethodPost, "/agents/"+agentID.String()+"/status", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "break", dir.statusUpdates[agentID])
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, "agent.status_updated", auditor.entries[0].Action)
}

func TestAdminAgentsUpdateStatusRejectsInvalid(t *testing.T) {
	dir := newFakeAgentDirectory()
	agentID := uuid.New()
	dir.agents[agentID] = &agents.Availability{ID: agentID}
	router := agentsTestRouter(NewAdminAgentsHandler(dir, nil, nil))

	body := bytes.NewBufferString(`{"status":"bogus"}`)
	req := httptest.NewRequest(http.MethodPost, "/agents/"+agentID.String()+"/status", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminAgentsFindAvailable(t *testing.T) {
	dir := newFakeAgentDirectory()
	available := uuid.New()
	dir.agents[available] = &agents.Availability{ID: available, Status: agents.StatusAvailable}
	offline := uuid.New()
	dir.agents[offline] = &agents.Availability{ID: offline, Status: agents.StatusOffline}
	router := agentsTestRouter(NewAdminAgentsHandler(dir, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/agents/available?skills=loans", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Agents []agentResponse `json:"agents"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Agents, 1)
	assert.Equal(t, available, resp.Agents[0].ID)
}

func TestAdminAgentsPerformanceWindow(t *testing.T) {
	dir := newFakeAgentDirectory()
	agentID := uuid.New()
	dir.agents[agentID] = &agents.Availability{ID: agentID}
	router := agentsTestRouter(NewAdminAgentsHandler(dir, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/agents/"+agentID.String()+"/performance?from=2026-08-01&to=2026-08-31", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Performance []struct {
			Day          string `json:"day"`
			ChatsHandled int    `json:"chats_handled"`
		} `json:"performance"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Performance, 1)
	assert.Equal(t, "2026-08-01", resp.Performance[0].Day)
	assert.Equal(t, 7, resp.Performance[0].ChatsHandled)
}
