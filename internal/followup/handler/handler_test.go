package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadflow_backend/internal/followup/domain"
	"leadflow_backend/internal/followup/repository"
	"leadflow_backend/internal/followup/service"
	"leadflow_backend/internal/followup/transport"
	"leadflow_backend/internal/stats"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	summary stats.FollowupSummary
	err     error
	gotOrg  *uuid.UUID
}

func (f *fakeCounter) ExecutionCounts(_ context.Context, orgID *uuid.UUID) (stats.FollowupSummary, error) {
	f.gotOrg = orgID
	return f.summary, f.err
}

// batchStore serves one claim pass. Methods the batch does not reach are
// left to the embedded nil Store.
type batchStore struct {
	repository.Store
	claimed  []repository.Claimed
	claimErr error
}

func (s *batchStore) ClaimDue(context.Context, repository.ClaimParams) ([]repository.Claimed, error) {
	return s.claimed, s.claimErr
}

func (s *batchStore) Complete(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}

func newBatchService(store *batchStore) *service.Service {
	return service.New(store, nil, nil, nil, logger.Nop(), service.Options{})
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/process-followups", h.Process)
	r.GET("/process-followups", h.Status)
	r.POST("/followups/sequences", h.CreateSequence)
	r.POST("/followups/executions", h.Enroll)
	r.GET("/followups/executions", h.ListExecutions)
	return r
}

func TestStatusReturnsCounts(t *testing.T) {
	counter := &fakeCounter{summary: stats.FollowupSummary{
		Counts: map[string]int{"active": 3, "postponed": 1, "completed": 5, "cancelled": 0},
		Total:  9,
	}}
	r := newRouter(New(nil, counter, validator.New()))

	orgID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/process-followups?organization_id="+orgID.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp transport.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 9, resp.Total)
	assert.Equal(t, 3, resp.Stats["active"])
	require.NotNil(t, counter.gotOrg)
	assert.Equal(t, orgID, *counter.gotOrg)
}

func TestStatusStoreOutageIs503(t *testing.T) {
	counter := &fakeCounter{err: apperr.Unavailable("execution counts unavailable", errors.New("dial tcp"))}
	r := newRouter(New(nil, counter, validator.New()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/process-followups", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEnrollRejectsInvalidBody(t *testing.T) {
	r := newRouter(New(nil, &fakeCounter{}, validator.New()))

	body := `{"lead_id":"not-a-uuid","sequence_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/followups/executions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "LeadID")
}

func TestCreateSequenceRejectsUnknownChannel(t *testing.T) {
	r := newRouter(New(nil, &fakeCounter{}, validator.New()))

	body := `{"nome_sequencia":"pos","steps":[{"titulo":"a","tipo_acao":"fax","conteudo":"x"}]}`
	req := httptest.NewRequest(http.MethodPost, "/followups/sequences", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Organization-ID", uuid.NewString())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "channel")
}

func TestListExecutionsRequiresLeadID(t *testing.T) {
	r := newRouter(New(nil, &fakeCounter{}, validator.New()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/followups/executions", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessReportsBatch(t *testing.T) {
	execID := uuid.New()
	store := &batchStore{claimed: []repository.Claimed{{
		Execution: domain.Execution{ID: execID, Status: domain.StatusActive, StepAtual: 3},
		Sequence:  domain.Sequence{ID: uuid.New(), IsActive: true},
		Token:     uuid.New(),
	}}}
	r := newRouter(New(newBatchService(store), &fakeCounter{}, validator.New()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/process-followups", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Processed int                  `json:"processed"`
		Stats     map[string]int       `json:"stats"`
		Results   []service.ItemResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Processed)
	assert.Equal(t, 1, resp.Stats["completed"])
	assert.Equal(t, 0, resp.Stats["sent"])
	require.Len(t, resp.Results, 1)
	assert.Equal(t, execID, resp.Results[0].ExecutionID)
	assert.Equal(t, service.ResultCompleted, resp.Results[0].Status)
}

func TestProcessClaimOutageIs503(t *testing.T) {
	store := &batchStore{claimErr: errors.New("dial tcp: connection refused")}
	r := newRouter(New(newBatchService(store), &fakeCounter{}, validator.New()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/process-followups", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
