package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspilot/opspilot/internal/adapter/gateway/llm"
	"github.com/opspilot/opspilot/internal/application/capability"
	"github.com/opspilot/opspilot/internal/application/classifier"
	"github.com/opspilot/opspilot/internal/application/dto"
	"github.com/opspilot/opspilot/internal/application/usecase"
	"github.com/opspilot/opspilot/internal/application/workflow"
	"github.com/opspilot/opspilot/internal/infrastructure/persistence/memory"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	gateway := llm.NewMockGateway()
	invoker := capability.NewInvoker(gateway)
	orchestrator := workflow.NewOrchestrator(
		invoker,
		capability.NewAutomationStage(invoker, 1, time.Millisecond, nil),
		workflow.NewRefinementLoop(invoker, 2, 0.5, nil),
		workflow.NewPruner(gateway, 4000, nil),
		workflow.DepthSingle,
		nil,
	)
	coordinator := usecase.NewCoordinator(memory.NewTaskStore(), classifier.New(), orchestrator)
	return NewRouter(coordinator, func(string, ...interface{}) {})
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) dto.TaskResponse {
	t.Helper()
	var resp dto.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestExecuteSimpleRequestCompletes(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/execute",
		map[string]string{"request": "check web service status"})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeTask(t, w)
	assert.Equal(t, "completed", resp.Status)
	assert.NotEmpty(t, resp.TaskID)
	require.NotNil(t, resp.Diagnosis)
	assert.NotEmpty(t, resp.Diagnosis.RootCause)
}

func TestExecuteRiskyRequestWaitsForApproval(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/execute",
		map[string]string{"request": "restart the production database server"})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeTask(t, w)
	assert.Equal(t, "waiting_approval", resp.Status)
	require.NotNil(t, resp.Plan)
	assert.Nil(t, resp.Diagnosis)
}

func TestExecuteRequireApprovalFlagGatesReadOnlyRequest(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/execute",
		map[string]interface{}{"request": "check web service status", "require_approval": true})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "waiting_approval", decodeTask(t, w).Status)
}

func TestApproveRunsTheWorkflow(t *testing.T) {
	router := newTestRouter(t)

	submitted := decodeTask(t, doJSON(router, http.MethodPost, "/api/v1/execute",
		map[string]string{"request": "restart the production database server"}))
	require.Equal(t, "waiting_approval", submitted.Status)

	w := doJSON(router, http.MethodPost, "/api/v1/tasks/"+submitted.TaskID+"/approve", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeTask(t, w)
	assert.Equal(t, "completed", resp.Status)
	assert.NotNil(t, resp.Script)
	assert.NotEmpty(t, resp.EmailDraft)
}

func TestRejectTerminatesTheTask(t *testing.T) {
	router := newTestRouter(t)

	submitted := decodeTask(t, doJSON(router, http.MethodPost, "/api/v1/execute",
		map[string]string{"request": "delete the production resource group"}))
	require.Equal(t, "waiting_approval", submitted.Status)

	w := doJSON(router, http.MethodPost, "/api/v1/tasks/"+submitted.TaskID+"/reject", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rejected", decodeTask(t, w).Status)

	// Deciding the same task again conflicts.
	w = doJSON(router, http.MethodPost, "/api/v1/tasks/"+submitted.TaskID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPlansAliasRoutes(t *testing.T) {
	router := newTestRouter(t)

	submitted := decodeTask(t, doJSON(router, http.MethodPost, "/api/v1/execute",
		map[string]string{"request": "restart the production database server"}))

	w := doJSON(router, http.MethodPost, "/api/v1/plans/"+submitted.TaskID+"/approve", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decodeTask(t, w).Status)
}

func TestGetUnknownTaskReturns404(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/tasks/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecuteRejectsEmptyRequest(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/execute", map[string]string{"request": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/execute", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListReturnsAllTasks(t *testing.T) {
	router := newTestRouter(t)

	doJSON(router, http.MethodPost, "/api/v1/execute", map[string]string{"request": "check disk status"})
	doJSON(router, http.MethodPost, "/api/v1/execute", map[string]string{"request": "verify backup status"})

	w := doJSON(router, http.MethodGet, "/api/v1/tasks", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Tasks []dto.TaskResponse `json:"tasks"`
		Count int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, 2, listing.Count)
	assert.Len(t, listing.Tasks, 2)
}
