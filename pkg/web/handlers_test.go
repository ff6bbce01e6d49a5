package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/ledgerflow/pkg/activity"
	"github.com/dukex/ledgerflow/pkg/changefeed"
	"github.com/dukex/ledgerflow/pkg/events"
	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/persistence/file"
	"github.com/dukex/ledgerflow/pkg/registry"
	"github.com/dukex/ledgerflow/pkg/services"
	"github.com/dukex/ledgerflow/pkg/testutil"
	"github.com/dukex/ledgerflow/pkg/trigger"
	"github.com/dukex/ledgerflow/pkg/web"
	"github.com/dukex/ledgerflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *services.Workflow) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	persistence := file.NewPersistence(t.TempDir())

	registryInstance := registry.NewRegistry(logger)
	require.NoError(t, registryInstance.RegisterDefaultNodes(registry.Collaborators{}))

	executor := workflow.NewExecutor(logger, registryInstance, workflow.ExecutorConfig{})
	runner := workflow.NewRunner(logger, executor, persistence.Executions(), nil, workflow.RunnerConfig{})
	workflowService := services.NewWorkflow(logger, persistence, workflow.NewValidator(registryInstance), runner)

	handlers := web.NewAPIHandlers(workflowService, validator.New(validator.WithRequiredStructEnabled()), registryInstance)

	app := fiber.New()
	handlers.Register(app)

	return app, workflowService
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, respBody
}

func validRequest() web.WorkflowRequest {
	wf := testutil.CreateTestWorkflow()

	return web.WorkflowRequest{
		Name:        "Follow up overdue invoices",
		Description: "Logs every manual run",
		Nodes:       wf.Nodes,
		Edges:       wf.Edges,
	}
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "successful creation",
			requestBody:    validRequest(),
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "name too short",
			requestBody:    web.WorkflowRequest{Name: "ab"},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name: "unknown node type",
			requestBody: func() web.WorkflowRequest {
				req := validRequest()
				req.Nodes[1].Type = "action:launch_rocket"

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
			expectedType:   "invalid_workflow",
		},
		{
			name: "active workflow without trigger",
			requestBody: func() web.WorkflowRequest {
				req := validRequest()
				req.Status = models.WorkflowStatusActive
				req.Nodes = req.Nodes[1:]
				req.Edges = nil

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "invalid json",
			requestBody:    "not an object",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			resp, body := doJSON(t, app, http.MethodPost, "/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.expectedType != "" {
				var problem map[string]any
				require.NoError(t, json.Unmarshal(body, &problem))
				assert.Equal(t, tt.expectedType, problem["type"])

				return
			}

			var created models.Workflow
			require.NoError(t, json.Unmarshal(body, &created))
			assert.NotEmpty(t, created.ID)
			assert.Equal(t, models.WorkflowStatusDraft, created.Status)
		})
	}
}

func TestAPIHandlers_InvalidWorkflowListsProblems(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	req := validRequest()
	req.Edges = append(req.Edges, testutil.Edge("log", "missing"))

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem web.ValidationProblem
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.NotEmpty(t, problem.Problems)
}

func TestAPIHandlers_WorkflowLifecycle(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", validRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Workflow
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, created.Name, fetched.Name)

	update := validRequest()
	update.Name = "Renamed workflow"

	resp, body = doJSON(t, app, http.MethodPut, "/workflows/"+created.ID, update)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated models.Workflow
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "Renamed workflow", updated.Name)
	assert.Equal(t, models.WorkflowStatusDraft, updated.Status)

	resp, body = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/status", web.StatusRequest{Status: models.WorkflowStatusActive})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var activated models.Workflow
	require.NoError(t, json.Unmarshal(body, &activated))
	assert.Equal(t, models.WorkflowStatusActive, activated.Status)

	resp, _ = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/status", map[string]string{"status": "paused"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "workflow_not_found", problem["type"])

	resp, _ = doJSON(t, app, http.MethodDelete, "/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_GetWorkflows(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	for range 3 {
		resp, body := doJSON(t, app, http.MethodPost, "/workflows", validRequest())
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	}

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedCount  int
		hasNextPage    bool
	}{
		{name: "all", query: "", expectedStatus: http.StatusOK, expectedCount: 3},
		{name: "paginated", query: "?limit=2", expectedStatus: http.StatusOK, expectedCount: 2, hasNextPage: true},
		{name: "by status", query: "?status=active", expectedStatus: http.StatusOK, expectedCount: 0},
		{name: "invalid limit", query: "?limit=abc", expectedStatus: http.StatusBadRequest},
		{name: "invalid sort field", query: "?sort_by=owner", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, app, http.MethodGet, "/workflows"+tt.query, nil)
			require.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.expectedStatus != http.StatusOK {
				return
			}

			var result struct {
				Workflows   []models.Workflow `json:"workflows"`
				TotalCount  int64             `json:"total_count"`
				HasNextPage bool              `json:"has_next_page"`
			}
			require.NoError(t, json.Unmarshal(body, &result))
			assert.Len(t, result.Workflows, tt.expectedCount)
			assert.Equal(t, tt.hasNextPage, result.HasNextPage)
		})
	}
}

func TestAPIHandlers_RunWorkflow(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", validRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/executions", web.RunRequest{
		TriggerData: map[string]any{"source": "test"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var run struct {
		Record models.ExecutionRecord `json:"record"`
	}
	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, models.ExecutionStatusCompleted, run.Record.Status)

	resp, _ = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/executions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID+"/executions?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		Executions []models.ExecutionRecord `json:"executions"`
	}
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Len(t, history.Executions, 1)

	resp, body = doJSON(t, app, http.MethodGet, "/executions/"+run.Record.ExecutionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var record models.ExecutionRecord
	require.NoError(t, json.Unmarshal(body, &record))
	assert.Equal(t, created.ID, record.WorkflowID)

	resp, _ = doJSON(t, app, http.MethodGet, "/executions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/workflows/unknown/executions", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_GetNodeTypes(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/nodes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Nodes []web.NodeTypeResponse `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.NotEmpty(t, result.Nodes)

	types := make(map[models.NodeType]models.CategoryType)
	for _, node := range result.Nodes {
		types[node.Type] = node.Category
	}

	assert.Equal(t, models.CategoryTypeTrigger, types[models.NodeTypeTriggerManual])
	assert.Equal(t, models.CategoryTypeAction, types[models.NodeTypeActionLog])
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
}

type recordingChanges struct {
	changes []changefeed.Change
}

func (r *recordingChanges) Publish(_ context.Context, change changefeed.Change) error {
	r.changes = append(r.changes, change)

	return nil
}

type staticTriggers []trigger.Key

func (s staticTriggers) Running() []trigger.Key {
	return s
}

func TestAPIHandlers_OptionalEndpoints(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/changes", web.ChangeRequest{Source: "deals", Operation: changefeed.OperationInsert})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "not mounted without a publisher")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registryInstance := registry.NewRegistry(logger)
	require.NoError(t, registryInstance.RegisterDefaultNodes(registry.Collaborators{}))

	workflowService := services.NewWorkflow(logger, file.NewPersistence(t.TempDir()), workflow.NewValidator(registryInstance), nil)
	changes := &recordingChanges{}

	handlers := web.NewAPIHandlers(workflowService, validator.New(validator.WithRequiredStructEnabled()), registryInstance).
		WithChangePublisher(changes).
		WithTriggers(staticTriggers{{WorkflowID: "wf-1", NodeID: "on-deal"}})

	app = fiber.New()
	handlers.Register(app)

	resp, _ = doJSON(t, app, http.MethodPost, "/changes", web.ChangeRequest{
		Source:    "deals",
		Operation: changefeed.OperationUpdate,
		Old:       map[string]any{"stage": "proposal"},
		New:       map[string]any{"stage": "won"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, changes.changes, 1)
	assert.Equal(t, "won", changes.changes[0].New["stage"])

	resp, _ = doJSON(t, app, http.MethodPost, "/changes", web.ChangeRequest{Source: "deals", Operation: "upsert"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, "/triggers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Triggers []map[string]string `json:"triggers"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, []map[string]string{{"workflow_id": "wf-1", "node_id": "on-deal"}}, result.Triggers)
}

func TestAPIHandlers_Activity(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registryInstance := registry.NewRegistry(logger)
	require.NoError(t, registryInstance.RegisterDefaultNodes(registry.Collaborators{}))

	workflowService := services.NewWorkflow(logger, file.NewPersistence(t.TempDir()), workflow.NewValidator(registryInstance), nil)

	recent, err := activity.NewLog(logger, 10)
	require.NoError(t, err)

	for _, workflowID := range []string{"wf-1", "wf-2", "wf-1"} {
		require.NoError(t, recent.Record(context.Background(), &events.TriggerFired{
			BaseEvent: events.NewBaseEvent(events.TriggerFiredEvent, workflowID, "", time.Now()),
			NodeID:    "created",
		}))
	}

	app := fiber.New()
	web.NewAPIHandlers(workflowService, validator.New(validator.WithRequiredStructEnabled()), registryInstance).
		WithActivity(recent).
		Register(app)

	tests := []struct {
		name     string
		query    string
		status   int
		expected int
	}{
		{name: "all", query: "", status: http.StatusOK, expected: 3},
		{name: "by workflow", query: "?workflow_id=wf-1", status: http.StatusOK, expected: 2},
		{name: "limit", query: "?limit=1", status: http.StatusOK, expected: 1},
		{name: "invalid limit", query: "?limit=-1", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, app, http.MethodGet, "/activity"+tt.query, nil)
			require.Equal(t, tt.status, resp.StatusCode)

			if tt.status != http.StatusOK {
				return
			}

			var result struct {
				Events []struct {
					Type       string `json:"type"`
					WorkflowID string `json:"workflow_id"`
				} `json:"events"`
			}
			require.NoError(t, json.Unmarshal(body, &result))
			require.Len(t, result.Events, tt.expected)
			assert.Equal(t, string(events.TriggerFiredEvent), result.Events[0].Type)
		})
	}
}
