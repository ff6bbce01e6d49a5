package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/persistence/file"
	"github.com/dukex/ledgerflow/pkg/registry"
	"github.com/dukex/ledgerflow/pkg/services"
	"github.com/dukex/ledgerflow/pkg/testutil"
	"github.com/dukex/ledgerflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.NewRegistry(discardLogger())
	require.NoError(t, reg.RegisterDefaultNodes(registry.Collaborators{}))

	return reg
}

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	reg := newTestRegistry(t)
	persistence := file.NewPersistence(t.TempDir())
	workflowService := services.NewWorkflow(discardLogger(), persistence, workflow.NewValidator(reg), nil)

	return NewServer(discardLogger(), workflowService, reg, nil, nil, nil).App()
}

func TestServer_Endpoints(t *testing.T) {
	app := setupTestApp(t)

	tests := []struct {
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{path: "/", expectedStatus: http.StatusOK, expectedBody: "Ledgerflow API"},
		{path: "/livez", expectedStatus: http.StatusOK},
		{path: "/readyz", expectedStatus: http.StatusOK},
		{path: "/health", expectedStatus: http.StatusOK},
		{path: "/workflows", expectedStatus: http.StatusOK},
		{path: "/triggers", expectedStatus: http.StatusNotFound},
		{path: "/activity", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)

			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedBody != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.expectedBody, string(body))
			}
		})
	}
}

func TestValidateWorkflows(t *testing.T) {
	validator := workflow.NewValidator(newTestRegistry(t))

	valid := testutil.CreateTestWorkflow()
	noTrigger := testutil.CreateTestWorkflow(testutil.WithGraph(
		[]*models.WorkflowNode{testutil.ActionNode("log", models.NodeTypeActionLog, map[string]any{"message": "hi"})},
		nil,
	))
	unknownType := testutil.CreateTestWorkflow(testutil.WithStatus(models.WorkflowStatusDraft))
	unknownType.Nodes[1].Type = "action:teleport"

	var out bytes.Buffer

	require.NoError(t, validateWorkflows(&out, validator, []*models.Workflow{valid}))
	assert.Contains(t, out.String(), "Valid workflows: 1")

	out.Reset()

	err := validateWorkflows(&out, validator, []*models.Workflow{valid, noTrigger, unknownType})
	require.ErrorIs(t, err, ErrInvalidWorkflows)
	assert.Contains(t, out.String(), "active workflow has no trigger node")
	assert.Contains(t, out.String(), "action:teleport")
	assert.Contains(t, out.String(), "Invalid workflows: 2")
}
