// Package persistencetest holds the behaviour every persistence backend must share.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/persistence"
	"github.com/dukex/ledgerflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty persistence for one subtest.
type Factory func(t *testing.T) persistence.Persistence

// Run exercises the workflow and execution repositories of a backend.
func Run(t *testing.T, newPersistence Factory) {
	t.Helper()

	t.Run("workflow round trip", func(t *testing.T) {
		testWorkflowRoundTrip(t, newPersistence(t))
	})
	t.Run("workflow save assigns id and timestamps", func(t *testing.T) {
		testWorkflowSaveDefaults(t, newPersistence(t))
	})
	t.Run("workflow update keeps created_at", func(t *testing.T) {
		testWorkflowUpdate(t, newPersistence(t))
	})
	t.Run("workflow listing", func(t *testing.T) {
		testWorkflowListing(t, newPersistence(t))
	})
	t.Run("workflow not found", func(t *testing.T) {
		testWorkflowNotFound(t, newPersistence(t))
	})
	t.Run("execution append and read", func(t *testing.T) {
		testExecutionAppend(t, newPersistence(t))
	})
	t.Run("execution list newest first", func(t *testing.T) {
		testExecutionList(t, newPersistence(t))
	})
	t.Run("execution history survives workflow delete", func(t *testing.T) {
		testExecutionSurvivesDelete(t, newPersistence(t))
	})
}

func testWorkflowRoundTrip(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := testutil.CreateTestWorkflow(testutil.WithGraph(
		[]*models.WorkflowNode{
			testutil.TriggerNode("trigger", models.NodeTypeTriggerFieldChanged, map[string]any{
				"source": "deals",
				"field":  "stage_id",
			}),
			testutil.ActionNode("deal", models.NodeTypeActionCreateDeal, map[string]any{
				"title":               "Renewal",
				"value":               1500.5,
				"expected_close_date": "2026-12-01",
			}),
		},
		[]*models.Edge{testutil.Edge("trigger", "deal")},
	))
	workflow.Nodes[1].Parameters["client_id"] = models.Expression("{{ trigger.client_id }}")

	require.NoError(t, p.Workflows().Save(ctx, workflow))

	loaded, err := p.Workflows().GetByID(ctx, workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, workflow.ID, loaded.ID)
	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Equal(t, workflow.Description, loaded.Description)
	assert.Equal(t, workflow.Status, loaded.Status)
	assert.Equal(t, workflow.Nodes, loaded.Nodes)
	assert.Equal(t, workflow.Edges, loaded.Edges)
	assert.True(t, workflow.CreatedAt.Equal(loaded.CreatedAt))
	assert.True(t, workflow.UpdatedAt.Equal(loaded.UpdatedAt))
}

func testWorkflowSaveDefaults(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := testutil.CreateTestWorkflow()
	workflow.ID = ""
	workflow.CreatedAt = time.Time{}
	workflow.UpdatedAt = time.Time{}

	require.NoError(t, p.Workflows().Save(ctx, workflow))

	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())
	assert.False(t, workflow.UpdatedAt.IsZero())

	_, err := p.Workflows().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
}

func testWorkflowUpdate(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.Workflows().Save(ctx, workflow))

	createdAt := workflow.CreatedAt

	workflow.Name = "Renamed workflow"
	workflow.Status = models.WorkflowStatusInactive
	require.NoError(t, p.Workflows().Save(ctx, workflow))

	loaded, err := p.Workflows().GetByID(ctx, workflow.ID)
	require.NoError(t, err)

	assert.Equal(t, "Renamed workflow", loaded.Name)
	assert.Equal(t, models.WorkflowStatusInactive, loaded.Status)
	assert.True(t, createdAt.Equal(loaded.CreatedAt))

	all, err := p.Workflows().GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testWorkflowListing(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	statuses := []models.WorkflowStatus{
		models.WorkflowStatusActive,
		models.WorkflowStatusDraft,
		models.WorkflowStatusActive,
		models.WorkflowStatusInactive,
	}

	ids := make([]string, 0, len(statuses))

	for i, status := range statuses {
		workflow := testutil.CreateTestWorkflow(testutil.WithStatus(status))
		workflow.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, p.Workflows().Save(ctx, workflow))

		ids = append(ids, workflow.ID)
	}

	all, err := p.Workflows().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)

	for i, workflow := range all {
		assert.Equal(t, ids[i], workflow.ID)
	}

	active, err := p.Workflows().ActiveWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, ids[0], active[0].ID)
	assert.Equal(t, ids[2], active[1].ID)
}

func testWorkflowNotFound(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	_, err := p.Workflows().GetByID(ctx, "0198f3c2-0000-7000-8000-000000000000")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = p.Workflows().Delete(ctx, "0198f3c2-0000-7000-8000-000000000000")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.Workflows().Save(ctx, workflow))
	require.NoError(t, p.Workflows().Delete(ctx, workflow.ID))

	_, err = p.Workflows().GetByID(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func testExecutionAppend(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	record := testutil.CreateTestExecutionRecord("workflow-1", time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC))
	record.Logs = append(record.Logs, models.LogEntry{
		ID:        "log-1",
		NodeID:    "trigger",
		Timestamp: record.StartedAt,
		Level:     models.LogLevelSuccess,
		Message:   "Node trigger completed",
	})

	require.NoError(t, p.Executions().Append(ctx, record))

	loaded, err := p.Executions().GetByID(ctx, record.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, record.ExecutionID, loaded.ExecutionID)
	assert.Equal(t, record.WorkflowID, loaded.WorkflowID)
	assert.Equal(t, record.Status, loaded.Status)
	assert.Equal(t, record.TriggerType, loaded.TriggerType)
	assert.Equal(t, record.DurationMs, loaded.DurationMs)
	assert.True(t, record.StartedAt.Equal(loaded.StartedAt))
	assert.Equal(t, record.NodeStates, loaded.NodeStates)
	require.Len(t, loaded.Logs, 1)
	assert.Equal(t, "Node trigger completed", loaded.Logs[0].Message)

	err = p.Executions().Append(ctx, record)
	require.Error(t, err)
	require.ErrorIs(t, err, persistence.ErrExecutionAlreadyExists)

	_, err = p.Executions().GetByID(ctx, "missing-execution")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func testExecutionList(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	var ids []string

	for i := range 3 {
		record := testutil.CreateTestExecutionRecord("workflow-a", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, p.Executions().Append(ctx, record))

		ids = append(ids, record.ExecutionID)
	}

	require.NoError(t, p.Executions().Append(ctx, testutil.CreateTestExecutionRecord("workflow-b", base)))

	records, err := p.Executions().ListByWorkflow(ctx, "workflow-a", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ids[2], records[0].ExecutionID)
	assert.Equal(t, ids[1], records[1].ExecutionID)
	assert.Equal(t, ids[0], records[2].ExecutionID)

	limited, err := p.Executions().ListByWorkflow(ctx, "workflow-a", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, ids[2], limited[0].ExecutionID)

	none, err := p.Executions().ListByWorkflow(ctx, "workflow-c", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testExecutionSurvivesDelete(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.Workflows().Save(ctx, workflow))

	record := testutil.CreateTestExecutionRecord(workflow.ID, time.Now())
	require.NoError(t, p.Executions().Append(ctx, record))

	require.NoError(t, p.Workflows().Delete(ctx, workflow.ID))

	records, err := p.Executions().ListByWorkflow(ctx, workflow.ID, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
