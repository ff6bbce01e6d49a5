package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/ledgerflow/pkg/persistence"
	"github.com/dukex/ledgerflow/pkg/persistence/file"
	"github.com/dukex/ledgerflow/pkg/persistence/persistencetest"
	"github.com/dukex/ledgerflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_Conformance(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		return file.NewPersistence(t.TempDir())
	})
}

func TestPersistence_HealthCheck(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, file.NewPersistence("file://"+t.TempDir()).HealthCheck(ctx))
	assert.Error(t, file.NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(ctx))
}

func TestWorkflowRepository_RejectsPathTraversal(t *testing.T) {
	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	workflow := testutil.CreateTestWorkflow()
	workflow.ID = "../escape"

	err := p.Workflows().Save(ctx, workflow)
	require.Error(t, err)
	require.ErrorIs(t, err, persistence.ErrInvalidID)

	_, err = p.Workflows().GetByID(ctx, "../../etc/passwd")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	record := testutil.CreateTestExecutionRecord("workflow", workflow.CreatedAt)
	record.ExecutionID = `a\b`

	err = p.Executions().Append(ctx, record)
	require.ErrorIs(t, err, persistence.ErrInvalidID)
}

func TestWorkflowRepository_FilePermissions(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	p := file.NewPersistence(root)

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.Workflows().Save(ctx, workflow))

	info, err := os.Stat(filepath.Join(root, "workflows", workflow.ID+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWorkflowRepository_EmptyRoot(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	workflows, err := p.Workflows().GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, workflows)

	records, err := p.Executions().ListByWorkflow(context.Background(), "any", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
