package sqlite_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/ledgerflow/pkg/persistence"
	"github.com/dukex/ledgerflow/pkg/persistence/persistencetest"
	"github.com/dukex/ledgerflow/pkg/persistence/sqlite"
	"github.com/dukex/ledgerflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersistence(t *testing.T) *sqlite.Persistence {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := sqlite.NewPersistence(context.Background(), logger, "sqlite://"+filepath.Join(t.TempDir(), "ledgerflow.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, p.Close(context.Background()))
	})

	return p
}

func TestPersistence_Conformance(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		return newTestPersistence(t)
	})
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := newTestPersistence(t)

	assert.NoError(t, p.HealthCheck(context.Background()))
}

func TestPersistence_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	path := filepath.Join(t.TempDir(), "ledgerflow.db")

	first, err := sqlite.NewPersistence(ctx, logger, path)
	require.NoError(t, err)

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, first.Workflows().Save(ctx, workflow))
	require.NoError(t, first.Close(ctx))

	second, err := sqlite.NewPersistence(ctx, logger, path)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, second.Close(ctx))
	}()

	loaded, err := second.Workflows().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, loaded.Name)
}
