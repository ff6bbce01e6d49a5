// Package sqlite provides embedded SQLite persistence for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/ledgerflow/pkg/persistence"
	"github.com/dukex/ledgerflow/pkg/persistence/sqlbase"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Persistence implements the persistence layer on an SQLite database file.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *sqlbase.WorkflowRepository
	executionRepo *sqlbase.ExecutionRepository
}

// Dialect returns the SQLite flavour of the shared SQL repositories.
func Dialect() sqlbase.Dialect {
	return sqlbase.Dialect{
		Name: "sqlite",
		MigrationsTable: `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version INTEGER PRIMARY KEY,
				applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`,
		Placeholder:       sqlbase.QuestionPlaceholder,
		IsUniqueViolation: isUniqueViolation,
		TimeValue:         sqlbase.UnixNanoTime,
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}

// NewPersistence opens (creating if needed) the database at path, e.g. "sqlite://data/ledgerflow.db".
func NewPersistence(ctx context.Context, logger *slog.Logger, path string) (*Persistence, error) {
	path = strings.TrimPrefix(path, "sqlite://")

	database, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite serialises writers; one connection avoids SQLITE_BUSY between our own goroutines.
	database.SetMaxOpenConns(1)

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "sqlite")
	dialect := Dialect()

	err = sqlbase.NewMigrationManager(logger, database, dialect, migrations()).RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		workflowRepo:  sqlbase.NewWorkflowRepository(database, logger, dialect),
		executionRepo: sqlbase.NewExecutionRepository(database, logger, dialect),
	}, nil
}

// Close closes the database.
func (p *Persistence) Close(_ context.Context) error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// HealthCheck verifies the database is reachable.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executionRepo
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('active', 'inactive', 'draft')),
				definition TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
		`,
		2: `
			CREATE TABLE workflow_executions (
				execution_id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				status TEXT NOT NULL,
				trigger_type TEXT NOT NULL DEFAULT '',
				started_at INTEGER NOT NULL,
				duration_ms INTEGER NOT NULL DEFAULT 0,
				record TEXT NOT NULL
			);

			CREATE INDEX idx_workflow_executions_workflow_started ON workflow_executions(workflow_id, started_at);
		`,
	}
}
