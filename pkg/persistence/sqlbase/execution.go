package sqlbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/persistence"
)

// ExecutionRepository is the append-only store of execution records.
type ExecutionRepository struct {
	db      *sql.DB
	logger  *slog.Logger
	dialect Dialect
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger, dialect Dialect) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger, dialect: dialect}
}

// Append stores a finished execution record. Records are never updated.
func (r *ExecutionRepository) Append(ctx context.Context, record *models.ExecutionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal execution record: %w", err)
	}

	query := `
		INSERT INTO workflow_executions
			(execution_id, workflow_id, status, trigger_type, started_at, duration_ms, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.dialect.Rebind(query),
		record.ExecutionID,
		record.WorkflowID,
		string(record.Status),
		string(record.TriggerType),
		r.dialect.Time(record.StartedAt),
		record.DurationMs,
		string(payload),
	)
	if err != nil {
		if r.dialect.IsUniqueViolation != nil && r.dialect.IsUniqueViolation(err) {
			return persistence.NewExecutionError("Append", record.ExecutionID, persistence.ErrExecutionAlreadyExists)
		}

		return fmt.Errorf("failed to append execution record: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*models.ExecutionRecord, error) {
	var payload []byte

	err := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT record FROM workflow_executions WHERE execution_id = ?`),
		executionID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to query execution record: %w", err)
	}

	return decodeRecord(payload)
}

// ListByWorkflow returns the records of a workflow, newest first.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionRecord, error) {
	query := `
		SELECT record
		FROM workflow_executions
		WHERE workflow_id = ?
		ORDER BY started_at DESC, execution_id
	`
	args := []any{workflowID}

	if limit > 0 {
		query += " LIMIT ?"

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		var payload []byte

		err := rows.Scan(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}

		record, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution records: %w", err)
	}

	return records, nil
}

func decodeRecord(payload []byte) (*models.ExecutionRecord, error) {
	var record models.ExecutionRecord

	err := json.Unmarshal(payload, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution record: %w", err)
	}

	return &record, nil
}
