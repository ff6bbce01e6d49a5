package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/persistence"
)

// ExecutionRepository stores one JSON file per execution record.
type ExecutionRepository struct {
	root string
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

// Append writes a new record. The file is created exclusively, so a record is never overwritten.
func (er *ExecutionRepository) Append(_ context.Context, record *models.ExecutionRecord) error {
	err := validateID(record.ExecutionID)
	if err != nil {
		return persistence.NewExecutionError("Append", record.ExecutionID, persistence.ErrInvalidID)
	}

	err = os.MkdirAll(er.dir(), dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution record %s: %w", record.ExecutionID, err)
	}

	f, err := os.OpenFile(filepath.Join(er.dir(), record.ExecutionID+".json"), os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return persistence.NewExecutionError("Append", record.ExecutionID, persistence.ErrExecutionAlreadyExists)
		}

		return fmt.Errorf("failed to create execution record %s: %w", record.ExecutionID, err)
	}

	_, err = f.Write(data)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("failed to write execution record %s: %w", record.ExecutionID, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("failed to close execution record %s: %w", record.ExecutionID, err)
	}

	return nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, executionID string) (*models.ExecutionRecord, error) {
	err := validateID(executionID)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
	}

	return er.read(executionID)
}

// ListByWorkflow returns the records of a workflow, newest first.
func (er *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.ExecutionRecord, error) {
	jsonFiles, err := fs.Glob(os.DirFS(er.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	records := make([]*models.ExecutionRecord, 0)

	for _, file := range jsonFiles {
		record, err := er.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if record.WorkflowID == workflowID {
			records = append(records, record)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ExecutionID < records[j].ExecutionID
		}

		return records[i].StartedAt.After(records[j].StartedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (er *ExecutionRepository) read(executionID string) (*models.ExecutionRecord, error) {
	body, err := os.ReadFile(filepath.Join(er.dir(), executionID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read execution record %s: %w", executionID, err)
	}

	var record models.ExecutionRecord

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution record %s: %w", executionID, err)
	}

	return &record, nil
}
