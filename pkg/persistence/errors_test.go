package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/ledgerflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		executionErr := persistence.NewExecutionError("GetByID", "exec-1", persistence.ErrExecutionNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.False(t, persistence.IsWorkflowNotFound(executionErr))
		assert.True(t, persistence.IsExecutionNotFound(executionErr))

		wrapped := fmt.Errorf("service: %w", workflowErr)
		assert.True(t, errors.Is(wrapped, persistence.ErrWorkflowNotFound))
	})

	t.Run("errors contain context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Save", "workflow-123", persistence.ErrInvalidID)

		assert.Equal(t, "Save operation failed for workflow workflow-123: invalid identifier", err.Error())

		execErr := persistence.NewExecutionError("Append", "exec-9", persistence.ErrExecutionAlreadyExists)
		assert.Equal(t, "Append operation failed for execution exec-9: execution already exists", execErr.Error())
	})

	t.Run("nil and unrelated errors", func(t *testing.T) {
		assert.False(t, persistence.IsWorkflowNotFound(nil))
		assert.False(t, persistence.IsExecutionNotFound(errors.New("boom")))
	})
}
