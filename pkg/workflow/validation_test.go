package workflow_test

import (
	"errors"
	"testing"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/testutil"
	"github.com/dukex/ledgerflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.Workflow)
		problems []string
	}{
		{
			name:   "valid workflow",
			mutate: func(*models.Workflow) {},
		},
		{
			name:     "name too short",
			mutate:   func(w *models.Workflow) { w.Name = "ab" },
			problems: []string{"Workflow.name failed on min"},
		},
		{
			name:     "unknown status",
			mutate:   func(w *models.Workflow) { w.Status = "archived" },
			problems: []string{"Workflow.status failed on oneof"},
		},
		{
			name: "duplicate node id",
			mutate: func(w *models.Workflow) {
				w.Nodes = append(w.Nodes, logNode("log"))
			},
			problems: []string{`duplicate node id "log"`},
		},
		{
			name: "unknown node type",
			mutate: func(w *models.Workflow) {
				w.Nodes[1].Type = "action:launch_rocket"
			},
			problems: []string{`node "log" has unknown type "action:launch_rocket"`},
		},
		{
			name: "dangling edge",
			mutate: func(w *models.Workflow) {
				w.Edges = append(w.Edges, testutil.Edge("log", "ghost"))
			},
			problems: []string{`edge "log-ghost" references unknown target node "ghost"`},
		},
		{
			name: "invalid parameter mode",
			mutate: func(w *models.Workflow) {
				w.Nodes[1].Parameters["level"] = models.Parameter{Mode: "magic", Value: "info"}
			},
			problems: []string{"Workflow.nodes[1].parameters[level].mode failed on oneof"},
		},
		{
			name: "cycle",
			mutate: func(w *models.Workflow) {
				w.Edges = append(w.Edges, testutil.Edge("log", "trigger"))
			},
			problems: []string{`workflow graph contains a cycle: node "trigger"`},
		},
	}

	validator := workflow.NewValidator(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.CreateTestWorkflow()
			tt.mutate(w)

			err := validator.Validate(w)
			if len(tt.problems) == 0 {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, workflow.ErrInvalidWorkflow))

			var validationErr *workflow.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.problems, validationErr.Problems)
		})
	}
}

func TestValidator_ParameterSchemas(t *testing.T) {
	validator := workflow.NewValidator(newTestRegistry(t, nil))

	w := testutil.CreateTestWorkflow()
	w.Nodes[1].Parameters["level"] = models.Fixed("shouting")

	err := validator.Validate(w)
	require.Error(t, err)

	var validationErr *workflow.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Len(t, validationErr.Problems, 1)
	assert.Contains(t, validationErr.Problems[0], `node "log"`)
	assert.Contains(t, validationErr.Problems[0], "level")
}

func TestDetectCycle(t *testing.T) {
	nodes := []*models.WorkflowNode{manualTrigger(), logNode("A"), logNode("B"), logNode("C")}

	tests := []struct {
		name    string
		edges   []*models.Edge
		wantErr bool
	}{
		{name: "chain", edges: []*models.Edge{testutil.Edge("T", "A"), testutil.Edge("A", "B")}},
		{
			name: "diamond is not a cycle",
			edges: []*models.Edge{
				testutil.Edge("T", "A"), testutil.Edge("T", "B"),
				testutil.Edge("A", "C"), testutil.Edge("B", "C"),
			},
		},
		{name: "self loop", edges: []*models.Edge{testutil.Edge("A", "A")}, wantErr: true},
		{
			name:    "back edge",
			edges:   []*models.Edge{testutil.Edge("T", "A"), testutil.Edge("A", "B"), testutil.Edge("B", "T")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := workflow.DetectCycle(nodes, tt.edges)
			if tt.wantErr {
				assert.ErrorIs(t, err, workflow.ErrCycle)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
