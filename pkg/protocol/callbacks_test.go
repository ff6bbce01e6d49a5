package protocol

import (
	"context"
	"testing"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestCallbacks_ZeroValueIsSafe(t *testing.T) {
	var c Callbacks

	assert.NotPanics(t, func() {
		c.NodeStart("n1")
		c.NodeComplete("n1", nil)
		c.NodeError("n1", "boom")
		c.EdgeActivate("e1", "n1", "n2")
		c.Log("n1", models.LogLevelInfo, "hello", nil)
	})
}

func TestCombine_FansOutInOrder(t *testing.T) {
	var calls []string

	first := Callbacks{
		OnNodeStart: func(nodeID string) { calls = append(calls, "first:"+nodeID) },
	}
	second := Callbacks{
		OnNodeStart: func(nodeID string) { calls = append(calls, "second:"+nodeID) },
		OnNodeError: func(nodeID, message string) { calls = append(calls, "error:"+message) },
	}

	combined := Combine(first, second)
	combined.NodeStart("a")
	combined.NodeError("a", "bad")
	combined.NodeComplete("a", 1)

	assert.Equal(t, []string{"first:a", "second:a", "error:bad"}, calls)
}

func TestActionFunc_Execute(t *testing.T) {
	fn := ActionFunc(func(_ context.Context, params map[string]any, _ *models.ExecutionContext) Result {
		return Succeeded(params["title"])
	})

	result := fn.Execute(context.Background(), &models.WorkflowNode{ID: "n"}, map[string]any{"title": "x"}, nil)

	assert.True(t, result.Success)
	assert.Equal(t, "x", result.Output)
	assert.Equal(t, Result{Success: false, Error: "nope"}, Failed("nope"))
}
