package trigger

import (
	"testing"

	"github.com/dukex/ledgerflow/pkg/changefeed"
	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Build(t *testing.T) {
	full := NewManager(DefaultConfig(), Dependencies{
		Feed:       &fakeFeed{},
		DataSource: &fakeDataSource{},
		Clock:      clockwork.NewFakeClock(),
		Logger:     discardLogger(),
	})
	bare := NewManager(DefaultConfig(), Dependencies{Logger: discardLogger()})

	tests := []struct {
		name    string
		manager *Manager
		node    *models.WorkflowNode
		wantErr error
	}{
		{
			name:    "record created",
			manager: full,
			node:    testutil.TriggerNode("t", models.NodeTypeTriggerRecordCreated, map[string]any{"source": "deals"}),
		},
		{
			name:    "record created without feed",
			manager: bare,
			node:    testutil.TriggerNode("t", models.NodeTypeTriggerRecordCreated, map[string]any{"source": "deals"}),
			wantErr: ErrMissingDependency,
		},
		{
			name:    "field changed without value",
			manager: full,
			node:    testutil.TriggerNode("t", models.NodeTypeTriggerFieldChanged, map[string]any{"source": "deals", "field": "status"}),
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "monthly",
			manager: bare,
			node:    testutil.TriggerNode("t", models.NodeTypeTriggerScheduleMonthly, map[string]any{"day": 1}),
		},
		{
			name:    "due soon with interval",
			manager: full,
			node:    testutil.TriggerNode("t", models.NodeTypeTriggerDueSoon, map[string]any{"source": "tasks", "days": 2, "interval": "1h"}),
		},
		{
			name:    "due soon with bad interval",
			manager: full,
			node:    testutil.TriggerNode("t", models.NodeTypeTriggerDueSoon, map[string]any{"source": "tasks", "days": 2, "interval": "-1h"}),
			wantErr: ErrInvalidParameter,
		},
		{
			name:    "threshold without data source",
			manager: bare,
			node:    testutil.TriggerNode("t", models.NodeTypeTriggerMonthlyThreshold, map[string]any{"metric": "expenses", "threshold": 10}),
			wantErr: ErrMissingDependency,
		},
		{
			name:    "manual has no mechanism",
			manager: full,
			node:    testutil.TriggerNode("t", models.NodeTypeTriggerManual, nil),
			wantErr: ErrUnsupportedTrigger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := tt.manager.build(Key{WorkflowID: "wf", NodeID: tt.node.ID}, tt.node)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, trigger)
		})
	}
}

func TestChangeCondition_FieldTransition(t *testing.T) {
	filter, predicate, err := changeCondition(models.NodeTypeTriggerFieldChanged, map[string]any{
		"source": "financial_entries",
		"field":  "amount",
		"value":  100,
	})
	require.NoError(t, err)
	assert.Equal(t, "financial_entries", filter.Source)
	assert.Equal(t, []changefeed.Operation{changefeed.OperationUpdate}, filter.Operations)

	tests := []struct {
		name     string
		old      map[string]any
		new      map[string]any
		expected bool
	}{
		{name: "moves to value", old: map[string]any{"amount": 50.0}, new: map[string]any{"amount": 100.0}, expected: true},
		{name: "already at value", old: map[string]any{"amount": 100.0}, new: map[string]any{"amount": 100.0}},
		{name: "moves away", old: map[string]any{"amount": 100.0}, new: map[string]any{"amount": 20.0}},
		{name: "field appears", old: map[string]any{}, new: map[string]any{"amount": 100.0}, expected: true},
		{name: "string form of the value", old: map[string]any{}, new: map[string]any{"amount": "100"}, expected: true},
		{name: "missing everywhere", old: map[string]any{}, new: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, predicate(changefeed.Change{Old: tt.old, New: tt.new}))
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := testutil.TriggerNode("t", models.NodeTypeTriggerRecordCreated, map[string]any{"source": "deals"})
	b := testutil.TriggerNode("t", models.NodeTypeTriggerRecordCreated, map[string]any{"source": "deals"})
	c := testutil.TriggerNode("t", models.NodeTypeTriggerRecordCreated, map[string]any{"source": "tasks"})

	fa, err := fingerprint(a)
	require.NoError(t, err)

	fb, err := fingerprint(b)
	require.NoError(t, err)

	fc, err := fingerprint(c)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)
}
