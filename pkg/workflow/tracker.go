package workflow

import (
	"sync"
	"time"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultEdgePulse is how long an activated edge stays marked active.
const DefaultEdgePulse = 600 * time.Millisecond

type TrackerConfig struct {
	EdgePulse time.Duration
	Clock     clockwork.Clock
}

// Tracker builds an ExecutionRecord from executor callbacks. It is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	pulse  time.Duration
	record *models.ExecutionRecord
	timers []clockwork.Timer
	pulses map[string]int
	done   bool
}

func NewTracker(executionID, workflowID string, triggerType models.NodeType, config TrackerConfig) *Tracker {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	if config.EdgePulse <= 0 {
		config.EdgePulse = DefaultEdgePulse
	}

	return &Tracker{
		clock:  config.Clock,
		pulse:  config.EdgePulse,
		pulses: make(map[string]int),
		record: &models.ExecutionRecord{
			ExecutionID: executionID,
			WorkflowID:  workflowID,
			Status:      models.ExecutionStatusRunning,
			TriggerType: triggerType,
			StartedAt:   config.Clock.Now().UTC(),
			NodeStates:  make(map[string]*models.NodeExecutionState),
			EdgeStates:  make(map[string]*models.EdgeExecutionState),
			Logs:        make([]models.LogEntry, 0),
		},
	}
}

// Callbacks returns the hooks that feed this tracker.
func (t *Tracker) Callbacks() protocol.Callbacks {
	return protocol.Callbacks{
		OnNodeStart:    t.nodeStarted,
		OnNodeComplete: t.nodeCompleted,
		OnNodeError:    t.nodeFailed,
		OnEdgeActivate: t.edgeActivated,
		OnLog:          t.log,
	}
}

func (t *Tracker) nodeStarted(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	state := t.nodeState(nodeID)
	state.Status = models.NodeStatusRunning
	state.StartedAt = &now
	state.CompletedAt = nil
	state.Error = ""
	state.Runs++
}

func (t *Tracker) nodeCompleted(nodeID string, output any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	state := t.nodeState(nodeID)
	state.Status = models.NodeStatusSuccess
	state.CompletedAt = &now
	state.Output = output
}

func (t *Tracker) nodeFailed(nodeID, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	state := t.nodeState(nodeID)
	state.Status = models.NodeStatusError
	state.CompletedAt = &now
	state.Error = message
}

func (t *Tracker) edgeActivated(edgeID, _, _ string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	state, ok := t.record.EdgeStates[edgeID]
	if !ok {
		state = &models.EdgeExecutionState{EdgeID: edgeID}
		t.record.EdgeStates[edgeID] = state
	}

	state.IsActive = true
	state.ActivatedAt = &now

	if t.done {
		return
	}

	t.pulses[edgeID]++
	generation := t.pulses[edgeID]

	t.timers = append(t.timers, t.clock.AfterFunc(t.pulse, func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		// A later activation restarts the pulse.
		if t.pulses[edgeID] == generation {
			state.IsActive = false
		}
	}))
}

func (t *Tracker) log(nodeID string, level models.LogLevel, message string, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.record.Logs = append(t.record.Logs, models.LogEntry{
		ID:        uuid.NewString(),
		NodeID:    nodeID,
		Timestamp: t.now(),
		Level:     level,
		Message:   message,
		Data:      data,
	})
}

// Finish closes the record with the outcome of the execution and returns a snapshot of it.
// Pending edge pulses are cancelled and every edge ends inactive.
func (t *Tracker) Finish(result ExecutionResult) *models.ExecutionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, timer := range t.timers {
		timer.Stop()
	}

	t.timers = nil
	t.done = true

	for _, edge := range t.record.EdgeStates {
		edge.IsActive = false
	}

	completedAt := t.now()
	t.record.CompletedAt = &completedAt
	t.record.DurationMs = completedAt.Sub(t.record.StartedAt).Milliseconds()
	t.record.Errors = append([]string{}, result.Errors...)

	if result.Success {
		t.record.Status = models.ExecutionStatusCompleted
	} else {
		t.record.Status = models.ExecutionStatusFailed
	}

	return t.snapshot()
}

// Snapshot returns a copy of the record as it stands.
func (t *Tracker) Snapshot() *models.ExecutionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.snapshot()
}

func (t *Tracker) snapshot() *models.ExecutionRecord {
	record := *t.record

	record.NodeStates = make(map[string]*models.NodeExecutionState, len(t.record.NodeStates))
	for id, state := range t.record.NodeStates {
		copied := *state
		record.NodeStates[id] = &copied
	}

	record.EdgeStates = make(map[string]*models.EdgeExecutionState, len(t.record.EdgeStates))
	for id, state := range t.record.EdgeStates {
		copied := *state
		record.EdgeStates[id] = &copied
	}

	record.Logs = append([]models.LogEntry{}, t.record.Logs...)
	record.Errors = append([]string(nil), t.record.Errors...)

	return &record
}

func (t *Tracker) nodeState(nodeID string) *models.NodeExecutionState {
	state, ok := t.record.NodeStates[nodeID]
	if !ok {
		state = &models.NodeExecutionState{NodeID: nodeID, Status: models.NodeStatusIdle}
		t.record.NodeStates[nodeID] = state
	}

	return state
}

func (t *Tracker) now() time.Time {
	return t.clock.Now().UTC()
}
