package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/ledgerflow/pkg/eventbus"
	"github.com/dukex/ledgerflow/pkg/events"
	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/persistence"
	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type RunnerConfig struct {
	EdgePulse time.Duration
	Clock     clockwork.Clock
}

// Runner ties one execution together: it tracks state, stores the finished record and
// publishes timestamped events. Storage and publication are best-effort.
type Runner struct {
	executor   *Executor
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	config     RunnerConfig
	logger     *slog.Logger
}

// NewRunner creates a runner. executions and publisher may be nil.
func NewRunner(
	logger *slog.Logger,
	executor *Executor,
	executions persistence.ExecutionRepository,
	publisher eventbus.EventPublisher,
	config RunnerConfig,
) *Runner {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	return &Runner{
		executor:   executor,
		executions: executions,
		publisher:  publisher,
		config:     config,
		logger:     logger.With("module", "workflow_runner"),
	}
}

type RunOptions struct {
	// ExecutionID is generated when empty.
	ExecutionID string
	// EntryNodeID is the trigger node that fired, when known.
	EntryNodeID    string
	TriggerType    models.NodeType
	TriggerContext map[string]any
	// Callbacks observe the execution next to the tracker.
	Callbacks protocol.Callbacks
}

// Run executes a workflow and returns its result together with the finished record. Failing to
// store or publish never changes the result.
func (r *Runner) Run(ctx context.Context, workflow *models.Workflow, opts RunOptions) (ExecutionResult, *models.ExecutionRecord) {
	if opts.ExecutionID == "" {
		opts.ExecutionID = uuid.NewString()
	}

	logger := r.logger.With("workflow_id", workflow.ID, "execution_id", opts.ExecutionID)

	tracker := NewTracker(opts.ExecutionID, workflow.ID, opts.TriggerType, TrackerConfig{
		EdgePulse: r.config.EdgePulse,
		Clock:     r.config.Clock,
	})

	publish := &publishingCallbacks{
		ctx:         ctx,
		runner:      r,
		logger:      logger,
		workflowID:  workflow.ID,
		executionID: opts.ExecutionID,
	}

	publish.emit(events.ExecutionStarted{
		BaseEvent:   publish.base(events.ExecutionStartedEvent),
		TriggerType: opts.TriggerType,
		TriggerData: opts.TriggerContext,
	})

	result := r.executor.ExecuteWorkflow(ctx, workflow.Nodes, workflow.Edges,
		protocol.Combine(tracker.Callbacks(), publish.callbacks(), opts.Callbacks),
		ExecuteOptions{
			ExecutionID:    opts.ExecutionID,
			WorkflowID:     workflow.ID,
			EntryNodeID:    opts.EntryNodeID,
			TriggerType:    opts.TriggerType,
			TriggerContext: opts.TriggerContext,
		},
	)

	record := tracker.Finish(result)

	if r.executions != nil {
		err := r.executions.Append(ctx, record)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to store execution record", "error", err)
		}
	}

	if result.Success {
		publish.emit(events.ExecutionCompleted{
			BaseEvent:     publish.base(events.ExecutionCompletedEvent),
			DurationMs:    record.DurationMs,
			NodesExecuted: len(record.NodeStates),
			Output:        result.Output,
		})
	} else {
		publish.emit(events.ExecutionFailed{
			BaseEvent:     publish.base(events.ExecutionFailedEvent),
			DurationMs:    record.DurationMs,
			NodesExecuted: len(record.NodeStates),
			Errors:        result.Errors,
		})
	}

	return result, record
}

// publishingCallbacks turns executor callbacks into events on the bus.
type publishingCallbacks struct {
	ctx         context.Context //nolint:containedctx // scoped to one Run call
	runner      *Runner
	logger      *slog.Logger
	workflowID  string
	executionID string
}

func (p *publishingCallbacks) base(eventType events.EventType) events.BaseEvent {
	return events.NewBaseEvent(eventType, p.workflowID, p.executionID, p.runner.config.Clock.Now())
}

func (p *publishingCallbacks) emit(event eventbus.Event) {
	if p.runner.publisher == nil {
		return
	}

	err := p.runner.publisher.Publish(p.ctx, p.executionID, event)
	if err != nil {
		p.logger.ErrorContext(p.ctx, "Failed to publish execution event", "event_type", event.GetType(), "error", err)
	}
}

func (p *publishingCallbacks) callbacks() protocol.Callbacks {
	return protocol.Callbacks{
		OnNodeStart: func(nodeID string) {
			p.emit(events.NodeStarted{BaseEvent: p.base(events.NodeStartedEvent), NodeID: nodeID})
		},
		OnNodeComplete: func(nodeID string, output any) {
			p.emit(events.NodeCompleted{BaseEvent: p.base(events.NodeCompletedEvent), NodeID: nodeID, Output: output})
		},
		OnNodeError: func(nodeID, message string) {
			p.emit(events.NodeFailed{BaseEvent: p.base(events.NodeFailedEvent), NodeID: nodeID, Error: message})
		},
		OnEdgeActivate: func(edgeID, source, target string) {
			p.emit(events.EdgeActivated{
				BaseEvent: p.base(events.EdgeActivatedEvent),
				EdgeID:    edgeID,
				Source:    source,
				Target:    target,
			})
		},
		OnLog: func(nodeID string, level models.LogLevel, message string, data map[string]any) {
			p.emit(events.ExecutionLog{
				BaseEvent: p.base(events.ExecutionLogEvent),
				NodeID:    nodeID,
				Level:     level,
				Message:   message,
				Data:      data,
			})
		},
	}
}
