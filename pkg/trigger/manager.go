// Package trigger keeps the monitoring mechanism of every automatic trigger node of the active
// workflows running, and starts an execution when one of them fires.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukex/ledgerflow/pkg/changefeed"
	"github.com/dukex/ledgerflow/pkg/eventbus"
	"github.com/dukex/ledgerflow/pkg/events"
	"github.com/dukex/ledgerflow/pkg/idempotency"
	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/persistence"
	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/dukex/ledgerflow/pkg/workflow"
	"github.com/jonboulle/clockwork"
)

var (
	ErrAlreadyStarted = errors.New("trigger manager already started")
	ErrNotStarted     = errors.New("trigger manager not started")
)

type Config struct {
	// ReconcileInterval is how often running mechanisms are compared with the active workflows.
	ReconcileInterval time.Duration
	// PollInterval is used by polling triggers that do not set their own interval.
	PollInterval time.Duration
	// IdempotencyTTL is how long a claimed event id blocks a second execution.
	IdempotencyTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReconcileInterval: 30 * time.Second,
		PollInterval:      5 * time.Minute,
		IdempotencyTTL:    24 * time.Hour,
	}
}

// Runner starts one execution of a workflow.
type Runner interface {
	Run(ctx context.Context, wf *models.Workflow, opts workflow.RunOptions) (workflow.ExecutionResult, *models.ExecutionRecord)
}

// Dependencies are the collaborators of the manager. Feed, DataSource, Idempotency and Publisher
// are optional; triggers that need a missing collaborator fail to set up and are skipped.
type Dependencies struct {
	Workflows   persistence.WorkflowRepository
	Feed        changefeed.Feed
	DataSource  DataSource
	Runner      Runner
	Clock       clockwork.Clock
	Idempotency idempotency.Store
	Publisher   eventbus.EventPublisher
	Logger      *slog.Logger
}

// Key identifies a running mechanism.
type Key struct {
	WorkflowID string
	NodeID     string
}

func (k Key) String() string {
	return k.WorkflowID + "/" + k.NodeID
}

type runningTrigger struct {
	trigger     protocol.Trigger
	nodeType    models.NodeType
	fingerprint string
}

type desiredTrigger struct {
	node        *models.WorkflowNode
	fingerprint string
}

type Manager struct {
	config Config
	deps   Dependencies
	logger *slog.Logger

	mu      sync.Mutex
	running map[Key]*runningTrigger
	runCtx  context.Context //nolint:containedctx // lifetime of the started manager, guarded by mu

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	loopDone  chan struct{}

	// accepting is true between Start and Stop. inflight only grows while it holds.
	gate      sync.Mutex
	accepting bool
	inflight  sync.WaitGroup
}

func NewManager(config Config, deps Dependencies) *Manager {
	defaults := DefaultConfig()

	if config.ReconcileInterval <= 0 {
		config.ReconcileInterval = defaults.ReconcileInterval
	}

	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}

	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = defaults.IdempotencyTTL
	}

	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Manager{
		config:  config,
		deps:    deps,
		logger:  deps.Logger.With("module", "trigger_manager"),
		running: make(map[Key]*runningTrigger),
	}
}

// Start sets up the mechanisms of the active workflows and keeps reconciling them every
// ReconcileInterval until Stop is called or ctx ends.
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.runCtx = runCtx
	m.mu.Unlock()

	m.gate.Lock()
	m.accepting = true
	m.gate.Unlock()

	m.cancel = cancel
	m.loopDone = make(chan struct{})

	m.logger.InfoContext(ctx, "Starting trigger manager", "reconcile_interval", m.config.ReconcileInterval)

	err := m.Initialize(runCtx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Initial reconciliation failed", "error", err)
	}

	go m.loop(runCtx)

	return nil
}

// Initialize loads the active workflows and sets up their triggers. Calling it again reconciles
// instead of duplicating mechanisms.
func (m *Manager) Initialize(ctx context.Context) error {
	return m.Reconcile(ctx)
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.loopDone)

	ticker := m.deps.Clock.NewTicker(m.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			err := m.Reconcile(ctx)
			if err != nil {
				m.logger.ErrorContext(ctx, "Reconciliation failed", "error", err)
			}
		}
	}
}

// Stop ends reconciliation, tears down every mechanism and waits for in-flight executions
// until ctx ends.
func (m *Manager) Stop(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.cancel == nil {
		return ErrNotStarted
	}

	m.logger.InfoContext(ctx, "Stopping trigger manager")

	m.cancel()
	<-m.loopDone

	m.gate.Lock()
	m.accepting = false
	m.gate.Unlock()

	m.mu.Lock()
	for key, running := range m.running {
		m.teardown(ctx, key, running)
	}

	m.runCtx = nil
	m.mu.Unlock()

	m.cancel = nil

	done := make(chan struct{})

	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for running executions: %w", ctx.Err())
	}
}

// Reconcile compares the running mechanisms with the automatic trigger nodes of the active
// workflows. Mechanisms no longer wanted, or whose parameters changed, are torn down; missing
// ones are set up. A trigger that fails to set up is logged and skipped. Before Start, and
// after Stop, it does nothing.
func (m *Manager) Reconcile(ctx context.Context) error {
	if !m.started() {
		m.logger.DebugContext(ctx, "Trigger manager not started, skipping reconciliation")

		return nil
	}

	active, err := m.deps.Workflows.ActiveWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active workflows: %w", err)
	}

	desired := make(map[Key]desiredTrigger)

	for _, wf := range active {
		for _, node := range wf.Nodes {
			if !isAutomatic(node.Type) {
				continue
			}

			fp, err := fingerprint(node)
			if err != nil {
				m.logger.ErrorContext(ctx, "Failed to fingerprint trigger", "workflow_id", wf.ID, "node_id", node.ID, "error", err)

				continue
			}

			desired[Key{WorkflowID: wf.ID, NodeID: node.ID}] = desiredTrigger{node: node, fingerprint: fp}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Stop may have run while the workflows were loading.
	if m.runCtx == nil {
		return nil
	}

	removed, added := 0, 0

	for key, running := range m.running {
		want, ok := desired[key]
		if ok && want.fingerprint == running.fingerprint {
			continue
		}

		m.teardown(ctx, key, running)
		removed++
	}

	for key, want := range desired {
		if _, ok := m.running[key]; ok {
			continue
		}

		err := m.setup(m.runCtx, key, want)
		if err != nil {
			m.logger.ErrorContext(ctx, "Failed to set up trigger",
				"workflow_id", key.WorkflowID,
				"node_id", key.NodeID,
				"node_type", want.node.Type,
				"error", err,
			)

			continue
		}

		added++
	}

	if removed > 0 || added > 0 {
		m.logger.InfoContext(ctx, "Reconciled triggers", "started", added, "stopped", removed, "running", len(m.running))
	}

	return nil
}

// Running returns the keys of the running mechanisms, sorted.
func (m *Manager) Running() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]Key, 0, len(m.running))
	for key := range m.running {
		keys = append(keys, key)
	}

	slices.SortFunc(keys, func(a, b Key) int {
		return strings.Compare(a.String(), b.String())
	})

	return keys
}

func (m *Manager) started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.runCtx != nil
}

// setup must be called with m.mu held.
func (m *Manager) setup(ctx context.Context, key Key, want desiredTrigger) error {
	trigger, err := m.build(key, want.node)
	if err != nil {
		return err
	}

	err = trigger.Start(ctx, m.callback(key, want.node.Type))
	if err != nil {
		return fmt.Errorf("failed to start trigger: %w", err)
	}

	m.running[key] = &runningTrigger{
		trigger:     trigger,
		nodeType:    want.node.Type,
		fingerprint: want.fingerprint,
	}

	m.logger.InfoContext(ctx, "Started trigger", "workflow_id", key.WorkflowID, "node_id", key.NodeID, "node_type", want.node.Type)

	return nil
}

// teardown must be called with m.mu held. The entry leaves the registry before the mechanism is
// stopped, so a mechanism is never stopped twice.
func (m *Manager) teardown(ctx context.Context, key Key, running *runningTrigger) {
	delete(m.running, key)

	err := running.trigger.Stop(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to stop trigger", "workflow_id", key.WorkflowID, "node_id", key.NodeID, "error", err)

		return
	}

	m.logger.InfoContext(ctx, "Stopped trigger", "workflow_id", key.WorkflowID, "node_id", key.NodeID, "node_type", running.nodeType)
}

func (m *Manager) callback(key Key, nodeType models.NodeType) protocol.TriggerCallback {
	return func(ctx context.Context, eventID string, payload map[string]any) error {
		return m.fire(ctx, key, nodeType, eventID, payload)
	}
}

// fire reloads the saved workflow and starts an execution in its own goroutine. Executions of
// the same workflow are independent and may overlap. Stop waits for fire itself as well as for
// the execution it starts.
func (m *Manager) fire(ctx context.Context, key Key, nodeType models.NodeType, eventID string, payload map[string]any) error {
	logger := m.logger.With("workflow_id", key.WorkflowID, "node_id", key.NodeID, "node_type", nodeType, "event_id", eventID)

	m.gate.Lock()
	if !m.accepting {
		m.gate.Unlock()
		m.skip(ctx, logger, key, nodeType, "trigger manager stopped")

		return nil
	}

	m.inflight.Add(1)
	m.gate.Unlock()

	launched := false

	defer func() {
		if !launched {
			m.inflight.Done()
		}
	}()

	wf, err := m.deps.Workflows.GetByID(ctx, key.WorkflowID)
	if errors.Is(err, persistence.ErrWorkflowNotFound) {
		m.skip(ctx, logger, key, nodeType, "workflow no longer exists")

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", key.WorkflowID, err)
	}

	if !wf.IsActive() {
		m.skip(ctx, logger, key, nodeType, "workflow is not active")

		return nil
	}

	node := wf.NodeByID(key.NodeID)
	if node == nil || node.Type != nodeType {
		m.skip(ctx, logger, key, nodeType, "trigger node no longer in workflow")

		return nil
	}

	if m.deps.Idempotency != nil && eventID != "" {
		claimed, err := m.deps.Idempotency.Claim(ctx, key.String()+"/"+eventID, m.config.IdempotencyTTL)

		switch {
		case err != nil:
			logger.WarnContext(ctx, "Idempotency claim failed, running anyway", "error", err)
		case !claimed:
			m.skip(ctx, logger, key, nodeType, "event already handled")

			return nil
		}
	}

	m.publish(ctx, logger, key, events.TriggerFired{
		BaseEvent: events.NewBaseEvent(events.TriggerFiredEvent, key.WorkflowID, "", m.deps.Clock.Now()),
		NodeID:    key.NodeID,
		NodeType:  nodeType,
		EventID:   eventID,
	})

	logger.InfoContext(ctx, "Trigger fired, starting execution")

	launched = true

	go func() {
		defer m.inflight.Done()

		runCtx := context.WithoutCancel(ctx)

		result, record := m.deps.Runner.Run(runCtx, wf, workflow.RunOptions{
			EntryNodeID:    key.NodeID,
			TriggerType:    nodeType,
			TriggerContext: payload,
		})

		logger.InfoContext(runCtx, "Triggered execution finished",
			"execution_id", record.ExecutionID,
			"success", result.Success,
			"errors", len(result.Errors),
		)
	}()

	return nil
}

func (m *Manager) skip(ctx context.Context, logger *slog.Logger, key Key, nodeType models.NodeType, reason string) {
	logger.InfoContext(ctx, "Skipping trigger", "reason", reason)

	m.publish(ctx, logger, key, events.TriggerSkipped{
		BaseEvent: events.NewBaseEvent(events.TriggerSkippedEvent, key.WorkflowID, "", m.deps.Clock.Now()),
		NodeID:    key.NodeID,
		NodeType:  nodeType,
		Reason:    reason,
	})
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, key Key, event eventbus.Event) {
	if m.deps.Publisher == nil {
		return
	}

	err := m.deps.Publisher.Publish(ctx, key.WorkflowID, event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to publish trigger event", "event_type", event.GetType(), "error", err)
	}
}

func isAutomatic(nodeType models.NodeType) bool {
	switch nodeType.TriggerKind() {
	case models.TriggerKindEvent, models.TriggerKindSchedule, models.TriggerKindPolling:
		return true
	default:
		return false
	}
}
