package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/persistence"
	"github.com/dukex/ledgerflow/pkg/workflow"
)

const defaultExecutionsLimit = 50

// Runner starts one execution of a workflow.
type Runner interface {
	Run(ctx context.Context, wf *models.Workflow, opts workflow.RunOptions) (workflow.ExecutionResult, *models.ExecutionRecord)
}

// Reconciler applies saved workflow changes to the running triggers.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

type Workflow struct {
	persistence persistence.Persistence
	validator   *workflow.Validator
	runner      Runner
	reconciler  Reconciler
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(logger *slog.Logger, persistence persistence.Persistence, validator *workflow.Validator, runner Runner) *Workflow {
	return &Workflow{
		persistence: persistence,
		validator:   validator,
		runner:      runner,
		logger:      logger.With("module", "workflow_service"),
	}
}

// WithReconciler makes every saved change reconcile the running triggers right away instead of
// waiting for the next periodic pass.
func (w *Workflow) WithReconciler(reconciler Reconciler) *Workflow {
	w.reconciler = reconciler

	return w
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	Status *models.WorkflowStatus

	// Sorting
	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// List retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) List(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := w.validateListWorkflowsRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	all, err := w.persistence.Workflows().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	filtered := make([]*models.Workflow, 0, len(all))

	for _, wf := range all {
		if req.Status != nil && wf.Status != *req.Status {
			continue
		}

		filtered = append(filtered, wf)
	}

	slices.SortStableFunc(filtered, func(a, b *models.Workflow) int {
		var c int

		switch req.SortBy {
		case "name":
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case "updated_at":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}

		c = cmp.Or(c, strings.Compare(a.ID, b.ID))

		if req.SortOrder == "desc" {
			return -c
		}

		return c
	})

	total := len(filtered)
	start := min(req.Offset, total)
	end := min(start+req.Limit, total)

	return &ListWorkflowsResponse{
		Workflows:   filtered[start:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

// validateListWorkflowsRequest validates and sets defaults for the request.
func (w *Workflow) validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "name"}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.Status != nil && !req.Status.Valid() {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *req.Status),
			ErrInvalidStatus,
		)
	}

	return nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.Workflows().GetByID(ctx, id)
}

// Create validates and stores a new workflow. The status defaults to draft.
func (w *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	wf.ID = ""
	wf.CreatedAt = time.Time{}

	if wf.Status == "" {
		wf.Status = models.WorkflowStatusDraft
	}

	err := w.check(wf)
	if err != nil {
		return nil, err
	}

	err = w.persistence.Workflows().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow created", "workflow_id", wf.ID, "status", wf.Status)

	if wf.IsActive() {
		w.reconcile(ctx)
	}

	return wf, nil
}

// Update replaces the definition of an existing workflow.
func (w *Workflow) Update(ctx context.Context, workflowID string, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.persistence.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	wf.ID = workflowID
	wf.CreatedAt = existing.CreatedAt

	if wf.Status == "" {
		wf.Status = existing.Status
	}

	err = w.check(wf)
	if err != nil {
		return nil, err
	}

	err = w.persistence.Workflows().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow updated", "workflow_id", wf.ID, "status", wf.Status)

	if wf.IsActive() || existing.IsActive() {
		w.reconcile(ctx)
	}

	return wf, nil
}

// SetStatus activates, deactivates or drafts a workflow.
func (w *Workflow) SetStatus(ctx context.Context, workflowID string, status models.WorkflowStatus) (*models.Workflow, error) {
	if !status.Valid() {
		return nil, NewValidationError("SetStatus", "INVALID_STATUS", fmt.Sprintf("invalid status '%s'", status), ErrInvalidStatus)
	}

	wf, err := w.persistence.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.Status == status {
		return wf, nil
	}

	previous := wf.Status
	wf.Status = status

	err = w.check(wf)
	if err != nil {
		return nil, err
	}

	err = w.persistence.Workflows().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to change workflow status: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow status changed", "workflow_id", wf.ID, "from", previous, "to", status)

	w.reconcile(ctx)

	return wf, nil
}

// Delete removes a workflow. Its execution history is kept.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	existing, err := w.persistence.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	err = w.persistence.Workflows().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", workflowID)

	if existing.IsActive() {
		w.reconcile(ctx)
	}

	return nil
}

// RunRequest describes a manual execution.
type RunRequest struct {
	// TriggerData is seeded as the trigger payload.
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// RunResponse is the outcome of a manual execution.
type RunResponse struct {
	Result workflow.ExecutionResult `json:"result"`
	Record *models.ExecutionRecord  `json:"record"`
}

// Run executes a workflow on demand, whatever its status, and waits for it to finish.
func (w *Workflow) Run(ctx context.Context, workflowID string, req RunRequest) (*RunResponse, error) {
	wf, err := w.persistence.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	var (
		entryNodeID string
		triggerType models.NodeType
	)

	if entry := workflow.EntryNode(wf.Nodes, "", ""); entry != nil {
		entryNodeID, triggerType = entry.ID, entry.Type
	}

	result, record := w.runner.Run(ctx, wf, workflow.RunOptions{
		EntryNodeID:    entryNodeID,
		TriggerType:    triggerType,
		TriggerContext: req.TriggerData,
	})

	w.logger.InfoContext(ctx, "Manual execution finished",
		"workflow_id", wf.ID,
		"execution_id", record.ExecutionID,
		"success", result.Success,
	)

	return &RunResponse{Result: result, Record: record}, nil
}

// Executions lists the execution history of a workflow, most recent first. The history of a
// deleted workflow is still listed.
func (w *Workflow) Executions(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionRecord, error) {
	if limit <= 0 {
		limit = defaultExecutionsLimit
	}

	records, err := w.persistence.Executions().ListByWorkflow(ctx, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return records, nil
}

// Execution returns one execution record.
func (w *Workflow) Execution(ctx context.Context, executionID string) (*models.ExecutionRecord, error) {
	return w.persistence.Executions().GetByID(ctx, executionID)
}

func (w *Workflow) check(wf *models.Workflow) error {
	err := w.validator.Validate(wf)
	if err != nil {
		return err
	}

	if wf.IsActive() && len(wf.TriggerNodes()) == 0 {
		return ErrTriggerNodeRequired
	}

	return nil
}

func (w *Workflow) reconcile(ctx context.Context) {
	if w.reconciler == nil {
		return
	}

	err := w.reconciler.Reconcile(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to reconcile triggers", "error", err)
	}
}
