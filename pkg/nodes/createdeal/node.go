// Package createdeal provides the built-in executor that creates a deal from a node's parameters.
package createdeal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/go-playground/validator/v10"
)

// EntityLookup resolves entities referenced by a deal.
type EntityLookup interface {
	ClientExists(ctx context.Context, clientID string) (bool, error)
}

// StageLookup resolves the pipeline stage new deals start in.
type StageLookup interface {
	DefaultStage(ctx context.Context) (string, error)
}

// RecordWriter inserts deals into the host application's store.
type RecordWriter interface {
	InsertDeal(ctx context.Context, deal Deal) (string, error)
}

// Deal is the record handed to RecordWriter.
type Deal struct {
	Title             string  `json:"title"`
	ClientID          string  `json:"client_id"`
	StageID           string  `json:"stage_id"`
	Value             float64 `json:"value"`
	ExpectedCloseDate string  `json:"expected_close_date"`
	Description       string  `json:"description,omitempty"`
	WorkflowID        string  `json:"workflow_id"`
	ExecutionID       string  `json:"execution_id"`
}

type dealInput struct {
	Title             string  `json:"title"               validate:"required"`
	ClientID          string  `json:"client_id"           validate:"required"`
	Value             float64 `json:"value"               validate:"gt=0"`
	ExpectedCloseDate string  `json:"expected_close_date" validate:"required"`
}

// CreateDealNode validates deal parameters and writes the deal through its collaborators.
type CreateDealNode struct {
	entities EntityLookup
	stages   StageLookup
	writer   RecordWriter
	validate *validator.Validate
}

// NewCreateDealNode creates the executor.
func NewCreateDealNode(entities EntityLookup, stages StageLookup, writer RecordWriter) *CreateDealNode {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")

		return name
	})

	return &CreateDealNode{
		entities: entities,
		stages:   stages,
		writer:   writer,
		validate: validate,
	}
}

// Execute validates the parameters, then resolves the client and stage and inserts the deal.
// Validation failures never reach the collaborators.
func (n *CreateDealNode) Execute(
	ctx context.Context,
	_ *models.WorkflowNode,
	params map[string]any,
	execCtx *models.ExecutionContext,
) protocol.Result {
	input, err := n.parse(params)
	if err != nil {
		return protocol.Failed(err.Error())
	}

	exists, err := n.entities.ClientExists(ctx, input.ClientID)
	if err != nil {
		return protocol.Failed(fmt.Sprintf("failed to look up client %s: %v", input.ClientID, err))
	}

	if !exists {
		return protocol.Failed(fmt.Sprintf("client %s not found", input.ClientID))
	}

	stageID, _ := params["stage_id"].(string)
	if stageID == "" {
		stageID, err = n.stages.DefaultStage(ctx)
		if err != nil {
			return protocol.Failed(fmt.Sprintf("failed to resolve default stage: %v", err))
		}
	}

	description, _ := params["description"].(string)

	dealID, err := n.writer.InsertDeal(ctx, Deal{
		Title:             input.Title,
		ClientID:          input.ClientID,
		StageID:           stageID,
		Value:             input.Value,
		ExpectedCloseDate: input.ExpectedCloseDate,
		Description:       description,
		WorkflowID:        execCtx.WorkflowID,
		ExecutionID:       execCtx.ID,
	})
	if err != nil {
		return protocol.Failed(fmt.Sprintf("failed to create deal: %v", err))
	}

	return protocol.Succeeded(map[string]any{
		"deal_id":   dealID,
		"client_id": input.ClientID,
		"stage_id":  stageID,
	})
}

func (n *CreateDealNode) parse(params map[string]any) (*dealInput, error) {
	input := &dealInput{}

	var err error

	if input.Title, err = stringParam(params, "title"); err != nil {
		return nil, err
	}

	if input.ClientID, err = stringParam(params, "client_id"); err != nil {
		return nil, err
	}

	if input.Value, err = numberParam(params, "value"); err != nil {
		return nil, err
	}

	if input.ExpectedCloseDate, err = stringParam(params, "expected_close_date"); err != nil {
		return nil, err
	}

	input.Title = strings.TrimSpace(input.Title)
	input.ClientID = strings.TrimSpace(input.ClientID)
	input.ExpectedCloseDate = strings.TrimSpace(input.ExpectedCloseDate)

	if err := n.validate.Struct(input); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return nil, fieldMessage(validationErrors[0])
		}

		return nil, err
	}

	return input, nil
}

func fieldMessage(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "gt":
		return fmt.Errorf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}

func stringParam(params map[string]any, name string) (string, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return "", nil
	}

	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", name)
	}

	return s, nil
}

func numberParam(params map[string]any, name string) (float64, error) {
	raw, ok := params[name]
	if !ok || raw == nil || raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}

	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", name)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}
