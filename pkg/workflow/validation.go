package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidWorkflow = errors.New("invalid workflow")
	ErrCycle           = errors.New("workflow graph contains a cycle")
)

// ValidationError lists every problem found in a workflow definition.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidWorkflow, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidWorkflow
}

// ParameterValidator checks node parameters against the schema of their node type.
type ParameterValidator interface {
	ValidateParameters(nodeType models.NodeType, params map[string]models.Parameter) error
}

// Validator checks a workflow before it is saved.
type Validator struct {
	validate *validator.Validate
	params   ParameterValidator
}

// NewValidator creates a validator. params may be nil to skip schema checks.
func NewValidator(params ParameterValidator) *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")

		return name
	})

	return &Validator{validate: validate, params: params}
}

// Validate returns a *ValidationError when the workflow cannot be saved. Checks, in order:
// struct fields, unique node ids, known node types, parameter schemas, edge endpoints and
// finally acyclicity.
func (v *Validator) Validate(workflow *models.Workflow) error {
	var problems []string

	err := v.validate.Struct(workflow)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return fmt.Errorf("failed to validate workflow: %w", err)
		}

		for _, fieldErr := range validationErrors {
			problems = append(problems, fmt.Sprintf("%s failed on %s", fieldErr.Namespace(), fieldErr.Tag()))
		}
	}

	seen := make(map[string]bool, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if node == nil {
			continue
		}

		if seen[node.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))
		}

		seen[node.ID] = true

		if !node.Type.Valid() {
			problems = append(problems, fmt.Sprintf("node %q has unknown type %q", node.ID, node.Type))

			continue
		}

		if v.params != nil {
			err := v.params.ValidateParameters(node.Type, node.Parameters)
			if err != nil {
				problems = append(problems, fmt.Sprintf("node %q: %v", node.ID, err))
			}
		}
	}

	edgeIDs := make(map[string]bool, len(workflow.Edges))

	for _, edge := range workflow.Edges {
		if edge == nil {
			continue
		}

		if edgeIDs[edge.ID] {
			problems = append(problems, fmt.Sprintf("duplicate edge id %q", edge.ID))
		}

		edgeIDs[edge.ID] = true

		if !seen[edge.Source] {
			problems = append(problems, fmt.Sprintf("edge %q references unknown source node %q", edge.ID, edge.Source))
		}

		if !seen[edge.Target] {
			problems = append(problems, fmt.Sprintf("edge %q references unknown target node %q", edge.ID, edge.Target))
		}
	}

	err = DetectCycle(workflow.Nodes, workflow.Edges)
	if err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	return nil
}

// DetectCycle runs a depth-first search with temporary and permanent marks and reports the
// first node found on a cycle.
func DetectCycle(nodes []*models.WorkflowNode, edges []*models.Edge) error {
	adjacency := make(map[string][]string, len(nodes))
	for _, edge := range edges {
		if edge == nil {
			continue
		}

		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(id string) error

	visit = func(id string) error {
		if permanent[id] {
			return nil
		}

		if temporary[id] {
			return fmt.Errorf("%w: node %q", ErrCycle, id)
		}

		temporary[id] = true

		for _, next := range adjacency[id] {
			err := visit(next)
			if err != nil {
				return err
			}
		}

		delete(temporary, id)
		permanent[id] = true

		return nil
	}

	for _, node := range nodes {
		if node == nil || permanent[node.ID] {
			continue
		}

		err := visit(node.ID)
		if err != nil {
			return err
		}
	}

	return nil
}
