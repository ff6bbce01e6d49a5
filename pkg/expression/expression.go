// Package expression resolves expression-mode node parameters against the execution context.
//
// An expression holds one or more {{ path }} placeholders. Paths are gjson paths evaluated
// over the scope {"trigger": <payload>, "nodes": {<nodeId>: <output>}, "execution": {...}}.
// A bare expression without braces is read as a single path.
package expression

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/tidwall/gjson"
)

var (
	ErrUnresolved    = errors.New("expression did not resolve")
	ErrNotExpression = errors.New("expression value must be a string")

	placeholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
)

// ResolveError reports a parameter whose expression could not be resolved.
type ResolveError struct {
	Parameter  string
	Expression string
	Err        error
}

func (e *ResolveError) Error() string {
	if errors.Is(e.Err, ErrNotExpression) {
		return fmt.Sprintf("parameter %q: %v", e.Parameter, e.Err)
	}

	return fmt.Sprintf("parameter %q: expression %q did not resolve", e.Parameter, e.Expression)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Scope is a JSON snapshot of the execution context used for path lookups.
type Scope struct {
	data []byte
}

// NewScope snapshots the execution context. It must be rebuilt after outputs change.
func NewScope(execCtx *models.ExecutionContext) (*Scope, error) {
	scope := map[string]any{
		"trigger": execCtx.TriggerData,
		"nodes":   execCtx.NodeOutputs(),
		"execution": map[string]any{
			"id":          execCtx.ID,
			"workflow_id": execCtx.WorkflowID,
		},
	}

	data, err := json.Marshal(scope)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize expression scope: %w", err)
	}

	return &Scope{data: data}, nil
}

// Lookup returns the value at path, keeping its JSON type.
func (s *Scope) Lookup(path string) (any, bool) {
	result := gjson.GetBytes(s.data, path)
	if !result.Exists() {
		return nil, false
	}

	return result.Value(), true
}

// Evaluate resolves an expression string. A value that is exactly one placeholder keeps
// the type of the referenced value; anything else is interpolated into a string.
func (s *Scope) Evaluate(expr string) (any, error) {
	trimmed := strings.TrimSpace(expr)

	matches := placeholder.FindAllStringSubmatchIndex(trimmed, -1)
	if len(matches) == 0 {
		value, ok := s.Lookup(trimmed)
		if !ok {
			return nil, ErrUnresolved
		}

		return value, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(trimmed) {
		path := trimmed[matches[0][2]:matches[0][3]]

		value, ok := s.Lookup(path)
		if !ok {
			return nil, ErrUnresolved
		}

		return value, nil
	}

	var (
		out     strings.Builder
		lastEnd int
	)

	for _, m := range matches {
		out.WriteString(trimmed[lastEnd:m[0]])

		result := gjson.GetBytes(s.data, trimmed[m[2]:m[3]])
		if !result.Exists() {
			return nil, ErrUnresolved
		}

		if result.IsObject() || result.IsArray() {
			out.WriteString(result.Raw)
		} else {
			out.WriteString(result.String())
		}

		lastEnd = m[1]
	}

	out.WriteString(trimmed[lastEnd:])

	return out.String(), nil
}

// ResolveParameters turns node parameters into plain values. Fixed values pass through untouched;
// expression values are evaluated and any failure is returned as a *ResolveError.
func ResolveParameters(params map[string]models.Parameter, execCtx *models.ExecutionContext) (map[string]any, error) {
	resolved := make(map[string]any, len(params))

	var scope *Scope

	for name, param := range params {
		if param.Mode != models.ParameterModeExpression {
			resolved[name] = param.Value

			continue
		}

		expr, ok := param.Value.(string)
		if !ok {
			return nil, &ResolveError{Parameter: name, Err: ErrNotExpression}
		}

		if scope == nil {
			var err error

			scope, err = NewScope(execCtx)
			if err != nil {
				return nil, err
			}
		}

		value, err := scope.Evaluate(expr)
		if err != nil {
			return nil, &ResolveError{Parameter: name, Expression: strings.TrimSpace(expr), Err: err}
		}

		resolved[name] = value
	}

	return resolved, nil
}
