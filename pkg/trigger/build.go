package trigger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/ledgerflow/pkg/changefeed"
	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
)

var (
	ErrUnsupportedTrigger = errors.New("unsupported trigger type")
	ErrMissingDependency  = errors.New("trigger dependency not configured")
	ErrInvalidParameter   = errors.New("invalid trigger parameter")
)

// fingerprint changes whenever the type or parameters of a trigger node change.
func fingerprint(node *models.WorkflowNode) (string, error) {
	data, err := json.Marshal(struct {
		Type       models.NodeType             `json:"type"`
		Parameters map[string]models.Parameter `json:"parameters"`
	}{node.Type, node.Parameters})
	if err != nil {
		return "", fmt.Errorf("failed to encode trigger %s: %w", node.ID, err)
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:]), nil
}

// build creates the monitoring mechanism for a trigger node.
func (m *Manager) build(key Key, node *models.WorkflowNode) (protocol.Trigger, error) {
	params := node.FixedParameters()
	logger := m.logger.With("workflow_id", key.WorkflowID, "node_id", key.NodeID, "node_type", node.Type)

	switch node.Type {
	case models.NodeTypeTriggerRecordCreated, models.NodeTypeTriggerFieldChanged:
		if m.deps.Feed == nil {
			return nil, fmt.Errorf("%w: change-feed", ErrMissingDependency)
		}

		filter, predicate, err := changeCondition(node.Type, params)
		if err != nil {
			return nil, err
		}

		return newChangeTrigger(m.deps.Feed, filter, predicate, logger), nil

	case models.NodeTypeTriggerScheduleOnce:
		next, err := onceSchedule(params)
		if err != nil {
			return nil, err
		}

		return newTimerTrigger(m.deps.Clock, next, logger), nil

	case models.NodeTypeTriggerScheduleMonthly:
		next, err := monthlySchedule(params)
		if err != nil {
			return nil, err
		}

		return newTimerTrigger(m.deps.Clock, next, logger), nil

	case models.NodeTypeTriggerScheduleCron:
		next, err := cronSchedule(params)
		if err != nil {
			return nil, err
		}

		return newTimerTrigger(m.deps.Clock, next, logger), nil

	case models.NodeTypeTriggerDueSoon, models.NodeTypeTriggerMonthlyThreshold:
		if m.deps.DataSource == nil {
			return nil, fmt.Errorf("%w: data source", ErrMissingDependency)
		}

		interval, err := durationParam(params, "interval", m.config.PollInterval)
		if err != nil {
			return nil, err
		}

		var check pollCheck

		if node.Type == models.NodeTypeTriggerDueSoon {
			check, err = dueSoonCheck(m.deps.DataSource, params)
		} else {
			check, err = thresholdCheck(m.deps.DataSource, params)
		}

		if err != nil {
			return nil, err
		}

		return newPollingTrigger(m.deps.Clock, interval, check, logger), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTrigger, node.Type)
	}
}

// changeCondition maps an event trigger to a change-feed filter and predicate. A field change
// qualifies only when the field moves to the value: old[field] != value && new[field] == value.
func changeCondition(nodeType models.NodeType, params map[string]any) (changefeed.Filter, changefeed.Predicate, error) {
	source, err := stringParam(params, "source")
	if err != nil {
		return changefeed.Filter{}, nil, err
	}

	if nodeType == models.NodeTypeTriggerRecordCreated {
		return changefeed.Filter{Source: source, Operations: []changefeed.Operation{changefeed.OperationInsert}}, nil, nil
	}

	field, err := stringParam(params, "field")
	if err != nil {
		return changefeed.Filter{}, nil, err
	}

	value, ok := params["value"]
	if !ok {
		return changefeed.Filter{}, nil, fmt.Errorf("%w: value is required", ErrInvalidParameter)
	}

	predicate := func(change changefeed.Change) bool {
		return !sameValue(change.Old[field], value) && sameValue(change.New[field], value)
	}

	return changefeed.Filter{Source: source, Operations: []changefeed.Operation{changefeed.OperationUpdate}}, predicate, nil
}

// sameValue compares values decoded from JSON, where every number is a float64.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	fa, aNumber := toFloat(a)
	fb, bNumber := toFloat(b)

	if aNumber && bNumber {
		return fa == fb
	}

	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}

func stringParam(params map[string]any, name string) (string, error) {
	value, _ := params[name].(string)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidParameter, name)
	}

	return value, nil
}

func optionalStringParam(params map[string]any, name, fallback string) string {
	value, _ := params[name].(string)
	if value == "" {
		return fallback
	}

	return value
}

func intParam(params map[string]any, name string) (int, error) {
	f, ok := toFloat(params[name])
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, name)
	}

	if f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidParameter, name)
	}

	return int(f), nil
}

func durationParam(params map[string]any, name string, fallback time.Duration) (time.Duration, error) {
	raw, ok := params[name].(string)
	if !ok || raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidParameter, name, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidParameter, name)
	}

	return d, nil
}

func locationParam(params map[string]any) (*time.Location, error) {
	name := optionalStringParam(params, "timezone", "UTC")

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone: %w", ErrInvalidParameter, err)
	}

	return loc, nil
}
