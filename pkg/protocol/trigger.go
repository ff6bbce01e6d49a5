package protocol

import (
	"context"
)

// TriggerCallback is invoked by a running trigger mechanism when its condition fires.
// eventID identifies the occurrence and is used for idempotency claims.
type TriggerCallback func(ctx context.Context, eventID string, payload map[string]any) error

// Trigger is a running monitoring mechanism (subscription, timer or poller) for one trigger node.
type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
}
