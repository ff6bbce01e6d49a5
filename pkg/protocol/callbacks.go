package protocol

import "github.com/dukex/ledgerflow/pkg/models"

// Callbacks are the observer hooks emitted by the executor, synchronously and in traversal order.
// Every field is optional.
type Callbacks struct {
	OnNodeStart    func(nodeID string)
	OnNodeComplete func(nodeID string, output any)
	OnNodeError    func(nodeID string, message string)
	OnEdgeActivate func(edgeID, source, target string)
	OnLog          func(nodeID string, level models.LogLevel, message string, data map[string]any)
}

// NodeStart calls OnNodeStart when set.
func (c Callbacks) NodeStart(nodeID string) {
	if c.OnNodeStart != nil {
		c.OnNodeStart(nodeID)
	}
}

// NodeComplete calls OnNodeComplete when set.
func (c Callbacks) NodeComplete(nodeID string, output any) {
	if c.OnNodeComplete != nil {
		c.OnNodeComplete(nodeID, output)
	}
}

// NodeError calls OnNodeError when set.
func (c Callbacks) NodeError(nodeID, message string) {
	if c.OnNodeError != nil {
		c.OnNodeError(nodeID, message)
	}
}

// EdgeActivate calls OnEdgeActivate when set.
func (c Callbacks) EdgeActivate(edgeID, source, target string) {
	if c.OnEdgeActivate != nil {
		c.OnEdgeActivate(edgeID, source, target)
	}
}

// Log calls OnLog when set.
func (c Callbacks) Log(nodeID string, level models.LogLevel, message string, data map[string]any) {
	if c.OnLog != nil {
		c.OnLog(nodeID, level, message, data)
	}
}

// Combine fans every hook out to each of the given callbacks, in argument order.
func Combine(all ...Callbacks) Callbacks {
	return Callbacks{
		OnNodeStart: func(nodeID string) {
			for _, c := range all {
				c.NodeStart(nodeID)
			}
		},
		OnNodeComplete: func(nodeID string, output any) {
			for _, c := range all {
				c.NodeComplete(nodeID, output)
			}
		},
		OnNodeError: func(nodeID, message string) {
			for _, c := range all {
				c.NodeError(nodeID, message)
			}
		},
		OnEdgeActivate: func(edgeID, source, target string) {
			for _, c := range all {
				c.EdgeActivate(edgeID, source, target)
			}
		},
		OnLog: func(nodeID string, level models.LogLevel, message string, data map[string]any) {
			for _, c := range all {
				c.Log(nodeID, level, message, data)
			}
		},
	}
}
