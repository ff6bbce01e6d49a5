// Package registry provides node factory registration for the registry system.
package registry

import (
	"fmt"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/nodes/action"
	"github.com/dukex/ledgerflow/pkg/nodes/createdeal"
	"github.com/dukex/ledgerflow/pkg/nodes/log"
	"github.com/dukex/ledgerflow/pkg/nodes/trigger"
	"github.com/dukex/ledgerflow/pkg/protocol"
)

// Collaborators are the host application services behind action nodes. Any of them may be nil;
// the matching node types are then left unregistered and pass through at run time.
type Collaborators struct {
	Entities createdeal.EntityLookup
	Stages   createdeal.StageLookup
	Deals    createdeal.RecordWriter
	Actions  map[models.NodeType]protocol.ActionFunc
}

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes(collaborators Collaborators) error {
	// Trigger nodes
	for _, factory := range trigger.NewTriggerNodeFactories() {
		if err := r.RegisterNode(factory); err != nil {
			return err
		}
	}

	// Log node
	if err := r.RegisterNode(log.NewLogNodeFactory(r.logger)); err != nil {
		return err
	}

	// Create deal node
	if collaborators.Entities != nil && collaborators.Stages != nil && collaborators.Deals != nil {
		factory := createdeal.NewCreateDealNodeFactory(collaborators.Entities, collaborators.Stages, collaborators.Deals)
		if err := r.RegisterNode(factory); err != nil {
			return err
		}
	}

	// Injected action collaborators
	for _, nodeType := range action.CollaboratorTypes() {
		fn, ok := collaborators.Actions[nodeType]
		if !ok || fn == nil {
			continue
		}

		factory, err := action.NewActionNodeFactory(nodeType, fn)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", nodeType, err)
		}

		if err := r.RegisterNode(factory); err != nil {
			return err
		}
	}

	return nil
}
