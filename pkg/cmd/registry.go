// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/registry"
)

// NewRegistry creates a registry holding every built-in node. Action nodes whose collaborators
// are missing stay unregistered.
func NewRegistry(logger *slog.Logger, collaborators registry.Collaborators) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	err := reg.RegisterDefaultNodes(collaborators)
	if err != nil {
		return nil, fmt.Errorf("failed to register nodes: %w", err)
	}

	return reg, nil
}

// UnwiredNodeTypes returns the node types a workflow can use that will not do their work in this
// process: action types without an executor pass through, and polling triggers fail to set up
// without a data source.
func UnwiredNodeTypes(reg *registry.Registry, hasDataSource bool) []models.NodeType {
	unwired := reg.Unregistered()

	if !hasDataSource {
		for _, nodeType := range models.NodeTypes() {
			if nodeType.TriggerKind() == models.TriggerKindPolling {
				unwired = append(unwired, nodeType)
			}
		}
	}

	slices.Sort(unwired)

	return slices.Compact(unwired)
}

// WarnUnwiredNodeTypes logs the node types returned by UnwiredNodeTypes, if any.
func WarnUnwiredNodeTypes(ctx context.Context, logger *slog.Logger, reg *registry.Registry, hasDataSource bool) {
	unwired := UnwiredNodeTypes(reg, hasDataSource)
	if len(unwired) == 0 {
		return
	}

	logger.WarnContext(ctx, "Some node types are not wired in this process; actions pass through and polling triggers are skipped",
		"node_types", unwired,
	)
}
