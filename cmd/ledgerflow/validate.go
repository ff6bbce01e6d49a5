package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/ledgerflow/pkg/cmd"
	"github.com/dukex/ledgerflow/pkg/log"
	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/registry"
	"github.com/dukex/ledgerflow/pkg/workflow"
	"github.com/urfave/cli/v3"
)

var ErrInvalidWorkflows = errors.New("invalid workflows found")

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate every stored workflow",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (postgres://, sqlite:// or file://)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("ledgerflow").With("action", "validate")

			reg, err := cmd.NewRegistry(logger, registry.Collaborators{})
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				_ = persistence.Close(ctx)
			}()

			workflows, err := persistence.Workflows().GetAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch workflows: %w", err)
			}

			logger.InfoContext(ctx, "Validating workflows", "workflows", len(workflows))

			return validateWorkflows(os.Stdout, workflow.NewValidator(reg), workflows)
		},
	}
}

func validateWorkflows(out io.Writer, validator *workflow.Validator, workflows []*models.Workflow) error {
	_, _ = fmt.Fprintln(out, "Workflow Validation Results:")
	_, _ = fmt.Fprintln(out, "============================")

	invalid := 0

	for _, wf := range workflows {
		_, _ = fmt.Fprintf(out, "\nWorkflow: %s (%s) [%s]\n", wf.Name, wf.ID, wf.Status)

		problems := workflowProblems(validator, wf)
		if len(problems) == 0 {
			_, _ = fmt.Fprintln(out, "    ✅ VALID")

			continue
		}

		invalid++

		for _, problem := range problems {
			_, _ = fmt.Fprintf(out, "    ❌ INVALID: %s\n", problem)
		}
	}

	_, _ = fmt.Fprintf(out, "\nValidation Summary:\n")
	_, _ = fmt.Fprintf(out, "  Total workflows: %d\n", len(workflows))
	_, _ = fmt.Fprintf(out, "  Valid workflows: %d\n", len(workflows)-invalid)
	_, _ = fmt.Fprintf(out, "  Invalid workflows: %d\n", invalid)

	if invalid > 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkflows, invalid)
	}

	return nil
}

func workflowProblems(validator *workflow.Validator, wf *models.Workflow) []string {
	var problems []string

	err := validator.Validate(wf)
	if err != nil {
		var validationErr *workflow.ValidationError
		if errors.As(err, &validationErr) {
			problems = append(problems, validationErr.Problems...)
		} else {
			problems = append(problems, err.Error())
		}
	}

	if wf.IsActive() && len(wf.TriggerNodes()) == 0 {
		problems = append(problems, "active workflow has no trigger node")
	}

	return problems
}
