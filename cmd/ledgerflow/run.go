package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/ledgerflow/pkg/activity"
	"github.com/dukex/ledgerflow/pkg/cmd"
	"github.com/dukex/ledgerflow/pkg/log"
	"github.com/dukex/ledgerflow/pkg/otelhelper"
	"github.com/dukex/ledgerflow/pkg/registry"
	"github.com/dukex/ledgerflow/pkg/services"
	"github.com/dukex/ledgerflow/pkg/trigger"
	"github.com/dukex/ledgerflow/pkg/workflow"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPort     = 9091
	shutdownTimeout = 30 * time.Second
	serviceName     = "ledgerflow"
)

var ErrInvalidVisitPolicy = errors.New("invalid visit policy")

func RunCommand() *cli.Command {
	triggerDefaults := trigger.DefaultConfig()

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Serve the API and monitor the triggers of active workflows",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (postgres://, sqlite:// or file://)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "change-feed",
				Usage:   "Transport for record changes and execution events (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("CHANGE_FEED"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the trigger idempotency store; claims stay in memory when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "reconcile-interval",
				Usage:   "How often active workflows are reconciled with the running triggers",
				Value:   triggerDefaults.ReconcileInterval,
				Sources: cli.EnvVars("RECONCILE_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Default interval of polling triggers",
				Value:   triggerDefaults.PollInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "step-delay",
				Usage:   "Pause between a completed node and its outgoing edges",
				Sources: cli.EnvVars("STEP_DELAY"),
			},
			&cli.StringFlag{
				Name:    "visit-policy",
				Usage:   "How often a node reached by several paths runs (per_path, once)",
				Value:   string(workflow.VisitPerPath),
				Sources: cli.EnvVars("VISIT_POLICY"),
			},
			&cli.IntFlag{
				Name:    "activity-size",
				Usage:   "Number of recent execution and trigger events served by GET /activity",
				Value:   activity.DefaultCapacity,
				Sources: cli.EnvVars("ACTIVITY_SIZE"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("ledgerflow")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing ledgerflow")

			return run(ctx, logger, command)
		},
	}
}

func run(ctx context.Context, logger *slog.Logger, command *cli.Command) error {
	visitPolicy := workflow.VisitPolicy(command.String("visit-policy"))
	if visitPolicy != workflow.VisitPerPath && visitPolicy != workflow.VisitOnce {
		return fmt.Errorf("%w: %s", ErrInvalidVisitPolicy, visitPolicy)
	}

	tracer := otelhelper.NoopTracer()

	if command.Bool("otel-enabled") {
		otelTracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			err := shutdown(context.WithoutCancel(ctx))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()

		tracer = otelTracer
	}

	reg, err := cmd.NewRegistry(logger, registry.Collaborators{})
	if err != nil {
		return err
	}

	cmd.WarnUnwiredNodeTypes(ctx, logger, reg, false)

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(context.WithoutCancel(ctx))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	transport, err := cmd.NewTransport(cmd.TransportConfig{
		Provider:    command.String("change-feed"),
		Brokers:     command.String("kafka-brokers"),
		ServiceName: serviceName,
		OTELEnabled: command.Bool("otel-enabled"),
	}, logger)
	if err != nil {
		return err
	}

	defer func() {
		err := transport.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close transport", "error", err)
		}
	}()

	idempotencyStore, closeIdempotency, err := cmd.NewIdempotencyStore(ctx, logger, command.String("redis-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := closeIdempotency()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close idempotency store", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(transport)
	feed := cmd.NewChangeFeed(transport, logger)

	activityLog, err := activity.NewLog(logger, command.Int("activity-size"))
	if err != nil {
		return err
	}

	err = activityLog.Attach(ctx, eventBus)
	if err != nil {
		return err
	}

	executor := workflow.NewExecutor(logger, reg, workflow.ExecutorConfig{
		VisitPolicy: visitPolicy,
		StepDelay:   command.Duration("step-delay"),
		Tracer:      tracer,
	})
	runner := workflow.NewRunner(logger, executor, persistence.Executions(), eventBus, workflow.RunnerConfig{})

	manager := trigger.NewManager(trigger.Config{
		ReconcileInterval: command.Duration("reconcile-interval"),
		PollInterval:      command.Duration("poll-interval"),
	}, trigger.Dependencies{
		Workflows:   persistence.Workflows(),
		Feed:        feed,
		Runner:      runner,
		Idempotency: idempotencyStore,
		Publisher:   eventBus,
		Logger:      logger,
	})

	workflowService := services.NewWorkflow(logger, persistence, workflow.NewValidator(reg), runner).
		WithReconciler(manager)

	server := NewServer(logger, workflowService, reg, feed, manager, activityLog)

	err = manager.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start trigger manager: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(command.Int("port"))
	})

	g.Go(func() error {
		<-gCtx.Done()

		logger.InfoContext(ctx, "Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return errors.Join(
			server.Shutdown(shutdownCtx),
			manager.Stop(shutdownCtx),
		)
	})

	return g.Wait()
}
