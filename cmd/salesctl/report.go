package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/app"
	"github.com/jopa/salestracker/internal/config"
	"github.com/jopa/salestracker/internal/repository/postgres"
	"github.com/jopa/salestracker/internal/service/pipeline"
	"github.com/jopa/salestracker/pkg/logger"
	"github.com/jopa/salestracker/pkg/tracing"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Daily report pipeline commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:          "run",
		Short:        "Run the daily report pipeline once and print the report id",
		SilenceUsage: true,
		RunE:         runReport,
	})
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.ValidateReporting(); err != nil {
		return err
	}

	log := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	shutdownTracing, err := tracing.Init(ctx, cfg.Telemetry.ServiceName, cfg.Server.Environment, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := postgres.Open(ctx, cfg.Database, log.Named("repo.postgres"))
	if err != nil {
		return err
	}

	stack, err := app.NewReportStack(ctx, cfg, postgres.NewStore(db), nil, log)
	if err != nil {
		return err
	}
	defer stack.Close(context.Background())

	result, err := stack.Scheduler.Trigger(ctx)
	if err != nil {
		if id, ok := pipeline.DanglingReportID(err); ok {
			log.Error("report stored but not delivered", zap.Uint("report_id", id), zap.Error(err))
		}
		return fmt.Errorf("%s: %w", pipeline.Outcome(err), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "report %d delivered (%s, %d bytes)\n", result.ReportID, result.Title, result.PDFBytes)
	return nil
}
