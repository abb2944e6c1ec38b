package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/config"
	"github.com/jopa/salestracker/internal/observability"
	"github.com/jopa/salestracker/internal/repository/mongodb"
	"github.com/jopa/salestracker/internal/repository/postgres"
	"github.com/jopa/salestracker/internal/repository/redislock"
	"github.com/jopa/salestracker/internal/repository/sheets"
	"github.com/jopa/salestracker/internal/scheduler"
	"github.com/jopa/salestracker/internal/service/delivery"
	"github.com/jopa/salestracker/internal/service/pipeline"
	"github.com/jopa/salestracker/internal/service/reporting"
	"github.com/jopa/salestracker/pkg/clients/gotenberg"
	"github.com/jopa/salestracker/pkg/clients/mailer"
	"github.com/jopa/salestracker/pkg/clients/whatsapp"
	"github.com/jopa/salestracker/pkg/logger"
)

// ReportStack is the daily report pipeline with its scheduler and the
// optional integrations it publishes to.
type ReportStack struct {
	Pipeline  *pipeline.Pipeline
	Scheduler *scheduler.Scheduler
	Archive   *mongodb.Archive
	WhatsApp  *whatsapp.APIClient

	closers []func(context.Context) error
	logger  *zap.Logger
}

// NewReportStack wires the pipeline from cfg. Optional integrations are
// enabled by their settings; a configured integration that cannot connect is
// an error.
func NewReportStack(ctx context.Context, cfg *config.Config, store *postgres.Store, metrics *observability.Metrics, base *zap.Logger) (*ReportStack, error) {
	if base == nil {
		base = zap.NewNop()
	}
	loc := cfg.Location()
	stack := &ReportStack{WhatsApp: whatsapp.NewClient(cfg.WhatsApp), logger: base}

	renderer, err := reporting.NewPDFRenderer(
		gotenberg.NewClient(cfg.Renderer.GotenbergURL, cfg.Reporting.RenderTimeout),
		loc,
	)
	if err != nil {
		return nil, err
	}

	dispatcher := delivery.NewDispatcher(
		mailer.NewSMTPMailer(cfg.Mail),
		cfg.Reporting.Recipients,
		cfg.Mail.FromName,
		logger.Named(base, "svc.delivery"),
	)
	if stack.WhatsApp.Configured() && cfg.Reporting.WhatsAppTo != "" {
		dispatcher.WithDigest(stack.WhatsApp, cfg.Reporting.WhatsAppTo)
	}

	var sinks []pipeline.Sink
	if cfg.MongoDB.URI != "" {
		archive, err := mongodb.NewArchive(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			stack.Close(ctx)
			return nil, err
		}
		stack.Archive = archive
		stack.closers = append(stack.closers, archive.Close)
		sinks = append(sinks, archive)
		base.Info("report archive enabled", zap.String("db", cfg.MongoDB.DBName))
	}
	if cfg.Sheets.SpreadsheetID != "" {
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named(base, "repo.sheets"))
		if err != nil {
			stack.Close(ctx)
			return nil, err
		}
		sinks = append(sinks, sheets.NewKPIExport(repo, cfg.Sheets.Range))
		base.Info("kpi sheet export enabled", zap.String("range", cfg.Sheets.Range))
	}

	stack.Pipeline = pipeline.New(
		reporting.NewAggregator(store, loc, logger.Named(base, "svc.aggregator")),
		reporting.NewComposer(store, cfg.Reporting.SystemUserID),
		renderer,
		dispatcher,
		pipeline.Options{
			RenderTimeout:   cfg.Reporting.RenderTimeout,
			DeliveryTimeout: cfg.Reporting.MailTimeout,
			Sinks:           sinks,
			Metrics:         metrics,
			Logger:          logger.Named(base, "pipeline"),
		},
	)

	guard := scheduler.NewGuard(nil)
	if cfg.Redis.Addr != "" {
		client, err := redislock.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			stack.Close(ctx)
			return nil, err
		}
		stack.closers = append(stack.closers, func(context.Context) error { return client.Close() })
		guard = scheduler.NewGuard(redislock.New(client, redislock.DefaultKey, cfg.Reporting.LockTTL))
		base.Info("distributed run lock enabled", zap.String("addr", cfg.Redis.Addr))
	}

	stack.Scheduler = scheduler.NewScheduler(
		cfg.Reporting.CronSchedule,
		loc,
		cfg.Reporting.RunTimeout,
		stack.Pipeline,
		guard,
		metrics,
		logger.Named(base, "scheduler"),
	)

	return stack, nil
}

// Close releases the connections opened by NewReportStack.
func (s *ReportStack) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.logger.Warn("failed to close report integration", zap.Error(err))
		}
	}
	s.closers = nil
}
