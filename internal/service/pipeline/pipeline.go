package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/domain/models"
	"github.com/jopa/salestracker/internal/observability"
)

var tracer = otel.Tracer("salestracker/pipeline")

// Aggregator computes the metrics snapshot.
type Aggregator interface {
	Compute(ctx context.Context, now time.Time) (*models.MetricsSnapshot, error)
}

// Composer builds and stores the report for a snapshot.
type Composer interface {
	Persist(ctx context.Context, snapshot *models.MetricsSnapshot) (*models.Report, error)
}

// Renderer produces the PDF for a report document.
type Renderer interface {
	Render(ctx context.Context, doc models.ReportDocument) ([]byte, error)
}

// Deliverer sends the rendered report to its recipients.
type Deliverer interface {
	Deliver(ctx context.Context, doc models.ReportDocument, pdf []byte) error
}

// Sink receives a copy of every stored report. Sink failures never fail a run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, doc models.ReportDocument) error
}

// Options tunes a Pipeline. Zero timeouts disable the matching deadline.
type Options struct {
	RenderTimeout   time.Duration
	DeliveryTimeout time.Duration
	Sinks           []Sink
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	Clock           func() time.Time
}

// Result describes a fully delivered run.
type Result struct {
	ReportID uint
	Title    string
	PDFBytes int
	Duration time.Duration
}

// Pipeline runs aggregate, persist, render and deliver in that order.
type Pipeline struct {
	aggregator Aggregator
	composer   Composer
	renderer   Renderer
	deliverer  Deliverer
	opts       Options
	logger     *zap.Logger
}

// New wires a Pipeline.
func New(aggregator Aggregator, composer Composer, renderer Renderer, deliverer Deliverer, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Pipeline{
		aggregator: aggregator,
		composer:   composer,
		renderer:   renderer,
		deliverer:  deliverer,
		opts:       opts,
		logger:     opts.Logger,
	}
}

// RunOnce executes a single pipeline run. On failure the error is one of
// *AggregationError, *PersistError, *RenderError or *DeliveryError.
func (p *Pipeline) RunOnce(ctx context.Context) (result Result, err error) {
	started := p.opts.Clock()

	ctx, span := tracer.Start(ctx, "pipeline.RunOnce")
	defer func() {
		r := recover()
		outcome := Outcome(err)
		switch {
		case r != nil:
			outcome = observability.OutcomePanic
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", r))
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("pipeline.outcome", outcome))
		span.End()
		p.opts.Metrics.ObserveRun(outcome, p.opts.Clock())
		if r != nil {
			panic(r)
		}
	}()

	var snapshot *models.MetricsSnapshot
	err = p.stage(ctx, "aggregate", 0, func(ctx context.Context) error {
		var stageErr error
		snapshot, stageErr = p.aggregator.Compute(ctx, started)
		return stageErr
	})
	if err != nil {
		return Result{}, &AggregationError{Err: err}
	}

	var report *models.Report
	err = p.stage(ctx, "persist", 0, func(ctx context.Context) error {
		var stageErr error
		report, stageErr = p.composer.Persist(ctx, snapshot)
		return stageErr
	})
	if err != nil {
		return Result{}, &PersistError{Err: err}
	}
	span.SetAttributes(attribute.Int("report.id", int(report.ID)))

	doc := models.ReportDocument{Report: *report, Snapshot: *snapshot}
	p.publish(ctx, doc)

	var pdf []byte
	err = p.stage(ctx, "render", p.opts.RenderTimeout, func(ctx context.Context) error {
		var stageErr error
		pdf, stageErr = p.renderer.Render(ctx, doc)
		return stageErr
	})
	if err != nil {
		return Result{}, &RenderError{ReportID: report.ID, Err: err}
	}

	err = p.stage(ctx, "deliver", p.opts.DeliveryTimeout, func(ctx context.Context) error {
		return p.deliverer.Deliver(ctx, doc, pdf)
	})
	if err != nil {
		return Result{}, &DeliveryError{ReportID: report.ID, Err: err}
	}

	result = Result{
		ReportID: report.ID,
		Title:    report.Title,
		PDFBytes: len(pdf),
		Duration: p.opts.Clock().Sub(started),
	}
	p.logger.Info("daily report delivered",
		zap.Uint("report_id", result.ReportID),
		zap.String("title", result.Title),
		zap.Int("pdf_bytes", result.PDFBytes),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "pipeline."+name, trace.WithAttributes(attribute.String("pipeline.stage", name)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.opts.Metrics.ObserveStage(name, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, doc models.ReportDocument) {
	for _, sink := range p.opts.Sinks {
		if err := sink.Publish(ctx, doc); err != nil {
			p.logger.Warn("report sink failed",
				zap.String("sink", sink.Name()),
				zap.Uint("report_id", doc.Report.ID),
				zap.Error(err))
		}
	}
}
