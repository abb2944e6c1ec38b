package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jopa/salestracker/internal/domain/models"
	"github.com/jopa/salestracker/internal/observability"
	"github.com/jopa/salestracker/internal/repository/postgres"
	"github.com/jopa/salestracker/internal/service/delivery"
	"github.com/jopa/salestracker/internal/service/reporting"
	"github.com/jopa/salestracker/internal/testutil"
)

var nairobi, _ = time.LoadLocation("Africa/Nairobi")

type converterFunc func(ctx context.Context, html []byte) ([]byte, error)

func (f converterFunc) ConvertHTML(ctx context.Context, html []byte) ([]byte, error) {
	return f(ctx, html)
}

func okConverter(context.Context, []byte) ([]byte, error) {
	return []byte("%PDF-1.7 report"), nil
}

type fakeSender struct {
	verifyErr error
	sendErr   error
	sent      []models.MailMessage
}

func (f *fakeSender) Verify(context.Context) error { return f.verifyErr }

func (f *fakeSender) Send(_ context.Context, msg models.MailMessage) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

type recordingSink struct {
	err  error
	docs []models.ReportDocument
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, doc models.ReportDocument) error {
	s.docs = append(s.docs, doc)
	return s.err
}

type harness struct {
	store  *postgres.Store
	fx     *testutil.Fixture
	sender *fakeSender
	sink   *recordingSink
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.NewFixture(t, db)
	fx.User("System", models.RoleAdmin)

	return &harness{
		store:  postgres.NewStore(db),
		fx:     fx,
		sender: &fakeSender{},
		sink:   &recordingSink{},
		now:    time.Date(2025, 3, 10, 23, 0, 0, 0, nairobi),
	}
}

func (h *harness) pipeline(t *testing.T, converter reporting.HTMLConverter, opts Options) *Pipeline {
	t.Helper()
	renderer, err := reporting.NewPDFRenderer(converter, nairobi)
	require.NoError(t, err)

	if opts.Clock == nil {
		opts.Clock = func() time.Time { return h.now }
	}
	opts.Sinks = append(opts.Sinks, h.sink)

	return New(
		reporting.NewAggregator(h.store, nairobi, nil),
		reporting.NewComposer(h.store, 1),
		renderer,
		delivery.NewDispatcher(h.sender, []string{"owner@example.com"}, "Jopa Sales System", nil),
		opts,
	)
}

func (h *harness) seedTodaySales(t *testing.T) {
	t.Helper()
	keeper := h.fx.User("Keeper", models.RoleRecordKeeper)
	product := h.fx.Product("Widget", 10, 40)
	h.fx.Sale(product, keeper, 10, 100, 25, time.Date(2025, 3, 10, 9, 0, 0, 0, nairobi))
	h.fx.Sale(product, keeper, 8, 77.5, 20, time.Date(2025, 3, 10, 14, 0, 0, 0, nairobi))
}

func (h *harness) reportCount(t *testing.T) int64 {
	t.Helper()
	count, err := h.store.CountReports(context.Background())
	require.NoError(t, err)
	return count
}

func TestRunOnce_DeliversDailyReport(t *testing.T) {
	h := newHarness(t)
	h.seedTodaySales(t)

	result, err := h.pipeline(t, converterFunc(okConverter), Options{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, result.ReportID)
	assert.Equal(t, "Daily Report - 2025-03-10", result.Title)

	report, err := h.store.GetReport(context.Background(), result.ReportID)
	require.NoError(t, err)
	assert.InDelta(t, 177.5, report.TotalSales, 1e-9)
	assert.InDelta(t, 45.0, report.TotalProfit, 1e-9)
	assert.Equal(t, models.ReportDaily, report.ReportType)
	assert.Equal(t, uint(1), report.GeneratedByID)
	assert.Equal(t, int64(1), h.reportCount(t))

	require.Len(t, h.sender.sent, 1)
	msg := h.sender.sent[0]
	assert.Equal(t, "Daily Sales Report - 2025-03-10", msg.Subject)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "Daily_Report_2025-03-10.pdf", msg.Attachments[0].Filename)
	assert.NotEmpty(t, msg.Attachments[0].Content)

	require.Len(t, h.sink.docs, 1)
	assert.InDelta(t, 17750.0, h.sink.docs[0].Snapshot.DayOverDayGrowthPct, 1e-9)
}

func TestRunOnce_RenderFailureLeavesDanglingReport(t *testing.T) {
	h := newHarness(t)
	h.seedTodaySales(t)

	renderErr := errors.New("converter unavailable")
	failing := converterFunc(func(context.Context, []byte) ([]byte, error) { return nil, renderErr })

	_, err := h.pipeline(t, failing, Options{}).RunOnce(context.Background())

	var target *RenderError
	require.ErrorAs(t, err, &target)
	assert.ErrorIs(t, err, renderErr)
	assert.NotZero(t, target.ReportID)

	_, err = h.store.GetReport(context.Background(), target.ReportID)
	assert.NoError(t, err)
	assert.Empty(t, h.sender.sent)
}

func TestRunOnce_RenderDeadline(t *testing.T) {
	h := newHarness(t)

	blocking := converterFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	_, err := h.pipeline(t, blocking, Options{RenderTimeout: 50 * time.Millisecond}).RunOnce(context.Background())

	var target *RenderError
	require.ErrorAs(t, err, &target)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	id, ok := DanglingReportID(err)
	assert.True(t, ok)
	assert.Equal(t, target.ReportID, id)
}

func TestRunOnce_DeliveryFailure(t *testing.T) {
	h := newHarness(t)
	h.seedTodaySales(t)
	h.sender.sendErr = errors.New("535 authentication failed")

	_, err := h.pipeline(t, converterFunc(okConverter), Options{}).RunOnce(context.Background())

	var target *DeliveryError
	require.ErrorAs(t, err, &target)
	assert.NotZero(t, target.ReportID)
	assert.Equal(t, int64(1), h.reportCount(t))
	assert.Equal(t, observability.OutcomeDeliveryError, Outcome(err))
}

func TestRunOnce_VerifyFailureStillSends(t *testing.T) {
	h := newHarness(t)
	h.sender.verifyErr = errors.New("dial tcp: timeout")

	_, err := h.pipeline(t, converterFunc(okConverter), Options{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.sender.sent, 1)
}

type failingAggregator struct{ err error }

func (f failingAggregator) Compute(context.Context, time.Time) (*models.MetricsSnapshot, error) {
	return nil, f.err
}

func TestRunOnce_AggregationFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	renderer, err := reporting.NewPDFRenderer(converterFunc(okConverter), nairobi)
	require.NoError(t, err)

	aggErr := errors.New("connection reset")
	p := New(
		failingAggregator{err: aggErr},
		reporting.NewComposer(h.store, 1),
		renderer,
		delivery.NewDispatcher(h.sender, []string{"owner@example.com"}, "Jopa", nil),
		Options{},
	)

	_, err = p.RunOnce(context.Background())
	var target *AggregationError
	require.ErrorAs(t, err, &target)
	assert.ErrorIs(t, err, aggErr)
	assert.Zero(t, h.reportCount(t))
	assert.Empty(t, h.sender.sent)

	_, dangling := DanglingReportID(err)
	assert.False(t, dangling)
}

type failingComposer struct{}

func (failingComposer) Persist(context.Context, *models.MetricsSnapshot) (*models.Report, error) {
	return nil, errors.New("disk full")
}

func TestRunOnce_PersistFailure(t *testing.T) {
	h := newHarness(t)
	renderer, err := reporting.NewPDFRenderer(converterFunc(okConverter), nairobi)
	require.NoError(t, err)

	p := New(reporting.NewAggregator(h.store, nairobi, nil), failingComposer{}, renderer,
		delivery.NewDispatcher(h.sender, []string{"owner@example.com"}, "Jopa", nil), Options{})

	_, err = p.RunOnce(context.Background())
	var target *PersistError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, observability.OutcomePersistError, Outcome(err))
	assert.Empty(t, h.sender.sent)
}

func TestRunOnce_SinkFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errors.New("archive offline")

	_, err := h.pipeline(t, converterFunc(okConverter), Options{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.sink.docs, 1)
	assert.Len(t, h.sender.sent, 1)
}

type panickingRenderer struct{}

func (panickingRenderer) Render(context.Context, models.ReportDocument) ([]byte, error) {
	panic("template exploded")
}

func TestRunOnce_PanicIsRecordedAndPropagated(t *testing.T) {
	h := newHarness(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	p := New(
		reporting.NewAggregator(h.store, nairobi, nil),
		reporting.NewComposer(h.store, 1),
		panickingRenderer{},
		delivery.NewDispatcher(h.sender, []string{"owner@example.com"}, "Jopa", nil),
		Options{Metrics: metrics, Clock: func() time.Time { return h.now }},
	)

	assert.PanicsWithValue(t, "template exploded", func() {
		_, _ = p.RunOnce(context.Background())
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, observability.OutcomeSuccess, Outcome(nil))
	assert.Equal(t, observability.OutcomeAggregationError, Outcome(&AggregationError{Err: errors.New("x")}))
	assert.Equal(t, observability.OutcomeRenderError, Outcome(&RenderError{ReportID: 3, Err: errors.New("x")}))
	assert.Equal(t, "error", Outcome(errors.New("other")))
}
