package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jopa/salestracker/internal/domain/models"
)

var (
	// ErrNoSales is returned when a requested report window holds no sales.
	ErrNoSales = errors.New("no sales found for this period")
	// ErrInvalidWindow is returned when the window ends before it starts.
	ErrInvalidWindow = errors.New("invalid report window")
)

// SalesReportStore is what the on-demand generator reads from and writes to.
type SalesReportStore interface {
	ReportWriter
	SalesBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error)
}

// GenerateRequest describes an on-demand report.
type GenerateRequest struct {
	Type   models.ReportType
	Start  *time.Time
	End    *time.Time
	UserID uint
}

// Generator creates reports over arbitrary windows and links the covered sales.
type Generator struct {
	store SalesReportStore
	loc   *time.Location
	now   func() time.Time
}

// NewGenerator builds a Generator that resolves default windows in loc.
func NewGenerator(store SalesReportStore, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{store: store, loc: loc, now: time.Now}
}

// Generate stores a report covering the request window. A missing start
// defaults to midnight today and a missing end to now.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*models.Report, error) {
	now := g.now().In(g.loc)

	start := models.DayWindow(now, g.loc).Start
	if req.Start != nil {
		start = *req.Start
	}
	end := now
	if req.End != nil {
		end = *req.End
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidWindow, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	sales, err := g.store.SalesBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	if len(sales) == 0 {
		return nil, ErrNoSales
	}

	var totals models.SalesTotals
	for _, s := range sales {
		totals.Total += s.Total
		totals.Profit += s.Profit
	}
	totals.Count = int64(len(sales))
	totals.Average = totals.Total / float64(totals.Count)

	report := &models.Report{
		Title:         fmt.Sprintf("%s Report - %s", req.Type.Label(), now.Format(dateLayout)),
		ReportType:    req.Type,
		TotalSales:    totals.Total,
		TotalProfit:   totals.Profit,
		StartDate:     start,
		EndDate:       end,
		GeneratedByID: req.UserID,
		Summary: fmt.Sprintf("Period: %s to %s\nSales: %d\nTotal Sales: %s\nTotal Profit: %s\nAverage Sale Value: %s",
			start.In(g.loc).Format(dateLayout), end.In(g.loc).Format(dateLayout), totals.Count,
			formatAmount(totals.Total), formatAmount(totals.Profit), formatAmount(totals.Average)),
		Sales: sales,
	}

	if err := g.store.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return report, nil
}
