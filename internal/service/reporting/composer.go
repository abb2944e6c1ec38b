package reporting

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jopa/salestracker/internal/domain/models"
)

const dateLayout = "2006-01-02"

// ReportWriter persists composed reports.
type ReportWriter interface {
	CreateReport(ctx context.Context, report *models.Report) error
}

// Composer turns a metrics snapshot into a persisted daily report.
type Composer struct {
	reports      ReportWriter
	systemUserID uint
}

// NewComposer builds a Composer that attributes reports to systemUserID.
func NewComposer(reports ReportWriter, systemUserID uint) *Composer {
	return &Composer{reports: reports, systemUserID: systemUserID}
}

// Build assembles the daily report for snapshot without touching the store.
func (c *Composer) Build(snapshot *models.MetricsSnapshot) *models.Report {
	date := ReportDate(snapshot)
	return &models.Report{
		Title:         fmt.Sprintf("%s Report - %s", models.ReportDaily.Label(), date),
		ReportType:    models.ReportDaily,
		TotalSales:    snapshot.TodayTotals.Total,
		TotalProfit:   snapshot.TodayTotals.Profit,
		StartDate:     snapshot.Today.Start,
		EndDate:       snapshot.Today.End,
		GeneratedByID: c.systemUserID,
		Summary:       Summary(snapshot),
	}
}

// Persist builds and stores the daily report for snapshot.
func (c *Composer) Persist(ctx context.Context, snapshot *models.MetricsSnapshot) (*models.Report, error) {
	report := c.Build(snapshot)
	if err := c.reports.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ReportDate is the calendar date the snapshot reports on, in the reporting zone.
func ReportDate(snapshot *models.MetricsSnapshot) string {
	return snapshot.Today.Start.Format(dateLayout)
}

// Summary renders the human readable digest stored alongside the report.
func Summary(snapshot *models.MetricsSnapshot) string {
	lowStock := "None"
	if len(snapshot.LowStockProducts) > 0 {
		items := make([]string, 0, len(snapshot.LowStockProducts))
		for _, p := range snapshot.LowStockProducts {
			items = append(items, fmt.Sprintf("%s (%d)", p.Name, p.Quantity))
		}
		lowStock = strings.Join(items, ", ")
	}

	lines := []string{
		"Report Date: " + ReportDate(snapshot),
		"Total Sales (Today): " + formatAmount(snapshot.TodayTotals.Total),
		"Total Profit (Today): " + formatAmount(snapshot.TodayTotals.Profit),
		"Average Sale Value (All time): " + formatAmount(snapshot.AverageSaleValue),
		"Top Product (All time): " + snapshot.TopProductName(),
		"Top Salesperson (All time): " + snapshot.TopSellerName(),
		"Low Stock Items: " + lowStock,
		fmt.Sprintf("Day-over-day Growth: %.2f%%", snapshot.DayOverDayGrowthPct),
	}
	return strings.Join(lines, "\n")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
