package sheets

import (
	"context"
	"strconv"

	"github.com/jopa/salestracker/internal/domain/models"
)

// KPIExport appends one row per stored report to a spreadsheet range.
// Columns: report id, report date, title, sales today, profit today,
// transactions today, growth %, top product, low stock count.
type KPIExport struct {
	repo       Repository
	sheetRange string
}

// NewKPIExport builds the export over repo and sheetRange.
func NewKPIExport(repo Repository, sheetRange string) *KPIExport {
	return &KPIExport{repo: repo, sheetRange: sheetRange}
}

// Name identifies the sink in logs.
func (e *KPIExport) Name() string { return "sheets" }

// Publish appends doc's row unless a row for the same report already exists.
func (e *KPIExport) Publish(ctx context.Context, doc models.ReportDocument) error {
	ids, err := e.repo.ReportIDs(ctx, e.sheetRange)
	if err != nil {
		return err
	}

	id := strconv.FormatUint(uint64(doc.Report.ID), 10)
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}

	return e.repo.AppendRow(ctx, e.sheetRange, KPIRow(doc))
}

// KPIRow flattens doc into spreadsheet cells.
func KPIRow(doc models.ReportDocument) []interface{} {
	snapshot := doc.Snapshot
	return []interface{}{
		strconv.FormatUint(uint64(doc.Report.ID), 10),
		snapshot.Today.Start.Format("2006-01-02"),
		doc.Report.Title,
		snapshot.TodayTotals.Total,
		snapshot.TodayTotals.Profit,
		snapshot.TodayTotals.Count,
		snapshot.DayOverDayGrowthPct,
		snapshot.TopProductName(),
		len(snapshot.LowStockProducts),
	}
}
