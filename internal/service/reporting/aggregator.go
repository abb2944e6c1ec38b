package reporting

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/domain/models"
)

const (
	topUsersLimit    = 5
	recentSalesLimit = 10
	weeklyLookback   = 8
	monthlyLookback  = 6
)

// Ledger is the read side of the sales store the aggregator depends on.
type Ledger interface {
	SalesTotals(ctx context.Context, window *models.Window) (models.SalesTotals, error)
	TopProducts(ctx context.Context, limit int) ([]models.ProductSales, error)
	TopUsers(ctx context.Context, limit int) ([]models.UserSales, error)
	LowStockProducts(ctx context.Context, threshold int) ([]models.Product, error)
	RecentSales(ctx context.Context, limit int) ([]models.Sale, error)
	SalesBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error)
}

// Aggregator computes the KPI snapshot that feeds the daily report.
type Aggregator struct {
	ledger Ledger
	loc    *time.Location
	logger *zap.Logger
}

// NewAggregator builds an Aggregator that cuts day boundaries in loc.
func NewAggregator(ledger Ledger, loc *time.Location, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{ledger: ledger, loc: loc, logger: logger}
}

// Compute reads the ledger and returns a complete snapshot as of now. Any read
// failure aborts the computation and no partial snapshot is returned.
func (a *Aggregator) Compute(ctx context.Context, now time.Time) (*models.MetricsSnapshot, error) {
	all, err := a.ledger.SalesTotals(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("overall totals: %w", err)
	}

	topProducts, err := a.ledger.TopProducts(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("top product: %w", err)
	}

	topUsers, err := a.ledger.TopUsers(ctx, topUsersLimit)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}

	lowStock, err := a.ledger.LowStockProducts(ctx, models.LowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}

	recent, err := a.ledger.RecentSales(ctx, recentSalesLimit)
	if err != nil {
		return nil, fmt.Errorf("recent sales: %w", err)
	}

	today := models.DayWindow(now, a.loc)
	yesterday := models.Window{
		Start: today.Start.AddDate(0, 0, -1),
		End:   today.Start.Add(-time.Nanosecond),
	}

	todayTotals, err := a.ledger.SalesTotals(ctx, &today)
	if err != nil {
		return nil, fmt.Errorf("today totals: %w", err)
	}
	yesterdayTotals, err := a.ledger.SalesTotals(ctx, &yesterday)
	if err != nil {
		return nil, fmt.Errorf("yesterday totals: %w", err)
	}

	weekly, monthly, err := a.series(ctx, today)
	if err != nil {
		return nil, err
	}

	snapshot := &models.MetricsSnapshot{
		TotalSales:          all.Total,
		TotalProfit:         all.Profit,
		AverageSaleValue:    all.Average,
		TopUsers:            nonNil(topUsers),
		LowStockProducts:    nonNil(lowStock),
		Today:               today,
		TodayTotals:         todayTotals,
		YesterdayTotals:     yesterdayTotals,
		DayOverDayGrowthPct: GrowthRate(todayTotals.Total, yesterdayTotals.Total),
		RecentSales:         nonNil(recent),
		WeeklySales:         weekly,
		MonthlySales:        monthly,
	}
	if len(topProducts) > 0 {
		top := topProducts[0]
		snapshot.TopProduct = &top
	}

	a.logger.Debug("metrics computed",
		zap.Float64("total_sales", snapshot.TotalSales),
		zap.Float64("today_sales", todayTotals.Total),
		zap.Float64("growth_pct", snapshot.DayOverDayGrowthPct))

	return snapshot, nil
}

// GrowthRate returns the day-over-day change in percent. A zero yesterday is
// treated as a denominator of 1, and non-finite results collapse to 0.
func GrowthRate(today, yesterday float64) float64 {
	denominator := yesterday
	if denominator == 0 {
		denominator = 1
	}
	rate := (today - yesterday) / denominator * 100
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return rate
}

func (a *Aggregator) series(ctx context.Context, today models.Window) ([]models.PeriodSales, []models.PeriodSales, error) {
	weekStart := startOfWeek(today.Start).AddDate(0, 0, -7*(weeklyLookback-1))
	monthStart := startOfMonth(today.Start).AddDate(0, -(monthlyLookback - 1), 0)

	from := weekStart
	if monthStart.Before(from) {
		from = monthStart
	}

	sales, err := a.ledger.SalesBetween(ctx, from, today.End)
	if err != nil {
		return nil, nil, fmt.Errorf("sales series: %w", err)
	}

	weekly := buckets(weekStart, weeklyLookback, func(t time.Time) time.Time { return t.AddDate(0, 0, 7) })
	monthly := buckets(monthStart, monthlyLookback, func(t time.Time) time.Time { return t.AddDate(0, 1, 0) })

	for _, sale := range sales {
		at := sale.CreatedAt.In(a.loc)
		accumulate(weekly, startOfWeek(at), sale)
		accumulate(monthly, startOfMonth(at), sale)
	}

	return weekly, monthly, nil
}

func buckets(start time.Time, n int, next func(time.Time) time.Time) []models.PeriodSales {
	out := make([]models.PeriodSales, n)
	for i := range out {
		out[i].PeriodStart = start
		start = next(start)
	}
	return out
}

func accumulate(series []models.PeriodSales, period time.Time, sale models.Sale) {
	for i := range series {
		if series[i].PeriodStart.Equal(period) {
			series[i].Total += sale.Total
			series[i].Profit += sale.Profit
			return
		}
	}
}

// startOfWeek truncates t to Monday 00:00 in t's location.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
