package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jopa/salestracker/internal/domain/models"
)

const (
	dashboardRecentSales = 5
	dashboardTrendDays   = 7
)

// DashboardStore is the read side the admin dashboard needs.
type DashboardStore interface {
	SalesTotals(ctx context.Context, window *models.Window) (models.SalesTotals, error)
	CountProducts(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountReports(ctx context.Context) (int64, error)
	RecentSales(ctx context.Context, limit int) ([]models.Sale, error)
	SalesBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error)
}

// DayTotal is one point of the dashboard sales trend.
type DayTotal struct {
	Date   string  `json:"date"`
	Total  float64 `json:"total"`
	Profit float64 `json:"profit"`
}

// Dashboard is the admin overview payload.
type Dashboard struct {
	TotalSales   float64       `json:"totalSales"`
	TotalProfit  float64       `json:"totalProfit"`
	SalesCount   int64         `json:"salesCount"`
	ProductCount int64         `json:"productCount"`
	UserCount    int64         `json:"userCount"`
	ReportCount  int64         `json:"reportCount"`
	RecentSales  []models.Sale `json:"recentSales"`
	SalesTrend   []DayTotal    `json:"salesTrend"`
}

// DashboardHandler serves the admin overview.
type DashboardHandler struct {
	store  DashboardStore
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewDashboardHandler constructs the dashboard HTTP adapter.
func NewDashboardHandler(store DashboardStore, loc *time.Location, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardHandler{store: store, loc: loc, now: time.Now, logger: logger}
}

// Get returns all-time totals, row counts, the latest sales and a daily trend
// over the last seven days including today.
func (h *DashboardHandler) Get(c *gin.Context) {
	dashboard, err := h.build(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *DashboardHandler) build(ctx context.Context) (*Dashboard, error) {
	var (
		d      Dashboard
		totals models.SalesTotals
		trend  []models.Sale
	)
	today := models.DayWindow(h.now(), h.loc)
	from := today.Start.AddDate(0, 0, -(dashboardTrendDays - 1))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { totals, err = h.store.SalesTotals(ctx, nil); return })
	g.Go(func() (err error) { d.ProductCount, err = h.store.CountProducts(ctx); return })
	g.Go(func() (err error) { d.UserCount, err = h.store.CountUsers(ctx); return })
	g.Go(func() (err error) { d.ReportCount, err = h.store.CountReports(ctx); return })
	g.Go(func() (err error) { d.RecentSales, err = h.store.RecentSales(ctx, dashboardRecentSales); return })
	g.Go(func() (err error) { trend, err = h.store.SalesBetween(ctx, from, today.End); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.TotalSales = totals.Total
	d.TotalProfit = totals.Profit
	d.SalesCount = totals.Count
	if d.RecentSales == nil {
		d.RecentSales = []models.Sale{}
	}

	d.SalesTrend = make([]DayTotal, dashboardTrendDays)
	for i := range d.SalesTrend {
		d.SalesTrend[i].Date = from.AddDate(0, 0, i).Format("2006-01-02")
	}
	for _, sale := range trend {
		day := models.DayWindow(sale.CreatedAt, h.loc).Start
		idx := int(day.Sub(from).Hours()+12) / 24
		if idx < 0 || idx >= dashboardTrendDays {
			continue
		}
		d.SalesTrend[idx].Total += sale.Total
		d.SalesTrend[idx].Profit += sale.Profit
	}
	return &d, nil
}
