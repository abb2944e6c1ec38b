package models

// MetricsSnapshot is the point-in-time KPI set computed on each pipeline run.
// It is never persisted on its own.
type MetricsSnapshot struct {
	TotalSales          float64       `json:"total_sales" bson:"total_sales"`
	TotalProfit         float64       `json:"total_profit" bson:"total_profit"`
	AverageSaleValue    float64       `json:"average_sale_value" bson:"average_sale_value"`
	TopProduct          *ProductSales `json:"top_product,omitempty" bson:"top_product,omitempty"`
	TopUsers            []UserSales   `json:"top_users" bson:"top_users"`
	LowStockProducts    []Product     `json:"low_stock_products" bson:"low_stock_products"`
	Today               Window        `json:"today" bson:"today"`
	TodayTotals         SalesTotals   `json:"today_totals" bson:"today_totals"`
	YesterdayTotals     SalesTotals   `json:"yesterday_totals" bson:"yesterday_totals"`
	DayOverDayGrowthPct float64       `json:"day_over_day_growth_pct" bson:"day_over_day_growth_pct"`
	RecentSales         []Sale        `json:"recent_sales" bson:"recent_sales"`
	WeeklySales         []PeriodSales `json:"weekly_sales" bson:"weekly_sales"`
	MonthlySales        []PeriodSales `json:"monthly_sales" bson:"monthly_sales"`
}

// TopProductName returns the top product's name or "N/A".
func (s MetricsSnapshot) TopProductName() string {
	if s.TopProduct == nil || s.TopProduct.Product.Name == "" {
		return "N/A"
	}
	return s.TopProduct.Product.Name
}

// TopSellerName returns the best performing user's name or "N/A".
func (s MetricsSnapshot) TopSellerName() string {
	if len(s.TopUsers) == 0 || s.TopUsers[0].User.Name == "" {
		return "N/A"
	}
	return s.TopUsers[0].User.Name
}

// ReportDocument is the typed payload handed to the renderer.
type ReportDocument struct {
	Report   Report          `json:"report"`
	Snapshot MetricsSnapshot `json:"snapshot"`
}
