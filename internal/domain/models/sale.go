package models

import "time"

// DefaultProfitRate is applied to a sale's total when no profit is supplied.
const DefaultProfitRate = 0.2

// Sale is a single recorded sales transaction.
type Sale struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	Product   *Product  `gorm:"constraint:OnDelete:CASCADE" json:"product,omitempty"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	Total     float64   `gorm:"not null" json:"total"`
	Profit    float64   `gorm:"not null" json:"profit"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name used by gorm.
func (Sale) TableName() string {
	return "sales"
}

// SalesTotals holds the aggregate values over a set of sales.
type SalesTotals struct {
	Total   float64 `json:"total"`
	Profit  float64 `json:"profit"`
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// ProductSales pairs a product with its summed sales.
type ProductSales struct {
	Product  Product `json:"product"`
	Quantity int64   `json:"quantity"`
	Total    float64 `json:"total"`
	Profit   float64 `json:"profit"`
}

// UserSales pairs a user with the sales they recorded.
type UserSales struct {
	User   User    `json:"user"`
	Total  float64 `json:"total"`
	Profit float64 `json:"profit"`
}

// PeriodSales is one bucket of a sales time series.
type PeriodSales struct {
	PeriodStart time.Time `json:"period_start"`
	Total       float64   `json:"total"`
	Profit      float64   `json:"profit"`
}
