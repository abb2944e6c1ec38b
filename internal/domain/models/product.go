package models

import "time"

// LowStockThreshold is the on-hand quantity at or below which a product is flagged.
const LowStockThreshold = 5

// Product is a catalogue item that sales are recorded against.
type Product struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Code      string    `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Category  string    `json:"category"`
	Price     float64   `gorm:"not null" json:"price"`
	Quantity  int       `gorm:"not null;default:0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name used by gorm.
func (Product) TableName() string {
	return "products"
}

// IsLowStock reports whether the on-hand quantity is at or below the threshold.
func (p Product) IsLowStock() bool {
	return p.Quantity <= LowStockThreshold
}
