package models

import (
	"fmt"
	"strings"
	"time"
)

// ReportType enumerates the supported report windows.
type ReportType string

const (
	ReportDaily  ReportType = "DAILY"
	ReportWeekly ReportType = "WEEKLY"
	ReportCustom ReportType = "CUSTOM"
)

// ParseReportType validates a report type name.
func ParseReportType(value string) (ReportType, error) {
	switch ReportType(strings.ToUpper(strings.TrimSpace(value))) {
	case ReportDaily:
		return ReportDaily, nil
	case ReportWeekly:
		return ReportWeekly, nil
	case ReportCustom:
		return ReportCustom, nil
	default:
		return "", fmt.Errorf("unknown report type %q", value)
	}
}

// Label returns the human form used in report titles, e.g. "Daily".
func (t ReportType) Label() string {
	s := strings.ToLower(string(t))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Report is a persisted summary of sales over a window.
type Report struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"not null" json:"title"`
	ReportType    ReportType `gorm:"size:16;not null" json:"report_type"`
	TotalSales    float64    `gorm:"not null" json:"total_sales"`
	TotalProfit   float64    `gorm:"not null" json:"total_profit"`
	StartDate     time.Time  `gorm:"not null" json:"start_date"`
	EndDate       time.Time  `gorm:"not null" json:"end_date"`
	GeneratedByID uint       `gorm:"index;not null" json:"generated_by_id"`
	GeneratedBy   *User      `gorm:"foreignKey:GeneratedByID" json:"generated_by,omitempty"`
	Summary       string     `gorm:"type:text" json:"summary"`
	GeneratedAt   time.Time  `gorm:"autoCreateTime" json:"generated_at"`
	Sales         []Sale     `gorm:"many2many:report_sales;" json:"sales,omitempty"`
}

// TableName pins the table name used by gorm.
func (Report) TableName() string {
	return "reports"
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the inclusive window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// DayWindow returns the inclusive [00:00, 23:59:59.999999999] window of the day
// containing t in loc.
func DayWindow(t time.Time, loc *time.Location) Window {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Nanosecond)}
}
