package model

import (
	"database/sql"
	"time"
)

// RegionSummary is one row of the per-region aggregate and of the KPI file.
type RegionSummary struct {
	Region       string          `json:"region"`
	TotalSales   float64         `json:"total_sales"`
	TotalRevenue float64         `json:"total_revenue"`
	AvgRevenue   sql.NullFloat64 `json:"avg_revenue"`
}

// ModelSummary is one row of the per-model aggregate.
type ModelSummary struct {
	Model        string  `json:"model"`
	TotalSales   float64 `json:"total_sales"`
	TotalRevenue float64 `json:"total_revenue"`
}

// MonthlySummary is one month bucket. Month is the first day of the month, UTC.
type MonthlySummary struct {
	Month      time.Time `json:"month"`
	TotalSales float64   `json:"total_sales"`
}

// MonthLayout formats a month bucket, e.g. "2024-01".
const MonthLayout = "2006-01"

// Label returns the bucket as "YYYY-MM"
func (m MonthlySummary) Label() string {
	return m.Month.Format(MonthLayout)
}

// Summaries groups the three aggregates derived from one cleaned table.
type Summaries struct {
	ByRegion []RegionSummary  `json:"by_region"`
	ByModel  []ModelSummary   `json:"by_model"`
	ByMonth  []MonthlySummary `json:"by_month"`
}
