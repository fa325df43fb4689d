package model

import (
	"database/sql"
	"time"
)

// Core column names of a cleaned sales table, in output order.
const (
	ColRegion  = "region"
	ColModel   = "model"
	ColSales   = "sales"
	ColRevenue = "revenue"
	ColDate    = "date"
)

// ColSeq is the store's insertion ordinal column. Input headers may not use
// it.
const ColSeq = "_seq"

// CoreColumns lists the typed columns every SalesRecord carries.
var CoreColumns = []string{ColRegion, ColModel, ColSales, ColRevenue, ColDate}

// DateLayout is how calendar dates are written to files and the store.
const DateLayout = "2006-01-02"

// SalesRecord is one cleaned sales row.
// Sales and Revenue are NULL only when the raw value could not be coerced.
type SalesRecord struct {
	Region  string            `json:"region"`
	Model   string            `json:"model"`
	Sales   sql.NullFloat64   `json:"sales"`
	Revenue sql.NullFloat64   `json:"revenue"`
	Date    time.Time         `json:"date"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// SalesTable is the cleaned table. ExtraColumns keeps the non-core columns
// in header order so they round-trip to files and the store.
type SalesTable struct {
	Records      []SalesRecord `json:"records"`
	ExtraColumns []string      `json:"extra_columns,omitempty"`
}

// Len returns the number of records
func (t *SalesTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Columns returns the full column list: core columns then extras.
func (t *SalesTable) Columns() []string {
	cols := make([]string, 0, len(CoreColumns)+len(t.ExtraColumns))
	cols = append(cols, CoreColumns...)
	return append(cols, t.ExtraColumns...)
}

// Valid wraps a float as a non-NULL value.
func Valid(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: true}
}

// Null is the missing-numeric marker.
var Null = sql.NullFloat64{}
