package pipeline

import (
	"database/sql"
	"math"
	"sort"
	"time"

	"car-sales-pipeline/internal/model"
)

// compensatedSum adds floats with Kahan-Babuska-Neumaier compensation, the
// same summation SQLite's SUM and AVG use, so in-memory totals match the
// store's.
type compensatedSum struct {
	sum float64
	err float64
}

func (c *compensatedSum) add(x float64) {
	t := c.sum + x
	if math.Abs(c.sum) > math.Abs(x) {
		c.err += (c.sum - t) + x
	} else {
		c.err += (x - t) + c.sum
	}
	c.sum = t
}

func (c *compensatedSum) value() float64 {
	if math.IsNaN(c.err) {
		return c.sum
	}
	return c.sum + c.err
}

// accumulator collects the running metrics of one group. NULL values add
// nothing to the sums and are left out of the mean's denominator.
type accumulator struct {
	key          string
	sales        compensatedSum
	revenue      compensatedSum
	revenueCount int
}

func (a *accumulator) add(rec model.SalesRecord) {
	if rec.Sales.Valid {
		a.sales.add(rec.Sales.Float64)
	}
	if rec.Revenue.Valid {
		a.revenue.add(rec.Revenue.Float64)
		a.revenueCount++
	}
}

func (a *accumulator) avgRevenue() sql.NullFloat64 {
	if a.revenueCount == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: a.revenue.value() / float64(a.revenueCount), Valid: true}
}

// groupBy accumulates records per key, returning groups in order of first
// appearance.
func groupBy(table *model.SalesTable, key func(model.SalesRecord) string) []*accumulator {
	if table.Len() == 0 {
		return nil
	}

	index := make(map[string]*accumulator)
	var groups []*accumulator
	for _, rec := range table.Records {
		k := key(rec)
		acc, ok := index[k]
		if !ok {
			acc = &accumulator{key: k}
			index[k] = acc
			groups = append(groups, acc)
		}
		acc.add(rec)
	}
	return groups
}

// Aggregate computes all three summaries of a cleaned table.
func Aggregate(table *model.SalesTable) model.Summaries {
	return model.Summaries{
		ByRegion: SummarizeByRegion(table),
		ByModel:  SummarizeByModel(table),
		ByMonth:  SummarizeByMonth(table),
	}
}

// SummarizeByRegion totals sales and revenue and averages revenue per
// region. Regions are ordered by total sales descending; ties keep the
// order in which regions first appear.
func SummarizeByRegion(table *model.SalesTable) []model.RegionSummary {
	groups := groupBy(table, func(r model.SalesRecord) string { return r.Region })

	out := make([]model.RegionSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.RegionSummary{
			Region:       g.key,
			TotalSales:   g.sales.value(),
			TotalRevenue: g.revenue.value(),
			AvgRevenue:   g.avgRevenue(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalSales > out[j].TotalSales
	})
	return out
}

// SummarizeByModel totals sales and revenue per model, ordered by model name.
func SummarizeByModel(table *model.SalesTable) []model.ModelSummary {
	groups := groupBy(table, func(r model.SalesRecord) string { return r.Model })

	out := make([]model.ModelSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.ModelSummary{
			Model:        g.key,
			TotalSales:   g.sales.value(),
			TotalRevenue: g.revenue.value(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Model < out[j].Model
	})
	return out
}

// SummarizeByMonth totals sales per calendar month, oldest first.
func SummarizeByMonth(table *model.SalesTable) []model.MonthlySummary {
	groups := groupBy(table, func(r model.SalesRecord) string {
		return MonthStart(r.Date).Format(model.MonthLayout)
	})

	out := make([]model.MonthlySummary, 0, len(groups))
	for _, g := range groups {
		month, _ := time.Parse(model.MonthLayout, g.key)
		out = append(out, model.MonthlySummary{
			Month:      month,
			TotalSales: g.sales.value(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})
	return out
}

// MonthStart truncates t to the first day of its month, UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
