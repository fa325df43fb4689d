package pipeline

import (
	"database/sql"
	"testing"
	"time"

	"car-sales-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sale(region, mdl string, sales, revenue float64, date time.Time) model.SalesRecord {
	return model.SalesRecord{
		Region:  region,
		Model:   mdl,
		Sales:   model.Valid(sales),
		Revenue: model.Valid(revenue),
		Date:    date,
	}
}

func TestAggregate_Example(t *testing.T) {
	table := &model.SalesTable{Records: []model.SalesRecord{
		sale("West", "X", 10, 200, day(2024, 1, 5)),
		sale("West", "Y", 5, 100, day(2024, 1, 20)),
	}}

	s := Aggregate(table)

	assert.Equal(t, []model.RegionSummary{
		{Region: "West", TotalSales: 15, TotalRevenue: 300, AvgRevenue: sql.NullFloat64{Float64: 150, Valid: true}},
	}, s.ByRegion)
	assert.Equal(t, []model.ModelSummary{
		{Model: "X", TotalSales: 10, TotalRevenue: 200},
		{Model: "Y", TotalSales: 5, TotalRevenue: 100},
	}, s.ByModel)
	require.Len(t, s.ByMonth, 1)
	assert.Equal(t, "2024-01", s.ByMonth[0].Label())
	assert.Equal(t, 15.0, s.ByMonth[0].TotalSales)
}

func TestSummarizeByRegion_OrderAndTies(t *testing.T) {
	table := &model.SalesTable{Records: []model.SalesRecord{
		sale("North", "X", 1, 1, day(2024, 1, 1)),
		sale("East", "X", 5, 1, day(2024, 1, 1)),
		sale("West", "X", 5, 1, day(2024, 1, 1)),
		sale("South", "X", 9, 1, day(2024, 1, 1)),
	}}

	got := SummarizeByRegion(table)

	regions := make([]string, len(got))
	for i, r := range got {
		regions[i] = r.Region
	}
	assert.Equal(t, []string{"South", "East", "West", "North"}, regions)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].TotalSales, got[i].TotalSales)
	}
}

func TestSummarizeByRegion_NullRevenue(t *testing.T) {
	table := &model.SalesTable{Records: []model.SalesRecord{
		{Region: "West", Model: "X", Sales: model.Valid(2), Revenue: model.Valid(100), Date: day(2024, 1, 1)},
		{Region: "West", Model: "X", Sales: model.Null, Revenue: model.Null, Date: day(2024, 1, 2)},
		{Region: "East", Model: "X", Sales: model.Valid(1), Revenue: model.Null, Date: day(2024, 1, 3)},
	}}

	got := SummarizeByRegion(table)
	require.Len(t, got, 2)

	assert.Equal(t, "West", got[0].Region)
	assert.Equal(t, 2.0, got[0].TotalSales)
	assert.Equal(t, 100.0, got[0].TotalRevenue)
	// NULL is left out of the mean's denominator
	assert.Equal(t, sql.NullFloat64{Float64: 100, Valid: true}, got[0].AvgRevenue)

	assert.Equal(t, "East", got[1].Region)
	assert.Equal(t, 0.0, got[1].TotalRevenue)
	assert.False(t, got[1].AvgRevenue.Valid)
}

func TestSummarizeByMonth_Buckets(t *testing.T) {
	table := &model.SalesTable{Records: []model.SalesRecord{
		sale("West", "X", 1, 0, day(2024, 3, 31)),
		sale("West", "X", 2, 0, day(2023, 12, 1)),
		sale("West", "X", 4, 0, day(2024, 3, 1)),
		sale("West", "X", 8, 0, day(2024, 1, 15)),
	}}

	got := SummarizeByMonth(table)
	require.Len(t, got, 3)
	assert.Equal(t, "2023-12", got[0].Label())
	assert.Equal(t, 2.0, got[0].TotalSales)
	assert.Equal(t, "2024-01", got[1].Label())
	assert.Equal(t, 8.0, got[1].TotalSales)
	assert.Equal(t, "2024-03", got[2].Label())
	assert.Equal(t, 5.0, got[2].TotalSales)
	assert.Equal(t, day(2024, 3, 1), got[2].Month)
}

func TestSummarizeByModel_SortedByName(t *testing.T) {
	table := &model.SalesTable{Records: []model.SalesRecord{
		sale("West", "Sedan", 1, 10, day(2024, 1, 1)),
		sale("West", "Coupe", 2, 20, day(2024, 1, 1)),
		sale("East", "Sedan", 3, 30, day(2024, 1, 1)),
	}}

	assert.Equal(t, []model.ModelSummary{
		{Model: "Coupe", TotalSales: 2, TotalRevenue: 20},
		{Model: "Sedan", TotalSales: 4, TotalRevenue: 40},
	}, SummarizeByModel(table))
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(&model.SalesTable{})
	assert.Empty(t, s.ByRegion)
	assert.Empty(t, s.ByModel)
	assert.Empty(t, s.ByMonth)

	s = Aggregate(nil)
	assert.Empty(t, s.ByRegion)
}

func TestAggregate_RegionTotalsMatchCleanedSales(t *testing.T) {
	table := &model.SalesTable{Records: []model.SalesRecord{
		sale("West", "X", 1.5, 1, day(2024, 1, 1)),
		sale("East", "Y", 2.25, 1, day(2024, 2, 1)),
		sale("West", "Z", 3, 1, day(2024, 3, 1)),
	}}

	var want float64
	for _, r := range table.Records {
		want += r.Sales.Float64
	}

	var got float64
	for _, r := range SummarizeByRegion(table) {
		got += r.TotalSales
	}
	assert.InDelta(t, want, got, 1e-9)
}

func TestSummarizeByRegion_CompensatedSums(t *testing.T) {
	table := &model.SalesTable{Records: []model.SalesRecord{
		sale("West", "X", 0.1, 0.1, day(2024, 1, 1)),
		sale("West", "X", 0.2, 0.2, day(2024, 1, 2)),
		sale("West", "X", 0.3, 0.3, day(2024, 1, 3)),
		sale("East", "X", 0.6, 0.6, day(2024, 1, 4)),
	}}

	got := SummarizeByRegion(table)
	require.Len(t, got, 2)
	assert.Equal(t, "West", got[0].Region)
	assert.Equal(t, 0.6, got[0].TotalSales)
	assert.Equal(t, 0.6, got[0].TotalRevenue)
	assert.InDelta(t, 0.2, got[0].AvgRevenue.Float64, 1e-15)
	assert.Equal(t, "East", got[1].Region)
}

func TestCompensatedSum(t *testing.T) {
	var c compensatedSum
	for _, x := range []float64{1e16, 1, -1e16} {
		c.add(x)
	}
	assert.Equal(t, 1.0, c.value())
}
