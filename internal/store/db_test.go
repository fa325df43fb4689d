package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"car-sales-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleTable() *model.SalesTable {
	return &model.SalesTable{
		ExtraColumns: []string{"dealer"},
		Records: []model.SalesRecord{
			{Region: "West", Model: "X", Sales: model.Valid(10), Revenue: model.Valid(200), Date: date(2024, 1, 5), Extra: map[string]string{"dealer": "A"}},
			{Region: "East", Model: "X", Sales: model.Valid(15), Revenue: model.Valid(100), Date: date(2024, 1, 9), Extra: map[string]string{"dealer": ""}},
			{Region: "West", Model: "Y", Sales: model.Valid(5), Revenue: model.Valid(100), Date: date(2024, 1, 20), Extra: map[string]string{"dealer": "B"}},
			{Region: "North", Model: "Z", Sales: model.Valid(3), Revenue: model.Null, Date: date(2024, 2, 1)},
		},
	}
}

func TestSQLiteStore_ReplaceSalesAndRegionKPIs(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "sales.db"), "sales_data")

	require.NoError(t, s.ReplaceSales(ctx, sampleTable()))

	n, err := s.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	kpis, err := s.RegionKPIs(ctx)
	require.NoError(t, err)
	require.Len(t, kpis, 3)

	// West and East tie on 15; West was inserted first.
	assert.Equal(t, "West", kpis[0].Region)
	assert.Equal(t, 15.0, kpis[0].TotalSales)
	assert.Equal(t, 300.0, kpis[0].TotalRevenue)
	assert.Equal(t, sql.NullFloat64{Float64: 150, Valid: true}, kpis[0].AvgRevenue)

	assert.Equal(t, "East", kpis[1].Region)
	assert.Equal(t, 15.0, kpis[1].TotalSales)

	assert.Equal(t, "North", kpis[2].Region)
	assert.Equal(t, 0.0, kpis[2].TotalRevenue)
	assert.False(t, kpis[2].AvgRevenue.Valid)
}

func TestSQLiteStore_TiesKeepInsertionOrderWithRowidColumn(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "sales.db"), "sales_data")

	// an input column named rowid shadows SQLite's implicit rowid
	require.NoError(t, s.ReplaceSales(ctx, &model.SalesTable{
		ExtraColumns: []string{"rowid", "oid"},
		Records: []model.SalesRecord{
			{Region: "B", Model: "X", Sales: model.Valid(5), Revenue: model.Valid(1), Date: date(2024, 1, 5), Extra: map[string]string{"rowid": "zz", "oid": "9"}},
			{Region: "A", Model: "X", Sales: model.Valid(5), Revenue: model.Valid(1), Date: date(2024, 1, 5), Extra: map[string]string{"rowid": "aa", "oid": "1"}},
		},
	}))

	kpis, err := s.RegionKPIs(ctx)
	require.NoError(t, err)
	require.Len(t, kpis, 2)
	assert.Equal(t, "B", kpis[0].Region)
	assert.Equal(t, "A", kpis[1].Region)
}

func TestSQLiteStore_ReservedColumnRejected(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "sales.db"), "sales_data")

	err := s.ReplaceSales(context.Background(), &model.SalesTable{ExtraColumns: []string{model.ColSeq}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestSQLiteStore_ReplaceSalesOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "sales.db"), "sales_data")

	require.NoError(t, s.ReplaceSales(ctx, sampleTable()))
	require.NoError(t, s.ReplaceSales(ctx, &model.SalesTable{
		Records: []model.SalesRecord{
			{Region: "South", Model: "Q", Sales: model.Valid(1), Revenue: model.Valid(2), Date: date(2024, 3, 1)},
		},
	}))

	n, err := s.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	kpis, err := s.RegionKPIs(ctx)
	require.NoError(t, err)
	require.Len(t, kpis, 1)
	assert.Equal(t, "South", kpis[0].Region)
}

func TestSQLiteStore_StoresDatesAndExtras(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sales.db")
	s := NewSQLiteStore(path, "sales_data")
	require.NoError(t, s.ReplaceSales(ctx, sampleTable()))

	db, err := sql.Open(driverName, path)
	require.NoError(t, err)
	defer db.Close()

	var d string
	var dealer sql.NullString
	require.NoError(t, db.QueryRow(`SELECT "date", "dealer" FROM "sales_data" WHERE rowid = 1`).Scan(&d, &dealer))
	assert.Equal(t, "2024-01-05", d)
	assert.Equal(t, sql.NullString{String: "A", Valid: true}, dealer)

	require.NoError(t, db.QueryRow(`SELECT "dealer" FROM "sales_data" WHERE rowid = 2`).Scan(&dealer))
	assert.False(t, dealer.Valid)
}

func TestSQLiteStore_BatchesLargeInserts(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "sales.db"), "sales_data")

	table := &model.SalesTable{}
	for i := 0; i < 1000; i++ {
		table.Records = append(table.Records, model.SalesRecord{
			Region:  fmt.Sprintf("R%d", i%7),
			Model:   "M",
			Sales:   model.Valid(1),
			Revenue: model.Valid(2),
			Date:    date(2024, 1, 1),
		})
	}
	require.NoError(t, s.ReplaceSales(ctx, table))

	n, err := s.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)

	kpis, err := s.RegionKPIs(ctx)
	require.NoError(t, err)
	var total float64
	for _, k := range kpis {
		total += k.TotalSales
	}
	assert.Equal(t, 1000.0, total)
}

func TestSQLiteStore_EmptyTable(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "sales.db"), "sales_data")

	require.NoError(t, s.ReplaceSales(ctx, &model.SalesTable{}))

	kpis, err := s.RegionKPIs(ctx)
	require.NoError(t, err)
	assert.Empty(t, kpis)
}

func TestSQLiteStore_RegionKPIsMissingDatabase(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "absent.db"), "sales_data")

	_, err := s.RegionKPIs(context.Background())
	require.Error(t, err)
}

func TestCreateTableSQL(t *testing.T) {
	got := createTableSQL("sales_data", []string{"dealer", `odd"name`})
	assert.Equal(t,
		`CREATE TABLE "sales_data" ("_seq" INTEGER NOT NULL, "region" TEXT, "model" TEXT, "sales" REAL, "revenue" REAL, "date" TEXT, "dealer" TEXT, "odd""name" TEXT)`,
		got)
}
