package pipeline

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"car-sales-pipeline/internal/config"
	"car-sales-pipeline/internal/model"
	"car-sales-pipeline/pkg/log"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func exampleSummaries() model.Summaries {
	return Aggregate(&model.SalesTable{Records: []model.SalesRecord{
		sale("West", "X", 10, 200, day(2024, 1, 5)),
		sale("West", "Y", 5, 100, day(2024, 1, 20)),
		{Region: "East", Model: "Y", Sales: model.Valid(2.5), Revenue: model.Null, Date: day(2024, 2, 3)},
	}})
}

func TestExporter_WriteCleaned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cleaned.csv")
	table := &model.SalesTable{
		ExtraColumns: []string{"dealer"},
		Records: []model.SalesRecord{
			{Region: "West", Model: "X", Sales: model.Valid(10), Revenue: model.Valid(150.5), Date: day(2024, 1, 5), Extra: map[string]string{"dealer": "Acme, Inc"}},
			{Region: "East", Model: "Y", Sales: model.Null, Revenue: model.Valid(3), Date: day(2024, 2, 1)},
		},
	}

	require.NoError(t, NewExporter(log.Discard()).WriteCleaned(path, table))
	assert.Equal(t,
		"region,model,sales,revenue,date,dealer\n"+
			"West,X,10,150.5,2024-01-05,\"Acme, Inc\"\n"+
			"East,Y,,3,2024-02-01,\n",
		readFile(t, path))
}

func TestExporter_LogsWrittenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi.csv")
	nullLogger, hook := test.NewNullLogger()

	require.NoError(t, NewExporter(log.FromLogrus(nullLogger)).WriteKPIs(path, nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "csv written", entry.Message)
	assert.Equal(t, path, entry.Data["path"])
	assert.Equal(t, "csv", entry.Data["type"])
	assert.Equal(t, int64(len(readFile(t, path))), entry.Data["bytes"])
	assert.Equal(t, 0, entry.Data["rows"])
}

func TestExporter_WriteKPIs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi.csv")
	kpis := []model.RegionSummary{
		{Region: "West", TotalSales: 15, TotalRevenue: 300, AvgRevenue: sql.NullFloat64{Float64: 150, Valid: true}},
		{Region: "East", TotalSales: 2.5, TotalRevenue: 0},
	}

	require.NoError(t, NewExporter(log.Discard()).WriteKPIs(path, kpis))
	assert.Equal(t,
		"region,total_sales,total_revenue,avg_revenue_per_region\n"+
			"West,15,300,150\n"+
			"East,2.5,0,\n",
		readFile(t, path))
}

func TestExporter_WriteAggregates(t *testing.T) {
	cfg := config.Default().UnderDir(t.TempDir())

	require.NoError(t, NewExporter(log.Discard()).WriteAggregates(cfg, exampleSummaries()))

	assert.Equal(t,
		"region,total_sales,total_revenue,avg_revenue\n"+
			"West,15,300,150\n"+
			"East,2.5,0,\n",
		readFile(t, cfg.SalesByRegionPath()))
	assert.Equal(t,
		"model,total_sales,total_revenue\n"+
			"X,10,200\n"+
			"Y,7.5,100\n",
		readFile(t, cfg.SalesByModelPath()))
	assert.Equal(t,
		"month_year,total_sales\n"+
			"2024-01,15\n"+
			"2024-02,2.5\n",
		readFile(t, cfg.MonthlySalesTrendsPath()))
}

func TestExporter_RerunIsByteIdentical(t *testing.T) {
	cfg := config.Default().UnderDir(t.TempDir())
	e := NewExporter(log.Discard())

	require.NoError(t, e.WriteAggregates(cfg, exampleSummaries()))
	first := []string{
		readFile(t, cfg.SalesByRegionPath()),
		readFile(t, cfg.SalesByModelPath()),
		readFile(t, cfg.MonthlySalesTrendsPath()),
	}

	require.NoError(t, e.WriteAggregates(cfg, exampleSummaries()))
	second := []string{
		readFile(t, cfg.SalesByRegionPath()),
		readFile(t, cfg.SalesByModelPath()),
		readFile(t, cfg.MonthlySalesTrendsPath()),
	}
	assert.Equal(t, first, second)
}

func TestExporter_UnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	path := filepath.Join(blocker, "kpi.csv")
	err := NewExporter(log.Discard()).WriteKPIs(path, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnwritableOutput))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, path, se.Path)
}

func TestExporter_WriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book", "aggregates.xlsx")

	require.NoError(t, NewExporter(log.Discard()).WriteWorkbook(path, exampleSummaries()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{RegionSheet, ModelSheet, MonthSheet}, f.GetSheetList())

	rows, err := f.GetRows(RegionSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"region", "total_sales", "total_revenue", "avg_revenue"},
		{"West", "15", "300", "150"},
		{"East", "2.5", "0"},
	}, rows)

	rows, err = f.GetRows(MonthSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"month_year", "total_sales"},
		{"2024-01", "15"},
		{"2024-02", "2.5"},
	}, rows)
}
