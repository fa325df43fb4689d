package pipeline

import (
	"encoding/csv"

	"car-sales-pipeline/internal/config"
	"car-sales-pipeline/internal/model"
	"car-sales-pipeline/pkg/log"
	"car-sales-pipeline/pkg/utils"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Column headers of the exported files.
var (
	KPIHeader           = []string{"region", "total_sales", "total_revenue", "avg_revenue_per_region"}
	RegionSummaryHeader = []string{"region", "total_sales", "total_revenue", "avg_revenue"}
	ModelSummaryHeader  = []string{"model", "total_sales", "total_revenue"}
	MonthSummaryHeader  = []string{"month_year", "total_sales"}
)

// Workbook sheet names, one per aggregate.
const (
	RegionSheet = "sales_by_region"
	ModelSheet  = "sales_by_model"
	MonthSheet  = "monthly_sales_trends"
)

// Exporter writes tables to CSV files and, optionally, an xlsx workbook.
// Every file is replaced wholesale.
type Exporter struct {
	om  *utils.OutputManager
	log log.Logger
}

// NewExporter creates an exporter
func NewExporter(logger log.Logger) *Exporter {
	return &Exporter{om: utils.NewOutputManager(), log: logger}
}

// WriteCSV writes a header row followed by rows to path, creating parent
// directories.
func (e *Exporter) WriteCSV(path string, header []string, rows [][]string) error {
	file, err := e.om.Create(path)
	if err != nil {
		return newStageError(StageExport, path, ErrUnwritableOutput, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return newStageError(StageExport, path, ErrUnwritableOutput, errors.Wrap(err, "write header"))
	}
	if err := writer.WriteAll(rows); err != nil {
		return newStageError(StageExport, path, ErrUnwritableOutput, errors.Wrap(err, "write rows"))
	}
	if err := file.Close(); err != nil {
		return newStageError(StageExport, path, ErrUnwritableOutput, errors.Wrap(err, "close file"))
	}

	logWritten(e.log, e.om, path, "csv written", log.Fields{"rows": len(rows)})
	return nil
}

// logWritten logs a finished output file with its type and size.
func logWritten(logger log.Logger, om *utils.OutputManager, path, msg string, fields log.Fields) {
	if fields == nil {
		fields = log.Fields{}
	}
	fields["path"] = path
	if a, err := om.Describe(path); err == nil {
		fields["type"] = a.Kind
		fields["bytes"] = a.Bytes
	}
	logger.WithFields(fields).Info(msg)
}

// WriteCleaned writes the cleaned table: core columns, then extras.
func (e *Exporter) WriteCleaned(path string, table *model.SalesTable) error {
	return e.WriteCSV(path, table.Columns(), CleanedRows(table))
}

// WriteKPIs writes the region KPI table.
func (e *Exporter) WriteKPIs(path string, kpis []model.RegionSummary) error {
	return e.WriteCSV(path, KPIHeader, RegionRows(kpis))
}

// WriteAggregates writes the three aggregate files under the export directory.
func (e *Exporter) WriteAggregates(cfg *config.Config, s model.Summaries) error {
	if err := e.WriteCSV(cfg.SalesByRegionPath(), RegionSummaryHeader, RegionRows(s.ByRegion)); err != nil {
		return err
	}
	if err := e.WriteCSV(cfg.SalesByModelPath(), ModelSummaryHeader, ModelRows(s.ByModel)); err != nil {
		return err
	}
	return e.WriteCSV(cfg.MonthlySalesTrendsPath(), MonthSummaryHeader, MonthRows(s.ByMonth))
}

// WriteWorkbook writes the aggregates into one xlsx file, a sheet each.
// Numbers are stored as numeric cells and NULL as blank cells.
func (e *Exporter) WriteWorkbook(path string, s model.Summaries) error {
	if err := e.om.EnsureParentDir(path); err != nil {
		return newStageError(StageExport, path, ErrUnwritableOutput, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name   string
		header []string
		rows   [][]interface{}
	}{
		{RegionSheet, RegionSummaryHeader, regionCells(s.ByRegion)},
		{ModelSheet, ModelSummaryHeader, modelCells(s.ByModel)},
		{MonthSheet, MonthSummaryHeader, monthCells(s.ByMonth)},
	}

	for _, sh := range sheets {
		if _, err := f.NewSheet(sh.name); err != nil {
			return newStageError(StageExport, path, ErrUnwritableOutput, errors.Wrapf(err, "create sheet %s", sh.name))
		}
		header := make([]interface{}, len(sh.header))
		for i, h := range sh.header {
			header[i] = h
		}
		if err := setRow(f, sh.name, 1, header); err != nil {
			return newStageError(StageExport, path, ErrUnwritableOutput, err)
		}
		for i, row := range sh.rows {
			if err := setRow(f, sh.name, i+2, row); err != nil {
				return newStageError(StageExport, path, ErrUnwritableOutput, err)
			}
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return newStageError(StageExport, path, ErrUnwritableOutput, errors.Wrap(err, "remove default sheet"))
	}
	if idx, err := f.GetSheetIndex(RegionSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return newStageError(StageExport, path, ErrUnwritableOutput, errors.Wrap(err, "save workbook"))
	}

	logWritten(e.log, e.om, path, "workbook written", nil)
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return errors.Wrapf(f.SetSheetRow(sheet, cell, &values), "write %s row %d", sheet, row)
}

// CleanedRows renders the cleaned table as CSV cells.
func CleanedRows(table *model.SalesTable) [][]string {
	rows := make([][]string, 0, table.Len())
	for _, rec := range table.Records {
		row := []string{
			rec.Region,
			rec.Model,
			utils.FormatNullFloat(rec.Sales),
			utils.FormatNullFloat(rec.Revenue),
			rec.Date.Format(model.DateLayout),
		}
		for _, col := range table.ExtraColumns {
			row = append(row, rec.Extra[col])
		}
		rows = append(rows, row)
	}
	return rows
}

// RegionRows renders region summaries; the same shape serves the KPI file.
func RegionRows(in []model.RegionSummary) [][]string {
	rows := make([][]string, 0, len(in))
	for _, r := range in {
		rows = append(rows, []string{
			r.Region,
			utils.FormatFloat(r.TotalSales),
			utils.FormatFloat(r.TotalRevenue),
			utils.FormatNullFloat(r.AvgRevenue),
		})
	}
	return rows
}

// ModelRows renders model summaries.
func ModelRows(in []model.ModelSummary) [][]string {
	rows := make([][]string, 0, len(in))
	for _, m := range in {
		rows = append(rows, []string{
			m.Model,
			utils.FormatFloat(m.TotalSales),
			utils.FormatFloat(m.TotalRevenue),
		})
	}
	return rows
}

// MonthRows renders monthly summaries.
func MonthRows(in []model.MonthlySummary) [][]string {
	rows := make([][]string, 0, len(in))
	for _, m := range in {
		rows = append(rows, []string{m.Label(), utils.FormatFloat(m.TotalSales)})
	}
	return rows
}

func regionCells(in []model.RegionSummary) [][]interface{} {
	rows := make([][]interface{}, 0, len(in))
	for _, r := range in {
		var avg interface{}
		if r.AvgRevenue.Valid {
			avg = r.AvgRevenue.Float64
		}
		rows = append(rows, []interface{}{r.Region, r.TotalSales, r.TotalRevenue, avg})
	}
	return rows
}

func modelCells(in []model.ModelSummary) [][]interface{} {
	rows := make([][]interface{}, 0, len(in))
	for _, m := range in {
		rows = append(rows, []interface{}{m.Model, m.TotalSales, m.TotalRevenue})
	}
	return rows
}

func monthCells(in []model.MonthlySummary) [][]interface{} {
	rows := make([][]interface{}, 0, len(in))
	for _, m := range in {
		rows = append(rows, []interface{}{m.Label(), m.TotalSales})
	}
	return rows
}
