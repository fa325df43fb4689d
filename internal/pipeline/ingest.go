package pipeline

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"car-sales-pipeline/internal/model"
	"car-sales-pipeline/pkg/log"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Loader reads a raw tabular file into memory. CSV files are read with lazy
// quotes and ragged rows; .xlsx/.xlsm workbooks are read from the configured
// sheet, or the first one.
type Loader struct {
	sheet string
	log   log.Logger
}

// NewLoader creates a loader. sheet may be empty.
func NewLoader(sheet string, logger log.Logger) *Loader {
	return &Loader{sheet: sheet, log: logger}
}

// Load reads the file at path. A missing file is ErrInputNotFound; a file
// that cannot be parsed or has no header row is ErrUnreadableInput.
func (l *Loader) Load(ctx context.Context, path string) (*model.RawTable, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, newStageError(StageLoad, path, ErrInputNotFound, nil)
		}
		return nil, newStageError(StageLoad, path, ErrUnreadableInput, err)
	}

	var (
		header []string
		rows   [][]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		header, rows, err = l.readWorkbook(ctx, path)
	default:
		header, rows, err = l.readCSV(ctx, path)
	}
	if err != nil {
		return nil, newStageError(StageLoad, path, ErrUnreadableInput, err)
	}

	table := model.NewRawTable(path, header, rows)
	l.log.WithFields(log.Fields{
		"path":    path,
		"columns": len(table.Header),
		"rows":    table.Len(),
	}).Info("raw data loaded")
	return table, nil
}

func (l *Loader) readCSV(ctx context.Context, path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open csv")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errors.New("file is empty")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "read csv header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "read csv row %d", len(rows)+1)
		}
		if isBlankRow(record) {
			continue
		}
		rows = append(rows, record)
	}
	return header, rows, nil
}

func (l *Loader) readWorkbook(ctx context.Context, path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheet := l.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read sheet %q", sheet)
	}
	if len(all) == 0 {
		return nil, nil, errors.Errorf("sheet %q is empty", sheet)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var rows [][]string
	for _, r := range all[1:] {
		if isBlankRow(r) {
			continue
		}
		rows = append(rows, r)
	}
	l.log.WithField("sheet", sheet).Debug("workbook sheet selected")
	return all[0], rows, nil
}

// isBlankRow reports whether every cell of a row is empty. Blank lines are
// skipped by encoding/csv already; this catches rows of bare delimiters.
func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
