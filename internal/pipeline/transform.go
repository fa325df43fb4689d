package pipeline

import (
	"fmt"
	"strings"
	"time"

	"car-sales-pipeline/internal/config"
	"car-sales-pipeline/internal/model"
	"car-sales-pipeline/pkg/log"
	"car-sales-pipeline/pkg/utils"
)

// DefaultDateLayouts are tried in order when no layouts are configured.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"1/2/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"20060102",
}

// Cleaner turns a raw table into a typed sales table: it normalizes column
// names, drops incomplete rows, parses dates and coerces numbers.
type Cleaner struct {
	critical []string
	numeric  []string
	layouts  []string
	policy   DropPolicy
	log      log.Logger
}

// NewCleaner builds a cleaner from the cleaning settings.
func NewCleaner(cfg config.Cleaning, logger log.Logger) *Cleaner {
	layouts := cfg.DateLayouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}

	policy := CriticalFieldPolicy(cfg.CriticalColumns)
	if cfg.DropUncoercibleNumeric {
		policy = AllOf(policy, NumericNullPolicy(cfg.NumericColumns))
	}

	return &Cleaner{
		critical: cfg.CriticalColumns,
		numeric:  cfg.NumericColumns,
		layouts:  layouts,
		policy:   policy,
		log:      logger,
	}
}

// WithPolicy replaces the row drop policy.
func (c *Cleaner) WithPolicy(p DropPolicy) *Cleaner {
	c.policy = p
	return c
}

// NormalizeHeader trims, unquotes and lower-cases header names. Blank names
// become column_<n>. Duplicate names and the store's reserved ordinal column
// are an error.
func NormalizeHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(utils.CleanHeader(h))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if name == model.ColSeq {
			return nil, fmt.Errorf("column name %q at position %d is reserved", name, i+1)
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate column %q at positions %d and %d", name, prev+1, i+1)
		}
		seen[name] = i
		out[i] = name
	}
	return out, nil
}

// prepare normalizes the header and checks that every critical column is
// present.
func (c *Cleaner) prepare(raw *model.RawTable) ([]string, map[string]int, error) {
	header, err := NormalizeHeader(raw.Header)
	if err != nil {
		return nil, nil, newStageError(StageClean, raw.Source, ErrUnreadableInput, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	var missing []string
	for _, col := range c.critical {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, newStageError(StageClean, raw.Source, ErrMissingColumn,
			fmt.Errorf("columns %s not in header %v", strings.Join(missing, ", "), header))
	}
	return header, index, nil
}

// Inspect returns the drop decision for every raw row, without cleaning.
func (c *Cleaner) Inspect(raw *model.RawTable) ([]Decision, error) {
	_, index, err := c.prepare(raw)
	if err != nil {
		return nil, err
	}

	decisions := make([]Decision, 0, raw.Len())
	for i, cells := range raw.Rows {
		decisions = append(decisions, c.policy(Row{Number: i + 1, Cells: cells, index: index}))
	}
	return decisions, nil
}

// Clean produces the cleaned table. Rows keep their input order. An
// unparsable date on a kept row fails the whole table.
func (c *Cleaner) Clean(raw *model.RawTable) (*model.SalesTable, error) {
	header, index, err := c.prepare(raw)
	if err != nil {
		return nil, err
	}

	core := make(map[string]bool, len(model.CoreColumns))
	for _, col := range model.CoreColumns {
		core[col] = true
	}
	numeric := make(map[string]bool, len(c.numeric))
	for _, col := range c.numeric {
		numeric[col] = true
	}

	table := &model.SalesTable{}
	for _, h := range header {
		if !core[h] {
			table.ExtraColumns = append(table.ExtraColumns, h)
		}
	}

	dropped := 0
	for i, cells := range raw.Rows {
		row := Row{Number: i + 1, Cells: cells, index: index}

		d := c.policy(row)
		if !d.Keep {
			dropped++
			c.log.WithFields(log.Fields{"row": row.Number, "reason": d.Reason}).Debug("row dropped")
			continue
		}

		date, err := ParseDate(row.Value(model.ColDate), c.layouts)
		if err != nil {
			return nil, newStageError(StageClean, raw.Source, ErrMalformedDate, &RowError{
				Row:    row.Number,
				Column: model.ColDate,
				Value:  row.Value(model.ColDate),
				Err:    err,
			})
		}

		rec := model.SalesRecord{
			Region:  strings.TrimSpace(row.Value(model.ColRegion)),
			Model:   strings.TrimSpace(row.Value(model.ColModel)),
			Sales:   utils.ParseNumeric(row.Value(model.ColSales)),
			Revenue: utils.ParseNumeric(row.Value(model.ColRevenue)),
			Date:    date,
		}
		if len(table.ExtraColumns) > 0 {
			rec.Extra = make(map[string]string, len(table.ExtraColumns))
			for _, col := range table.ExtraColumns {
				rec.Extra[col] = extraValue(row.Value(col), numeric[col])
			}
		}
		table.Records = append(table.Records, rec)
	}

	c.log.WithFields(log.Fields{
		"source":  raw.Source,
		"kept":    table.Len(),
		"dropped": dropped,
	}).Info("data cleaned")
	return table, nil
}

// extraValue normalizes a non-core cell. Numeric extras are rewritten in
// canonical form; missing cells become empty.
func extraValue(cell string, isNumeric bool) string {
	if utils.IsMissing(cell) {
		return ""
	}
	if isNumeric {
		return utils.FormatNullFloat(utils.ParseNumeric(cell))
	}
	return strings.TrimSpace(cell)
}

// ParseDate parses s with the first matching layout and returns the
// calendar date at UTC midnight.
func ParseDate(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("no date layout matches %q", s)
}
