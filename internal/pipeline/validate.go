package pipeline

import (
	"car-sales-pipeline/pkg/utils"
)

// Row is one raw data row addressed by normalized column name.
type Row struct {
	Number int // 1-based, header excluded
	Cells  []string
	index  map[string]int
}

// Value returns the raw cell for column, or "" when the column is absent.
func (r Row) Value(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// Decision is a DropPolicy verdict for one row.
type Decision struct {
	Row    int    `json:"row"`
	Keep   bool   `json:"keep"`
	Reason string `json:"reason,omitempty"`
}

// DropPolicy decides whether a row survives cleaning.
type DropPolicy func(row Row) Decision

func keep(row Row) Decision {
	return Decision{Row: row.Number, Keep: true}
}

func drop(row Row, reason string) Decision {
	return Decision{Row: row.Number, Keep: false, Reason: reason}
}

// CriticalFieldPolicy drops rows with a missing value in any of columns.
// Empty cells and NA tokens count as missing.
func CriticalFieldPolicy(columns []string) DropPolicy {
	return func(row Row) Decision {
		for _, c := range columns {
			if utils.IsMissing(row.Value(c)) {
				return drop(row, "missing "+c)
			}
		}
		return keep(row)
	}
}

// NumericNullPolicy drops rows whose value in any of columns would not
// coerce to a number.
func NumericNullPolicy(columns []string) DropPolicy {
	return func(row Row) Decision {
		for _, c := range columns {
			if !utils.ParseNumeric(row.Value(c)).Valid {
				return drop(row, "non-numeric "+c)
			}
		}
		return keep(row)
	}
}

// AllOf applies policies in order; the first drop wins.
func AllOf(policies ...DropPolicy) DropPolicy {
	return func(row Row) Decision {
		for _, p := range policies {
			if d := p(row); !d.Keep {
				return d
			}
		}
		return keep(row)
	}
}
