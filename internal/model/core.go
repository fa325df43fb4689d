package model

// RawTable is a tabular file as read from disk: a header row and string
// cells. Rows always have exactly len(Header) cells.
type RawTable struct {
	Source string     `json:"source"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// NewRawTable builds a RawTable, padding short rows with empty cells and
// truncating long ones.
func NewRawTable(source string, header []string, rows [][]string) *RawTable {
	width := len(header)
	fixed := make([][]string, 0, len(rows))
	for _, row := range rows {
		switch {
		case len(row) == width:
			fixed = append(fixed, row)
		case len(row) > width:
			fixed = append(fixed, row[:width])
		default:
			padded := make([]string, width)
			copy(padded, row)
			fixed = append(fixed, padded)
		}
	}
	return &RawTable{Source: source, Header: header, Rows: fixed}
}

// Len returns the number of data rows
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
