package utils

import (
	"database/sql"
	"math"
	"strconv"
	"strings"
)

// missingTokens are cell values treated as absent, besides the empty string.
// Matching is exact and case-sensitive: "NA" is missing, "Na" is not.
var missingTokens = map[string]struct{}{
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsMissing reports whether a raw cell holds no value. Surrounding
// whitespace is ignored.
func IsMissing(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, ok := missingTokens[s]
	return ok
}

// ParseNumeric coerces a raw cell to a float. Anything that is missing or
// does not parse comes back as NULL.
func ParseNumeric(s string) sql.NullFloat64 {
	if IsMissing(s) {
		return sql.NullFloat64{}
	}
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

// FormatFloat renders a float in its shortest round-trip form: 15, 300,
// 150.5. Output is stable across runs.
func FormatFloat(f float64) string {
	if f == 0 {
		// avoid "-0"
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatNullFloat renders NULL as an empty cell.
func FormatNullFloat(f sql.NullFloat64) string {
	if !f.Valid {
		return ""
	}
	return FormatFloat(f.Float64)
}

// CleanHeader trims a header cell and strips a UTF-8 BOM and surrounding quotes.
func CleanHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(h)
	h = strings.ReplaceAll(h, `"`, "")
	return strings.TrimSpace(h)
}
