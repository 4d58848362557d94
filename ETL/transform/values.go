package transform

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/LilVoxy/northwind_etl/ETL/models"
)

// keyString renders an id column as canonical text, so that 4, 4.0 and "4"
// join with each other. The second result is false for nulls.
func keyString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case time.Time:
		return x.Format(dateLayout), true
	default:
		return fmt.Sprint(x), true
	}
}

// textValue renders any value as text; nulls become the empty string
func textValue(v any) string {
	s, _ := keyString(v)
	return s
}

// nullText renders a value as a nullable string
func nullText(v any) sql.NullString {
	s, ok := keyString(v)
	return sql.NullString{String: s, Valid: ok}
}

// numberValue reads a numeric column. Text that does not parse as a number
// (e.g. the null placeholder) is not a number.
func numberValue(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case []byte:
		return numberValue(string(x))
	default:
		return 0, false
	}
}

func nullNumber(v any) sql.NullFloat64 {
	f, ok := numberValue(v)
	return sql.NullFloat64{Float64: f, Valid: ok}
}

// dateLayout is how dates are written to the warehouse
const dateLayout = "2006-01-02 15:04:05"

var dateLayouts = []string{
	dateLayout,
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006/01/02",
	"01/02/2006",
}

// dateValue parses an order date in any of the layouts found in the source
func dateValue(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	case []byte:
		return dateValue(string(x))
	}
	return time.Time{}, false
}

// indexBy maps a key column to the first row carrying each key
func indexBy(table models.RawTable, column string) map[string]models.Row {
	index := make(map[string]models.Row, len(table.Rows))
	for _, row := range table.Rows {
		key, ok := keyString(row[column])
		if !ok {
			continue
		}
		if _, seen := index[key]; !seen {
			index[key] = row
		}
	}
	return index
}

// requireColumns fails when a table lacks a column the star schema needs
func requireColumns(table models.RawTable, columns ...string) error {
	have := make(map[string]bool, len(table.Columns))
	for _, c := range table.Columns {
		have[c] = true
	}
	for _, c := range columns {
		if !have[c] {
			return fmt.Errorf("table %s has no column %s", table.Name, c)
		}
	}
	return nil
}
