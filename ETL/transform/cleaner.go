package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// Cleaner fills nulls with a placeholder and drops exact duplicate rows
type Cleaner struct {
	placeholder string
	logger      *utils.ETLLogger
}

// NewCleaner creates a new Cleaner
func NewCleaner(placeholder string, logger *utils.ETLLogger) *Cleaner {
	return &Cleaner{
		placeholder: placeholder,
		logger:      logger,
	}
}

// Clean returns a cleaned copy of table and the number of duplicates dropped.
// Nulls are filled before de-duplication, so rows that differ only by a null
// collapse into one.
func (c *Cleaner) Clean(table models.RawTable) (models.RawTable, int) {
	columns := table.Columns
	if len(columns) == 0 {
		columns = columnsOf(table.Rows)
	}

	cleaned := models.RawTable{
		Name:    table.Name,
		Columns: columns,
		Rows:    make([]models.Row, 0, len(table.Rows)),
	}

	var (
		seen       = make(map[string]struct{}, len(table.Rows))
		nulls      = make(map[string]int)
		duplicates int
	)

	for _, row := range table.Rows {
		filled := make(models.Row, len(columns))
		for _, col := range columns {
			v, ok := row[col]
			if !ok || v == nil {
				v = c.placeholder
				nulls[col]++
			}
			filled[col] = v
		}

		key := rowKey(filled, columns)
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		cleaned.Rows = append(cleaned.Rows, filled)
	}

	if len(nulls) > 0 {
		c.logger.Debug("%s: null values filled %v", table.Name, nulls)
	}
	if duplicates > 0 {
		c.logger.Info("%s: %d duplicate rows found. Removing them.", table.Name, duplicates)
	}

	return cleaned, duplicates
}

// rowKey encodes every value with its type, so 1 and "1" stay distinct
func rowKey(row models.Row, columns []string) string {
	var b strings.Builder
	for _, col := range columns {
		v := row[col]
		fmt.Fprintf(&b, "%T:%q\x1f", v, fmt.Sprint(v))
	}
	return b.String()
}

func columnsOf(rows []models.Row) []string {
	set := make(map[string]struct{})
	for _, row := range rows {
		for col := range row {
			set[col] = struct{}{}
		}
	}

	columns := make([]string, 0, len(set))
	for col := range set {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}
