package extractors

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// TableExtractor reads whole tables from the operational database
type TableExtractor struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewTableExtractor creates a new TableExtractor
func NewTableExtractor(db *sql.DB, logger *utils.ETLLogger) *TableExtractor {
	return &TableExtractor{
		db:     db,
		logger: logger,
	}
}

// ExtractTable reads every row of source into a RawTable called name
func (e *TableExtractor) ExtractTable(ctx context.Context, name, source string) (models.RawTable, error) {
	e.logger.Debug("Extracting table %s", source)

	query := fmt.Sprintf(`SELECT * FROM "%s"`, strings.ReplaceAll(source, `"`, `""`))
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return models.RawTable{}, fmt.Errorf("failed to query %s: %w", source, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return models.RawTable{}, fmt.Errorf("failed to read columns of %s: %w", source, err)
	}

	table := models.RawTable{Name: name, Columns: columns}

	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return models.RawTable{}, fmt.Errorf("failed to scan row of %s: %w", source, err)
		}

		row := make(models.Row, len(columns))
		for i, col := range columns {
			// Text may come back as []byte, which is reused by the driver
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}

	if err = rows.Err(); err != nil {
		return models.RawTable{}, fmt.Errorf("failed to iterate %s: %w", source, err)
	}

	e.logger.Debug("Extracted %d rows from %s", len(table.Rows), source)
	return table, nil
}
