package processor

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/LilVoxy/northwind_etl/ETL/config"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// ArchiveExt is the file extension of archived tables
const ArchiveExt = ".csv.sz"

// Archiver writes snapshots of warehouse tables as compressed CSV files,
// one directory per pipeline run
type Archiver struct {
	db      *sql.DB
	dialect config.Dialect
	dir     string
	logger  *utils.ETLLogger
}

// NewArchiver creates a new Archiver rooted at dir
func NewArchiver(warehouse *config.Warehouse, dir string, logger *utils.ETLLogger) *Archiver {
	return &Archiver{
		db:      warehouse.DB,
		dialect: warehouse.Dialect,
		dir:     dir,
		logger:  logger,
	}
}

// Archive writes <dir>/<runID>/<table>.csv.sz for every table and returns the written paths
func (a *Archiver) Archive(ctx context.Context, runID string, tables []string) ([]string, error) {
	if runID == "" {
		return nil, fmt.Errorf("archive requires a run id")
	}

	paths := make([]string, 0, len(tables))
	for _, table := range tables {
		path := filepath.Join(a.dir, runID, table+ArchiveExt)
		var rowCount int
		err := WriteCompressed(path, func(w io.Writer) error {
			var err error
			rowCount, err = a.dumpTable(ctx, table, w)
			return err
		})
		if err != nil {
			return paths, fmt.Errorf("failed to archive %s: %w", table, err)
		}

		a.logger.Debug("Archived %s (%d rows) to %s", table, rowCount, path)
		paths = append(paths, path)
	}

	a.logger.Info("Archived %d tables to %s", len(paths), filepath.Join(a.dir, runID))
	return paths, nil
}

func (a *Archiver) dumpTable(ctx context.Context, table string, w io.Writer) (int, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", a.dialect.QuoteIdent(table)))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	out := csv.NewWriter(w)
	if err := out.Write(columns); err != nil {
		return 0, err
	}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	record := make([]string, len(columns))

	count := 0
	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return count, err
		}
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := out.Write(record); err != nil {
			return count, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	out.Flush()
	return count, out.Error()
}

// formatValue renders a scanned value; null becomes an empty field
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}

// ReadArchive decodes an archived table into its header and records
func ReadArchive(path string) ([]string, [][]string, error) {
	reader, closer, err := OpenCompressed(path)
	if err != nil {
		return nil, nil, err
	}
	defer closer.Close()

	records, err := csv.NewReader(reader).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s has no header", path)
	}

	return records[0], records[1:], nil
}
