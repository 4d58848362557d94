package load

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/LilVoxy/northwind_etl/ETL/config"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// stagingSuffix and retiredSuffix name the helper tables of the table swap
const (
	stagingSuffix = "__staging"
	retiredSuffix = "__old"
)

func stagingName(table string) string { return table + stagingSuffix }
func retiredName(table string) string { return table + retiredSuffix }

// TableWriter writes whole tables into staging copies
type TableWriter struct {
	db        *sql.DB
	dialect   config.Dialect
	batchSize int
	logger    *utils.ETLLogger
}

// NewTableWriter creates a new TableWriter
func NewTableWriter(db *sql.DB, dialect config.Dialect, batchSize int, logger *utils.ETLLogger) *TableWriter {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &TableWriter{
		db:        db,
		dialect:   dialect,
		batchSize: batchSize,
		logger:    logger,
	}
}

// WriteStaging recreates the staging copy of table and fills it. The final
// table is not touched.
func (w *TableWriter) WriteStaging(ctx context.Context, table Table) error {
	startTime := time.Now()
	staging := w.dialect.QuoteIdent(stagingName(table.Name))

	if _, err := w.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+staging); err != nil {
		return fmt.Errorf("failed to drop %s: %w", stagingName(table.Name), err)
	}

	defs := make([]string, 0, len(table.Columns))
	names := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", w.dialect.QuoteIdent(col.Name), w.dialect.ColumnType(col.Kind)))
		names = append(names, w.dialect.QuoteIdent(col.Name))
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", staging, strings.Join(defs, ", "))
	if _, err := w.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create %s: %w", stagingName(table.Name), err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		staging, strings.Join(names, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))

	for start := 0; start < len(table.Rows); start += w.batchSize {
		end := start + w.batchSize
		if end > len(table.Rows) {
			end = len(table.Rows)
		}
		if err := w.insertBatch(ctx, insert, table.Rows[start:end]); err != nil {
			return fmt.Errorf("failed to load %s rows %d-%d: %w", table.Name, start, end, err)
		}
		w.logger.Debug("Loaded %d of %d rows into %s", end, len(table.Rows), table.Name)
	}

	w.logger.Info("Loaded %s into data warehouse (%d rows, %v)", table.Name, len(table.Rows), time.Since(startTime).Round(time.Millisecond))
	return nil
}

// insertBatch inserts rows in one transaction
func (w *TableWriter) insertBatch(ctx context.Context, query string, rows [][]any) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			tx.Rollback()
			return err
		}
	}

	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to close insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Swap replaces every final table by its staging copy in one step
func (w *TableWriter) Swap(ctx context.Context, tables []string) error {
	stmts := w.dialect.SwapStatements(tables, stagingName, retiredName)

	if !w.dialect.TransactionalDDL {
		for _, stmt := range stmts {
			if _, err := w.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to swap tables: %w", err)
			}
		}
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin swap: %w", err)
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to swap tables: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit swap: %w", err)
	}
	return nil
}

// DropStaging removes staging copies left by a failed load
func (w *TableWriter) DropStaging(ctx context.Context, tables []string) {
	for _, name := range tables {
		if _, err := w.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+w.dialect.QuoteIdent(stagingName(name))); err != nil {
			w.logger.Warn("Failed to drop %s: %v", stagingName(name), err)
		}
	}
}
