package load

import (
	"context"
	"fmt"
	"time"

	"github.com/LilVoxy/northwind_etl/ETL/config"
	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// LoadManager runs the load phase against the warehouse
type LoadManager struct {
	warehouse *config.Warehouse
	writer    *TableWriter
	logger    *utils.ETLLogger
}

// NewLoadManager creates a new LoadManager
func NewLoadManager(warehouse *config.Warehouse, batchSize int, logger *utils.ETLLogger) *LoadManager {
	return &LoadManager{
		warehouse: warehouse,
		writer:    NewTableWriter(warehouse.DB, warehouse.Dialect, batchSize, logger),
		logger:    logger,
	}
}

// Load replaces the fact and dimension tables. Every table is staged first
// and the staged tables are swapped in together, so a failure leaves the
// previous warehouse content in place.
func (m *LoadManager) Load(ctx context.Context, data *models.TransformedData) error {
	startTime := time.Now()

	tables := StarSchema(data)
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}

	for _, t := range tables {
		if err := m.writer.WriteStaging(ctx, t); err != nil {
			m.writer.DropStaging(context.WithoutCancel(ctx), names)
			return err
		}
	}

	if err := m.writer.Swap(ctx, names); err != nil {
		m.writer.DropStaging(context.WithoutCancel(ctx), names)
		return err
	}

	m.logger.Info("Data warehouse tables replaced in %v", time.Since(startTime).Round(time.Millisecond))

	if existing, err := m.ListTables(ctx); err != nil {
		m.logger.Warn("Failed to list warehouse tables: %v", err)
	} else {
		m.logger.Info("Data warehouse schema: %v", existing)
	}

	return nil
}

// AddRevenueEUR derives fact_sales.RevenueEUR = RevenueUSD * rate, adding the
// column when needed. It returns the number of rows updated.
func (m *LoadManager) AddRevenueEUR(ctx context.Context, rate float64) (int64, error) {
	if rate <= 0 {
		return 0, fmt.Errorf("invalid exchange rate %v", rate)
	}

	db := m.warehouse.DB
	table := m.warehouse.Dialect.QuoteIdent(models.TableFactSales)

	exists, err := m.hasColumn(ctx, models.TableFactSales, "RevenueEUR")
	if err != nil {
		return 0, err
	}
	if !exists {
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN RevenueEUR %s", table, m.warehouse.Dialect.ColumnType(kindReal))
		if _, err := db.ExecContext(ctx, alter); err != nil {
			return 0, fmt.Errorf("failed to add RevenueEUR column: %w", err)
		}
	}

	result, err := db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET RevenueEUR = RevenueUSD * ?", table), rate)
	if err != nil {
		return 0, fmt.Errorf("failed to update RevenueEUR: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read updated rows: %w", err)
	}

	m.logger.Info("Added EUR revenue (rate: %.4f, rows: %d)", rate, updated)
	return updated, nil
}

func (m *LoadManager) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := m.warehouse.DB.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", m.warehouse.Dialect.QuoteIdent(table)))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return false, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	for _, c := range columns {
		if c == column {
			return true, nil
		}
	}
	return false, nil
}

// ListTables returns the names of the warehouse tables
func (m *LoadManager) ListTables(ctx context.Context) ([]string, error) {
	rows, err := m.warehouse.DB.QueryContext(ctx, m.warehouse.Dialect.ListTablesQuery())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}
