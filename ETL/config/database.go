package config

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Supported warehouse drivers
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Dialect captures the SQL differences between the supported warehouse stores
type Dialect struct {
	Name string
	// AutoIncrementKey is the column definition of an auto-increment primary key
	AutoIncrementKey string
	// TransactionalDDL reports whether DROP/RENAME take part in a transaction
	TransactionalDDL bool
}

var (
	sqliteDialect = Dialect{
		Name:             DriverSQLite,
		AutoIncrementKey: "INTEGER PRIMARY KEY AUTOINCREMENT",
		TransactionalDDL: true,
	}
	mysqlDialect = Dialect{
		Name:             DriverMySQL,
		AutoIncrementKey: "BIGINT AUTO_INCREMENT PRIMARY KEY",
		TransactionalDDL: false,
	}
)

// DialectFor returns the dialect for a driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverSQLite:
		return sqliteDialect, nil
	case DriverMySQL:
		return mysqlDialect, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported warehouse driver %q", driver)
	}
}

// QuoteIdent quotes a table or column name
func (d Dialect) QuoteIdent(name string) string {
	if d.Name == DriverMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ColumnType maps a portable column kind (TEXT, REAL, INTEGER) to the dialect
func (d Dialect) ColumnType(kind string) string {
	if d.Name != DriverMySQL {
		return kind
	}
	switch kind {
	case "REAL":
		return "DOUBLE"
	case "INTEGER":
		return "BIGINT"
	default:
		return kind
	}
}

// SwapStatements returns the statements that replace every final table by
// its staging copy. staging and retired name the helper tables of a final table.
//
// SQLite runs the statements inside one transaction. MySQL commits DDL
// implicitly, so the swap is a single multi-table RENAME TABLE instead.
func (d Dialect) SwapStatements(tables []string, staging, retired func(string) string) []string {
	var stmts []string

	if d.Name == DriverMySQL {
		pairs := make([]string, 0, 2*len(tables))
		old := make([]string, 0, len(tables))
		for _, name := range tables {
			stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(retired(name))))
			// RENAME needs every source table to exist
			stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s LIKE %s", d.QuoteIdent(name), d.QuoteIdent(staging(name))))
			pairs = append(pairs,
				fmt.Sprintf("%s TO %s", d.QuoteIdent(name), d.QuoteIdent(retired(name))),
				fmt.Sprintf("%s TO %s", d.QuoteIdent(staging(name)), d.QuoteIdent(name)),
			)
			old = append(old, d.QuoteIdent(retired(name)))
		}
		stmts = append(stmts, "RENAME TABLE "+strings.Join(pairs, ", "))
		stmts = append(stmts, "DROP TABLE IF EXISTS "+strings.Join(old, ", "))
		return stmts
	}

	for _, name := range tables {
		stmts = append(stmts,
			fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(name)),
			fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteIdent(staging(name)), d.QuoteIdent(name)),
		)
	}
	return stmts
}

// ListTablesQuery returns a query yielding the names of all warehouse tables
func (d Dialect) ListTablesQuery() string {
	if d.Name == DriverMySQL {
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name"
	}
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
}

// Warehouse is an open warehouse store together with its dialect
type Warehouse struct {
	DB      *sql.DB
	Dialect Dialect
}

// Close closes the warehouse connection
func (w *Warehouse) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// OpenWarehouse opens (creating if needed) the warehouse store
func OpenWarehouse(cfg WarehouseConfig) (*Warehouse, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dialect.Name == DriverSQLite {
		if dir := filepath.Dir(sqlitePath(dsn)); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create warehouse directory: %w", err)
			}
		}
		if !strings.HasPrefix(dsn, "file:") {
			dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)", dsn)
		}
	}

	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}

	if dialect.Name == DriverSQLite {
		// SQLite serialises writers anyway; one connection keeps the staging
		// swap and the readers of this process on the same view.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	return &Warehouse{DB: db, Dialect: dialect}, nil
}

// OpenSource opens the cached operational database read-only
func OpenSource(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverSQLite, fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to source database: %w", err)
	}

	return db, nil
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}
