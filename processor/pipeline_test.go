package processor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/northwind_etl/ETL/config"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

func newWarehouse(t *testing.T) *config.Warehouse {
	t.Helper()

	w, err := config.OpenWarehouse(config.WarehouseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "dwh.sqlite"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	stmts := []string{
		`CREATE TABLE dim_product (ProductID TEXT, ProductName TEXT, CategoryName TEXT)`,
		`INSERT INTO dim_product VALUES ('1', 'Chai', 'Beverages'), ('2', 'Chang, large', NULL)`,
		`CREATE TABLE fact_sales (OrderID TEXT, Quantity REAL, RevenueUSD REAL)`,
		`INSERT INTO fact_sales VALUES ('10248', 12, 168.5)`,
	}
	for _, stmt := range stmts {
		_, err := w.DB.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return w
}

func TestArchiver_Archive(t *testing.T) {
	w := newWarehouse(t)
	dir := t.TempDir()

	archiver := NewArchiver(w, dir, utils.NewNopLogger())
	paths, err := archiver.Archive(context.Background(), "run-1", []string{"dim_product", "fact_sales"})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "run-1", "dim_product.csv.sz"), paths[0])

	header, records, err := ReadArchive(paths[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"ProductID", "ProductName", "CategoryName"}, header)
	assert.Equal(t, [][]string{
		{"1", "Chai", "Beverages"},
		{"2", "Chang, large", ""},
	}, records)

	_, records, err = ReadArchive(paths[1])
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"10248", "12", "168.5"}}, records)

	assert.NoFileExists(t, paths[0]+".part")
}

func TestArchiver_MissingTable(t *testing.T) {
	w := newWarehouse(t)
	dir := t.TempDir()

	paths, err := NewArchiver(w, dir, utils.NewNopLogger()).Archive(context.Background(), "run-2", []string{"dim_product", "dim_missing"})
	require.Error(t, err)
	assert.Len(t, paths, 1)
	assert.NoFileExists(t, filepath.Join(dir, "run-2", "dim_missing.csv.sz"))
	assert.NoFileExists(t, filepath.Join(dir, "run-2", "dim_missing.csv.sz.part"))
}

func TestArchiver_RequiresRunID(t *testing.T) {
	_, err := NewArchiver(newWarehouse(t), t.TempDir(), utils.NewNopLogger()).Archive(context.Background(), "", []string{"fact_sales"})
	assert.Error(t, err)
}

func TestWriteCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "payload.sz")

	require.NoError(t, WriteCompressed(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello warehouse")
		return err
	}))

	reader, closer, err := OpenCompressed(path)
	require.NoError(t, err)
	defer closer.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "hello warehouse", string(data))

	// The compressed file is not the plain text
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "hello warehouse", string(raw))
}

func TestWriteCompressed_Failure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.sz")

	err := WriteCompressed(path, func(w io.Writer) error {
		return errors.New("query failed")
	})
	require.Error(t, err)
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".part")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", formatValue(nil))
	assert.Equal(t, "abc", formatValue([]byte("abc")))
	assert.Equal(t, "42", formatValue(int64(42)))
	assert.Equal(t, "0.9", formatValue(0.9))
	assert.Equal(t, "true", formatValue(true))
}
