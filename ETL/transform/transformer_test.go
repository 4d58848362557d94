package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

func sampleTables() map[string]models.RawTable {
	return map[string]models.RawTable{
		models.TableCustomers: {
			Name:    models.TableCustomers,
			Columns: []string{"CustomerID", "CompanyName", "ContactName", "City", "Country"},
			Rows: []models.Row{
				{"CustomerID": "WARTH", "CompanyName": "Wartian Herkku", "ContactName": "Pirkko", "City": "Bruxelles", "Country": "Belgium"},
				{"CustomerID": "ALFKI", "CompanyName": "Alfreds", "ContactName": "Maria", "City": "Berlin", "Country": "Germany"},
				{"CustomerID": "ZZZZZ", "CompanyName": "Nowhere Ltd", "ContactName": nil, "City": "Atlantis", "Country": "Greece"},
				{"CustomerID": "ALFKI", "CompanyName": "Alfreds", "ContactName": "Maria", "City": "Berlin", "Country": "Germany"},
			},
		},
		models.TableOrders: {
			Name:    models.TableOrders,
			Columns: []string{"OrderID", "CustomerID", "OrderDate"},
			Rows: []models.Row{
				{"OrderID": int64(10248), "CustomerID": "WARTH", "OrderDate": "2016-07-04"},
				{"OrderID": int64(10249), "CustomerID": "ALFKI", "OrderDate": time.Date(2016, 7, 5, 0, 0, 0, 0, time.UTC)},
				{"OrderID": int64(10250), "CustomerID": nil, "OrderDate": nil},
			},
		},
		models.TableOrderDetails: {
			Name:    models.TableOrderDetails,
			Columns: []string{"OrderID", "ProductID", "UnitPrice", "Quantity", "Discount"},
			Rows: []models.Row{
				{"OrderID": int64(10248), "ProductID": int64(11), "UnitPrice": 14.0, "Quantity": int64(12), "Discount": 0.0},
				{"OrderID": int64(10248), "ProductID": int64(42), "UnitPrice": 9.8, "Quantity": int64(10), "Discount": 0.15},
				{"OrderID": int64(10249), "ProductID": int64(11), "UnitPrice": nil, "Quantity": int64(3), "Discount": 0.0},
				{"OrderID": int64(99999), "ProductID": int64(77), "UnitPrice": 2.5, "Quantity": int64(2), "Discount": 0.0},
			},
		},
		models.TableProducts: {
			Name:    models.TableProducts,
			Columns: []string{"ProductID", "ProductName", "SupplierID", "CategoryID"},
			Rows: []models.Row{
				{"ProductID": int64(11), "ProductName": "Queso Cabrales", "SupplierID": int64(5), "CategoryID": int64(4)},
				{"ProductID": int64(42), "ProductName": "Singaporean Hokkien", "SupplierID": int64(20), "CategoryID": nil},
			},
		},
		models.TableCategories: {
			Name:    models.TableCategories,
			Columns: []string{"CategoryID", "CategoryName"},
			Rows: []models.Row{
				{"CategoryID": int64(4), "CategoryName": "Dairy Products"},
			},
		},
		models.TableSuppliers: {
			Name:    models.TableSuppliers,
			Columns: []string{"SupplierID", "CompanyName", "Country"},
			Rows: []models.Row{
				{"SupplierID": int64(5), "CompanyName": "Cooperativa de Quesos", "Country": "Spain"},
			},
		},
	}
}

func TestTransformer_Transform(t *testing.T) {
	data := &models.ExtractedData{
		Tables:       sampleTables(),
		Cities:       referenceCities,
		ExchangeRate: 0.9,
	}

	result, err := NewTransformer("Unknown", DefaultCorrections(), utils.NewNopLogger()).Transform(data)
	require.NoError(t, err)

	assert.Equal(t, 1, result.DuplicatesDropped)
	assert.Equal(t, 1, result.UnmatchedCustomers)

	customers := result.Dimensions.Customers
	require.Len(t, customers, 3)
	assert.Equal(t, "WARTH", customers[0].CustomerID)
	assert.True(t, customers[0].Latitude.Valid)
	assert.True(t, customers[1].Latitude.Valid)
	assert.False(t, customers[2].Latitude.Valid)
	assert.Equal(t, "Unknown", customers[2].ContactName)

	products := result.Dimensions.Products
	require.Len(t, products, 2)
	assert.Equal(t, "11", products[0].ProductID)
	assert.Equal(t, "Dairy Products", products[0].CategoryName.String)
	assert.Equal(t, "Cooperativa de Quesos", products[0].SupplierName.String)
	assert.Equal(t, "Spain", products[0].SupplierCountry.String)
	assert.False(t, products[1].CategoryName.Valid)
	assert.False(t, products[1].SupplierName.Valid)
	assert.False(t, products[1].SupplierCountry.Valid)

	dates := result.Dimensions.Dates
	require.Len(t, dates, 3)
	assert.Equal(t, "10248", dates[0].OrderID)
	assert.Equal(t, "2016-07-04 00:00:00", dates[0].OrderDate.String)
	assert.Equal(t, int64(2016), dates[0].Year.Int64)
	assert.Equal(t, int64(7), dates[1].Month.Int64)
	assert.Equal(t, int64(5), dates[1].Day.Int64)
	assert.False(t, dates[2].Year.Valid)

	sales := result.Sales
	require.Len(t, sales, 4)

	assert.Equal(t, "10248", sales[0].OrderID)
	assert.Equal(t, "WARTH", sales[0].CustomerID.String)
	assert.Equal(t, "2016-07-04 00:00:00", sales[0].OrderDate.String)
	assert.InDelta(t, 168.0, sales[0].RevenueUSD.Float64, 1e-9)

	// Discount is carried, not applied
	assert.InDelta(t, 0.15, sales[1].Discount.Float64, 1e-9)
	assert.InDelta(t, 98.0, sales[1].RevenueUSD.Float64, 1e-9)

	// The placeholder is not a price
	assert.False(t, sales[2].UnitPrice.Valid)
	assert.False(t, sales[2].RevenueUSD.Valid)

	// Left join keeps line items of unknown orders
	assert.Equal(t, "99999", sales[3].OrderID)
	assert.False(t, sales[3].CustomerID.Valid)
	assert.False(t, sales[3].OrderDate.Valid)
	assert.InDelta(t, 5.0, sales[3].RevenueUSD.Float64, 1e-9)
}

func TestTransformer_MissingColumn(t *testing.T) {
	tables := sampleTables()
	customers := tables[models.TableCustomers]
	customers.Columns = []string{"CustomerID"}
	tables[models.TableCustomers] = customers

	_, err := NewTransformer("Unknown", DefaultCorrections(), utils.NewNopLogger()).Transform(&models.ExtractedData{Tables: tables})
	assert.ErrorContains(t, err, "customer dimension")
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{int64(4), "4", true},
		{4.0, "4", true},
		{4.5, "4.5", true},
		{"ALFKI", "ALFKI", true},
		{[]byte("x"), "x", true},
		{nil, "", false},
	}

	for _, tt := range tests {
		got, ok := keyString(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.ok, ok)
	}
}

func TestDateValue(t *testing.T) {
	for _, in := range []any{"2016-07-04", "2016-07-04 00:00:00", "2016-07-04T00:00:00Z", "2016-07-04 00:00:00.000", "2016/07/04"} {
		got, ok := dateValue(in)
		require.True(t, ok, in)
		assert.Equal(t, "2016-07-04", got.Format("2006-01-02"))
	}

	_, ok := dateValue("Unknown")
	assert.False(t, ok)
}
