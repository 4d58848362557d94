package load

import (
	"database/sql"
	"sort"
	"strconv"

	"github.com/LilVoxy/northwind_etl/ETL/models"
)

// Column kinds, mapped to concrete types by the dialect
const (
	kindText    = "TEXT"
	kindReal    = "REAL"
	kindInteger = "INTEGER"
)

// Column is one column of a warehouse table
type Column struct {
	Name string
	Kind string
}

// Table is a warehouse table ready to be written
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// lessKey orders ids numerically when both parse as integers
func lessKey(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

func nullable[T any](v T, valid bool) any {
	if !valid {
		return nil
	}
	return v
}

func str(v sql.NullString) any { return nullable(v.String, v.Valid) }
func num(v sql.NullFloat64) any { return nullable(v.Float64, v.Valid) }
func whole(v sql.NullInt64) any { return nullable(v.Int64, v.Valid) }

// FactSalesTable builds fact_sales, ordered by order and product
func FactSalesTable(sales []models.FactSales) Table {
	sorted := append([]models.FactSales(nil), sales...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OrderID != sorted[j].OrderID {
			return lessKey(sorted[i].OrderID, sorted[j].OrderID)
		}
		return lessKey(sorted[i].ProductID, sorted[j].ProductID)
	})

	t := Table{
		Name: models.TableFactSales,
		Columns: []Column{
			{"OrderID", kindText},
			{"CustomerID", kindText},
			{"ProductID", kindText},
			{"OrderDate", kindText},
			{"Quantity", kindReal},
			{"UnitPrice", kindReal},
			{"Discount", kindReal},
			{"RevenueUSD", kindReal},
		},
		Rows: make([][]any, 0, len(sorted)),
	}
	for _, f := range sorted {
		t.Rows = append(t.Rows, []any{
			f.OrderID, str(f.CustomerID), f.ProductID, str(f.OrderDate),
			num(f.Quantity), num(f.UnitPrice), num(f.Discount), num(f.RevenueUSD),
		})
	}
	return t
}

// CustomerTable builds dim_customer, ordered by customer id
func CustomerTable(customers []models.DimCustomer) Table {
	sorted := append([]models.DimCustomer(nil), customers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessKey(sorted[i].CustomerID, sorted[j].CustomerID)
	})

	t := Table{
		Name: models.TableDimCustomer,
		Columns: []Column{
			{"CustomerID", kindText},
			{"CompanyName", kindText},
			{"ContactName", kindText},
			{"City", kindText},
			{"Country", kindText},
			{"Region", kindText},
			{"Latitude", kindReal},
			{"Longitude", kindReal},
			{"CityPopulation", kindReal},
		},
		Rows: make([][]any, 0, len(sorted)),
	}
	for _, c := range sorted {
		t.Rows = append(t.Rows, []any{
			c.CustomerID, c.CompanyName, c.ContactName, c.City, c.Country,
			str(c.Region), num(c.Latitude), num(c.Longitude), num(c.CityPopulation),
		})
	}
	return t
}

// ProductTable builds dim_product, ordered by product id
func ProductTable(products []models.DimProduct) Table {
	sorted := append([]models.DimProduct(nil), products...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessKey(sorted[i].ProductID, sorted[j].ProductID)
	})

	t := Table{
		Name: models.TableDimProduct,
		Columns: []Column{
			{"ProductID", kindText},
			{"ProductName", kindText},
			{"CategoryName", kindText},
			{"SupplierName", kindText},
			{"SupplierCountry", kindText},
		},
		Rows: make([][]any, 0, len(sorted)),
	}
	for _, p := range sorted {
		t.Rows = append(t.Rows, []any{
			p.ProductID, p.ProductName, str(p.CategoryName), str(p.SupplierName), str(p.SupplierCountry),
		})
	}
	return t
}

// DateTable builds dim_date, ordered by order id
func DateTable(dates []models.DimDate) Table {
	sorted := append([]models.DimDate(nil), dates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessKey(sorted[i].OrderID, sorted[j].OrderID)
	})

	t := Table{
		Name: models.TableDimDate,
		Columns: []Column{
			{"OrderID", kindText},
			{"OrderDate", kindText},
			{"Year", kindInteger},
			{"Month", kindInteger},
			{"Day", kindInteger},
		},
		Rows: make([][]any, 0, len(sorted)),
	}
	for _, d := range sorted {
		t.Rows = append(t.Rows, []any{
			d.OrderID, str(d.OrderDate), whole(d.Year), whole(d.Month), whole(d.Day),
		})
	}
	return t
}

// StarSchema returns every table of the star schema, fact table first
func StarSchema(data *models.TransformedData) []Table {
	return []Table{
		FactSalesTable(data.Sales),
		CustomerTable(data.Dimensions.Customers),
		ProductTable(data.Dimensions.Products),
		DateTable(data.Dimensions.Dates),
	}
}
