package models

import "database/sql"

// Warehouse table names
const (
	TableFactSales   = "fact_sales"
	TableDimCustomer = "dim_customer"
	TableDimProduct  = "dim_product"
	TableDimDate     = "dim_date"
	TableJobMetadata = "job_metadata"
)

// DimCustomer is one row of dim_customer. The geography fields stay null
// until enrichment finds a matching reference city.
type DimCustomer struct {
	CustomerID     string
	CompanyName    string
	ContactName    string
	City           string
	Country        string
	Region         sql.NullString
	Latitude       sql.NullFloat64
	Longitude      sql.NullFloat64
	CityPopulation sql.NullFloat64
}

// DimProduct is one row of dim_product. Category and supplier fields are
// null when the product references a missing row.
type DimProduct struct {
	ProductID       string
	ProductName     string
	CategoryName    sql.NullString
	SupplierName    sql.NullString
	SupplierCountry sql.NullString
}

// DimDate is one row of dim_date, one per order
type DimDate struct {
	OrderID   string
	OrderDate sql.NullString
	Year      sql.NullInt64
	Month     sql.NullInt64
	Day       sql.NullInt64
}

// FactSales is one row of fact_sales, one per order line item.
// RevenueEUR is not part of the row; it is derived after loading.
type FactSales struct {
	OrderID    string
	CustomerID sql.NullString
	ProductID  string
	OrderDate  sql.NullString
	Quantity   sql.NullFloat64
	UnitPrice  sql.NullFloat64
	Discount   sql.NullFloat64
	RevenueUSD sql.NullFloat64
}

// Dimensions groups the dimension tables
type Dimensions struct {
	Customers []DimCustomer
	Products  []DimProduct
	Dates     []DimDate
}
