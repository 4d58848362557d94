package models

import "time"

// Row is one record of a raw table. A nil value (or a missing key) is a null.
type Row map[string]any

// RawTable is a schema-less table read from the operational database
type RawTable struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Len returns the number of rows
func (t RawTable) Len() int {
	return len(t.Rows)
}

// Source table names as used throughout the pipeline
const (
	TableCustomers    = "customers"
	TableOrders       = "orders"
	TableOrderDetails = "order_details"
	TableProducts     = "products"
	TableCategories   = "categories"
	TableSuppliers    = "suppliers"
)

// SourceTables maps pipeline table names to their names in the operational database
var SourceTables = []struct {
	Name   string
	Source string
}{
	{TableCustomers, "Customers"},
	{TableOrders, "Orders"},
	{TableOrderDetails, "Order Details"},
	{TableProducts, "Products"},
	{TableCategories, "Categories"},
	{TableSuppliers, "Suppliers"},
}

// CityReference is one row of the world cities dataset
type CityReference struct {
	City       string
	Country    string
	Region     string
	Latitude   float64
	Longitude  float64
	Population float64
	// HasPopulation is false when the dataset leaves population empty
	HasPopulation bool
}

// ExtractedData contains everything the extract phase produces
type ExtractedData struct {
	Tables       map[string]RawTable
	Cities       []CityReference
	ExchangeRate float64
	// RateFallback is true when ExchangeRate is the configured fallback
	RateFallback bool
	ExtractedAt  time.Time
}

// Table returns a table by name, or an empty table carrying only the name
func (d *ExtractedData) Table(name string) RawTable {
	if t, ok := d.Tables[name]; ok {
		return t
	}
	return RawTable{Name: name}
}
