package transform

import (
	"database/sql"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// DimensionBuilder builds the customer, product and date dimensions from
// cleaned source tables
type DimensionBuilder struct {
	logger *utils.ETLLogger
}

// NewDimensionBuilder creates a new DimensionBuilder
func NewDimensionBuilder(logger *utils.ETLLogger) *DimensionBuilder {
	return &DimensionBuilder{logger: logger}
}

// BuildCustomers projects the customers table. Geography stays null until enrichment.
func (b *DimensionBuilder) BuildCustomers(customers models.RawTable) ([]models.DimCustomer, error) {
	if err := requireColumns(customers, "CustomerID", "CompanyName", "ContactName", "City", "Country"); err != nil {
		return nil, err
	}

	dims := make([]models.DimCustomer, 0, len(customers.Rows))
	for _, row := range customers.Rows {
		dims = append(dims, models.DimCustomer{
			CustomerID:  textValue(row["CustomerID"]),
			CompanyName: textValue(row["CompanyName"]),
			ContactName: textValue(row["ContactName"]),
			City:        textValue(row["City"]),
			Country:     textValue(row["Country"]),
		})
	}

	b.logger.Debug("Built %d customer dimension rows", len(dims))
	return dims, nil
}

// BuildProducts left-joins products to categories and suppliers. A product
// whose category or supplier is missing keeps null for those fields.
func (b *DimensionBuilder) BuildProducts(products, categories, suppliers models.RawTable) ([]models.DimProduct, error) {
	if err := requireColumns(products, "ProductID", "ProductName", "CategoryID", "SupplierID"); err != nil {
		return nil, err
	}

	categoryByID := indexBy(categories, "CategoryID")
	supplierByID := indexBy(suppliers, "SupplierID")

	dims := make([]models.DimProduct, 0, len(products.Rows))
	missingCategory, missingSupplier := 0, 0

	for _, row := range products.Rows {
		dim := models.DimProduct{
			ProductID:   textValue(row["ProductID"]),
			ProductName: textValue(row["ProductName"]),
		}

		if id, ok := keyString(row["CategoryID"]); ok {
			if category, found := categoryByID[id]; found {
				dim.CategoryName = nullText(category["CategoryName"])
			}
		}
		if !dim.CategoryName.Valid {
			missingCategory++
		}

		supplierFound := false
		if id, ok := keyString(row["SupplierID"]); ok {
			if supplier, found := supplierByID[id]; found {
				supplierFound = true
				dim.SupplierName = nullText(supplier["CompanyName"])
				dim.SupplierCountry = nullText(supplier["Country"])
			}
		}
		if !supplierFound {
			missingSupplier++
		}

		dims = append(dims, dim)
	}

	if missingCategory > 0 || missingSupplier > 0 {
		b.logger.Warn("Products without category: %d, without supplier: %d", missingCategory, missingSupplier)
	}
	b.logger.Debug("Built %d product dimension rows", len(dims))
	return dims, nil
}

// BuildDates decomposes the date of every order into year, month and day.
// One row is produced per order row; dates are not shared between orders.
func (b *DimensionBuilder) BuildDates(orders models.RawTable) ([]models.DimDate, error) {
	if err := requireColumns(orders, "OrderID", "OrderDate"); err != nil {
		return nil, err
	}

	dims := make([]models.DimDate, 0, len(orders.Rows))
	invalid := 0

	for _, row := range orders.Rows {
		dim := models.DimDate{OrderID: textValue(row["OrderID"])}

		if t, ok := dateValue(row["OrderDate"]); ok {
			dim.OrderDate = sql.NullString{String: t.Format(dateLayout), Valid: true}
			dim.Year = sql.NullInt64{Int64: int64(t.Year()), Valid: true}
			dim.Month = sql.NullInt64{Int64: int64(t.Month()), Valid: true}
			dim.Day = sql.NullInt64{Int64: int64(t.Day()), Valid: true}
		} else {
			invalid++
		}

		dims = append(dims, dim)
	}

	if invalid > 0 {
		b.logger.Warn("%d orders have no parsable order date", invalid)
	}
	b.logger.Debug("Built %d date dimension rows", len(dims))
	return dims, nil
}
