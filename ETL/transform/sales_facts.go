package transform

import (
	"database/sql"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// SalesFactsProcessor builds fact_sales from order line items
type SalesFactsProcessor struct {
	logger *utils.ETLLogger
}

// NewSalesFactsProcessor creates a new SalesFactsProcessor
func NewSalesFactsProcessor(logger *utils.ETLLogger) *SalesFactsProcessor {
	return &SalesFactsProcessor{logger: logger}
}

// ProcessSalesFacts left-joins every line item to its order and product.
// RevenueUSD is UnitPrice * Quantity, without the discount; it is null when
// either operand is not a number.
func (p *SalesFactsProcessor) ProcessSalesFacts(orderDetails, orders, products models.RawTable) ([]models.FactSales, error) {
	if err := requireColumns(orderDetails, "OrderID", "ProductID", "UnitPrice", "Quantity", "Discount"); err != nil {
		return nil, err
	}

	orderByID := indexBy(orders, "OrderID")
	productByID := indexBy(products, "ProductID")

	facts := make([]models.FactSales, 0, len(orderDetails.Rows))
	orphanOrders, orphanProducts := 0, 0

	for _, line := range orderDetails.Rows {
		fact := models.FactSales{
			OrderID:   textValue(line["OrderID"]),
			ProductID: textValue(line["ProductID"]),
			Quantity:  nullNumber(line["Quantity"]),
			UnitPrice: nullNumber(line["UnitPrice"]),
			Discount:  nullNumber(line["Discount"]),
		}

		if order, ok := orderByID[fact.OrderID]; ok {
			fact.CustomerID = nullText(order["CustomerID"])
			if t, ok := dateValue(order["OrderDate"]); ok {
				fact.OrderDate = sql.NullString{String: t.Format(dateLayout), Valid: true}
			}
		} else {
			orphanOrders++
		}

		if _, ok := productByID[fact.ProductID]; !ok {
			orphanProducts++
		}

		if fact.UnitPrice.Valid && fact.Quantity.Valid {
			fact.RevenueUSD = sql.NullFloat64{Float64: fact.UnitPrice.Float64 * fact.Quantity.Float64, Valid: true}
		}

		facts = append(facts, fact)
	}

	if orphanOrders > 0 || orphanProducts > 0 {
		p.logger.Warn("Line items without order: %d, without product: %d", orphanOrders, orphanProducts)
	}
	p.logger.Debug("Built %d sales facts", len(facts))
	return facts, nil
}
