package transform

import (
	"fmt"
	"sort"
	"time"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// Transformer coordinates the transformation of raw tables into the star schema
type Transformer struct {
	logger         *utils.ETLLogger
	cleaner        *Cleaner
	corrections    Corrections
	dimBuilder     *DimensionBuilder
	salesProcessor *SalesFactsProcessor
}

// NewTransformer creates a new Transformer
func NewTransformer(placeholder string, corrections Corrections, logger *utils.ETLLogger) *Transformer {
	return &Transformer{
		logger:         logger,
		cleaner:        NewCleaner(placeholder, logger),
		corrections:    corrections,
		dimBuilder:     NewDimensionBuilder(logger),
		salesProcessor: NewSalesFactsProcessor(logger),
	}
}

// Clean cleans every table independently and returns the total number of
// duplicates dropped
func (t *Transformer) Clean(tables map[string]models.RawTable) (map[string]models.RawTable, int) {
	// Source order first keeps the log readable
	names := make([]string, 0, len(tables))
	known := make(map[string]bool, len(models.SourceTables))
	for _, source := range models.SourceTables {
		known[source.Name] = true
		if _, ok := tables[source.Name]; ok {
			names = append(names, source.Name)
		}
	}
	var extra []string
	for name := range tables {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	cleaned := make(map[string]models.RawTable, len(tables))
	total := 0
	for _, name := range names {
		table, dropped := t.cleaner.Clean(tables[name])
		cleaned[name] = table
		total += dropped
	}

	return cleaned, total
}

// Transform runs the whole transformation phase
func (t *Transformer) Transform(data *models.ExtractedData) (*models.TransformedData, error) {
	startTime := time.Now()

	cleaned, duplicates := t.Clean(data.Tables)
	t.logger.Info("Cleaned all tables")

	table := func(name string) models.RawTable {
		if tbl, ok := cleaned[name]; ok {
			return tbl
		}
		return models.RawTable{Name: name}
	}

	customers, err := t.dimBuilder.BuildCustomers(table(models.TableCustomers))
	if err != nil {
		return nil, fmt.Errorf("failed to build customer dimension: %w", err)
	}

	products, err := t.dimBuilder.BuildProducts(table(models.TableProducts), table(models.TableCategories), table(models.TableSuppliers))
	if err != nil {
		return nil, fmt.Errorf("failed to build product dimension: %w", err)
	}

	dates, err := t.dimBuilder.BuildDates(table(models.TableOrders))
	if err != nil {
		return nil, fmt.Errorf("failed to build date dimension: %w", err)
	}
	t.logger.Info("Created dimension tables")

	sales, err := t.salesProcessor.ProcessSalesFacts(table(models.TableOrderDetails), table(models.TableOrders), table(models.TableProducts))
	if err != nil {
		return nil, fmt.Errorf("failed to build sales facts: %w", err)
	}
	t.logger.Info("Created fact table")

	index := NewGeoIndex(data.Cities, t.corrections)
	if index.Collapsed > 0 {
		t.logger.Debug("%d reference cities share a (city, country) key with a more populous one", index.Collapsed)
	}

	enriched, unmatched := EnrichCustomers(customers, index, t.logger)
	t.logger.Info("Enriched customer dimension: %d of %d customers matched", len(enriched)-unmatched, len(enriched))

	t.logger.Debug("Transform finished in %v", time.Since(startTime).Round(time.Millisecond))

	return &models.TransformedData{
		Dimensions: models.Dimensions{
			Customers: enriched,
			Products:  products,
			Dates:     dates,
		},
		Sales:              sales,
		UnmatchedCustomers: unmatched,
		DuplicatesDropped:  duplicates,
	}, nil
}
