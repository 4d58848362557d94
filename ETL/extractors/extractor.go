package extractors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/LilVoxy/northwind_etl/ETL/config"
	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// Extractor coordinates the extraction of the operational tables and the
// reference datasets
type Extractor struct {
	cfg     *config.ETLConfig
	logger  *utils.ETLLogger
	fetcher *DatabaseFetcher
	cities  *CityExtractor
	rates   *ExchangeRateClient
}

// NewExtractor creates a new Extractor
func NewExtractor(cfg *config.ETLConfig, logger *utils.ETLLogger) *Extractor {
	client := &http.Client{Timeout: cfg.Reference.Timeout}

	return &Extractor{
		cfg:     cfg,
		logger:  logger,
		fetcher: NewDatabaseFetcher(cfg.Source.URL, cfg.Source.CachePath, client, logger),
		cities:  NewCityExtractor(cfg.Reference.CitiesPath, logger),
		rates:   NewExchangeRateClient(cfg.Reference.ExchangeRateURL, cfg.Reference.FallbackRate, client, logger),
	}
}

// FetchSource makes sure the database is cached locally and reads every source table
func (e *Extractor) FetchSource(ctx context.Context) (map[string]models.RawTable, error) {
	path, err := e.fetcher.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	db, err := config.OpenSource(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tableExtractor := NewTableExtractor(db, e.logger)
	tables := make(map[string]models.RawTable, len(models.SourceTables))
	for _, t := range models.SourceTables {
		table, err := tableExtractor.ExtractTable(ctx, t.Name, t.Source)
		if err != nil {
			return nil, err
		}
		tables[t.Name] = table
	}

	e.logger.Info("Loaded all tables from database")
	return tables, nil
}

// FetchReference loads the world cities file and the exchange rate. Only a
// missing or broken cities file is an error; the rate falls back silently.
func (e *Extractor) FetchReference(ctx context.Context) ([]models.CityReference, float64, bool, error) {
	cities, err := e.cities.ExtractCities()
	if err != nil {
		return nil, 0, false, err
	}
	e.logger.Info("Loaded world cities data (%d rows)", len(cities))

	rate, fallback := e.rates.Rate(ctx)
	return cities, rate, fallback, nil
}

// Extract runs the whole extraction phase
func (e *Extractor) Extract(ctx context.Context) (*models.ExtractedData, error) {
	startTime := time.Now()

	tables, err := e.FetchSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("source extraction failed: %w", err)
	}

	cities, rate, fallback, err := e.FetchReference(ctx)
	if err != nil {
		return nil, fmt.Errorf("reference extraction failed: %w", err)
	}

	data := &models.ExtractedData{
		Tables:       tables,
		Cities:       cities,
		ExchangeRate: rate,
		RateFallback: fallback,
		ExtractedAt:  time.Now(),
	}

	e.logger.Info("Extracted %d customers, %d orders, %d order lines, %d products in %v",
		data.Table(models.TableCustomers).Len(),
		data.Table(models.TableOrders).Len(),
		data.Table(models.TableOrderDetails).Len(),
		data.Table(models.TableProducts).Len(),
		time.Since(startTime).Round(time.Millisecond),
	)

	return data, nil
}
