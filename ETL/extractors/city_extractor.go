package extractors

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// ErrCityReferenceMissing means the world cities file is not provisioned.
// Enrichment has no fallback, so the run must stop without retrying.
var ErrCityReferenceMissing = errors.New("world cities dataset not found")

// CityExtractor reads the world cities CSV file
type CityExtractor struct {
	path   string
	logger *utils.ETLLogger
}

// NewCityExtractor creates a new CityExtractor
func NewCityExtractor(path string, logger *utils.ETLLogger) *CityExtractor {
	return &CityExtractor{
		path:   path,
		logger: logger,
	}
}

// ExtractCities parses the dataset. Rows with unparsable coordinates are
// skipped; an empty population is kept as unknown.
func (e *CityExtractor) ExtractCities() ([]models.CityReference, error) {
	file, err := os.Open(e.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrCityReferenceMissing, e.path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", e.path, err)
	}
	defer file.Close()

	buffered := bufio.NewReader(file)
	if bom, err := buffered.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		buffered.Discard(3)
	}

	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", e.path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"city", "country", "lat", "lng"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%s has no %q column", e.path, required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var (
		cities  []models.CityReference
		skipped int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", e.path, err)
		}

		lat, latErr := strconv.ParseFloat(field(record, "lat"), 64)
		lng, lngErr := strconv.ParseFloat(field(record, "lng"), 64)
		if latErr != nil || lngErr != nil {
			skipped++
			continue
		}

		city := models.CityReference{
			City:      field(record, "city"),
			Country:   field(record, "country"),
			Region:    field(record, "admin_name"),
			Latitude:  lat,
			Longitude: lng,
		}
		if pop, err := strconv.ParseFloat(field(record, "population"), 64); err == nil {
			city.Population = pop
			city.HasPopulation = true
		}

		cities = append(cities, city)
	}

	if skipped > 0 {
		e.logger.Warn("Skipped %d world cities rows with invalid coordinates", skipped)
	}
	e.logger.Debug("Loaded %d world cities from %s", len(cities), e.path)

	return cities, nil
}
