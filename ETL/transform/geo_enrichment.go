package transform

import (
	"database/sql"
	"strings"

	"golang.org/x/text/cases"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// Normalize case-folds and trims a place name for matching
func Normalize(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Corrections maps alternate spellings of cities and countries found in the
// source to the spelling of the reference dataset. It is immutable once built.
type Corrections struct {
	cities    map[string]string
	countries map[string]string
}

// NewCorrections builds a correction table. Keys and values are normalized.
func NewCorrections(cities, countries map[string]string) Corrections {
	return Corrections{
		cities:    normalizeMap(cities),
		countries: normalizeMap(countries),
	}
}

// DefaultCorrections returns the corrections for the Northwind customer list
func DefaultCorrections() Corrections {
	return NewCorrections(
		map[string]string{
			"bruxelles":       "brussels",
			"sao paulo":       "são paulo",
			"tsawassen":       "vancouver",
			"kobenhavn":       "copenhagen",
			"århus":           "aarhus",
			"cunewalde":       "dresden",
			"frankfurt a.m.":  "frankfurt",
			"köln":            "cologne",
			"münchen":         "munich",
			"torino":          "turin",
			"méxico d.f.":     "mexico city",
			"stavern":         "oslo",
			"warszawa":        "warsaw",
			"lisboa":          "lisbon",
			"bräcke":          "östersund",
			"genève":          "geneva",
			"cowes":           "southampton",
			"i. de margarita": "porlamar", // Margarita Island, Venezuela
			"lander":          "casper",   // largest city in Wyoming
			"unknown":         "unknown",
		},
		map[string]string{
			"uk":  "united kingdom",
			"usa": "united states",
		},
	)
}

// City returns the normalized, corrected form of a city name
func (c Corrections) City(name string) string {
	return correct(c.cities, Normalize(name))
}

// Country returns the normalized, corrected form of a country name
func (c Corrections) Country(name string) string {
	return correct(c.countries, Normalize(name))
}

func correct(fixes map[string]string, key string) string {
	if fixed, ok := fixes[key]; ok {
		return fixed
	}
	return key
}

func normalizeMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[Normalize(k)] = Normalize(v)
	}
	return out
}

type geoKey struct {
	city    string
	country string
}

// GeoIndex looks up reference cities by normalized (city, country)
type GeoIndex struct {
	corrections Corrections
	cities      map[geoKey]models.CityReference
	// Collapsed counts reference rows dropped because their key was taken
	Collapsed int
}

// NewGeoIndex indexes the reference dataset. When several rows share a key
// the most populous one is kept, so a lookup never yields more than one row.
func NewGeoIndex(cities []models.CityReference, corrections Corrections) *GeoIndex {
	idx := &GeoIndex{
		corrections: corrections,
		cities:      make(map[geoKey]models.CityReference, len(cities)),
	}

	for _, city := range cities {
		// Reference names are only folded; corrections apply to the source side
		key := geoKey{city: Normalize(city.City), country: Normalize(city.Country)}

		current, exists := idx.cities[key]
		if exists {
			idx.Collapsed++
			if !morePopulous(city, current) {
				continue
			}
		}
		idx.cities[key] = city
	}

	return idx
}

func morePopulous(a, b models.CityReference) bool {
	if !a.HasPopulation {
		return false
	}
	return !b.HasPopulation || a.Population > b.Population
}

// Lookup finds the reference row for a source city and country
func (g *GeoIndex) Lookup(city, country string) (models.CityReference, bool) {
	ref, ok := g.cities[geoKey{city: g.corrections.City(city), country: g.corrections.Country(country)}]
	return ref, ok
}

// Enrich fills the geography of one customer. An unmatched customer is
// returned unchanged, with null geography.
func (g *GeoIndex) Enrich(customer models.DimCustomer) (models.DimCustomer, bool) {
	ref, ok := g.Lookup(customer.City, customer.Country)
	if !ok {
		customer.Region = sql.NullString{}
		customer.Latitude = sql.NullFloat64{}
		customer.Longitude = sql.NullFloat64{}
		customer.CityPopulation = sql.NullFloat64{}
		return customer, false
	}

	customer.Region = sql.NullString{String: ref.Region, Valid: ref.Region != ""}
	customer.Latitude = sql.NullFloat64{Float64: ref.Latitude, Valid: true}
	customer.Longitude = sql.NullFloat64{Float64: ref.Longitude, Valid: true}
	customer.CityPopulation = sql.NullFloat64{Float64: ref.Population, Valid: ref.HasPopulation}
	return customer, true
}

// EnrichCustomers left-joins the customer dimension with the reference
// dataset. The result has exactly one row per input row, in input order.
// Customers left without geography are logged and counted.
func EnrichCustomers(customers []models.DimCustomer, index *GeoIndex, logger *utils.ETLLogger) ([]models.DimCustomer, int) {
	enriched := make([]models.DimCustomer, 0, len(customers))
	unmatched := 0

	for _, customer := range customers {
		row, ok := index.Enrich(customer)
		if !ok {
			unmatched++
			logger.Warn("No reference city for customer %s (%s, %s)", customer.CustomerID, customer.City, customer.Country)
		}
		enriched = append(enriched, row)
	}

	return enriched, unmatched
}
