package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/northwind_etl/ETL/models"
	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

var referenceCities = []models.CityReference{
	{City: "Brussels", Country: "Belgium", Region: "Brussels-Capital Region", Latitude: 50.8467, Longitude: 4.3525, Population: 1743000, HasPopulation: true},
	{City: "Berlin", Country: "Germany", Region: "Berlin", Latitude: 52.52, Longitude: 13.405, Population: 3644826, HasPopulation: true},
	{City: "London", Country: "United Kingdom", Region: "London, City of", Latitude: 51.5072, Longitude: -0.1275, Population: 11262000, HasPopulation: true},
	{City: "Köln", Country: "Germany", Latitude: 1, Longitude: 1},
	{City: "Cologne", Country: "Germany", Region: "North Rhine-Westphalia", Latitude: 50.9364, Longitude: 6.9528, Population: 1085664, HasPopulation: true},
	{City: "Portland", Country: "United States", Region: "Maine", Latitude: 43.66, Longitude: -70.25, Population: 68408, HasPopulation: true},
	{City: "Portland", Country: "United States", Region: "Oregon", Latitude: 45.52, Longitude: -122.68, Population: 2074775, HasPopulation: true},
	{City: "Portland", Country: "United States", Region: "Unknown Place", Latitude: 0, Longitude: 0},
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "münchen", Normalize("  MÜNCHEN "))
	assert.Equal(t, "méxico d.f.", Normalize("México D.F."))
}

func TestCorrections(t *testing.T) {
	c := DefaultCorrections()

	assert.Equal(t, "brussels", c.City("Bruxelles"))
	assert.Equal(t, "cologne", c.City("Köln"))
	assert.Equal(t, "mexico city", c.City("México D.F."))
	assert.Equal(t, "são paulo", c.City("Sao Paulo"))
	assert.Equal(t, "berlin", c.City("Berlin"))
	assert.Equal(t, "united kingdom", c.Country("UK"))
	assert.Equal(t, "united states", c.Country("USA"))
	assert.Equal(t, "belgium", c.Country("Belgium"))
}

func TestCorrections_Swappable(t *testing.T) {
	idx := NewGeoIndex(referenceCities, NewCorrections(map[string]string{"BXL": "Brussels"}, nil))

	_, ok := idx.Lookup("bxl", "belgium")
	assert.True(t, ok)

	_, ok = idx.Lookup("Bruxelles", "Belgium")
	assert.False(t, ok)
}

func TestGeoIndex_Enrich(t *testing.T) {
	idx := NewGeoIndex(referenceCities, DefaultCorrections())

	tests := []struct {
		name        string
		city        string
		country     string
		wantMatch   bool
		wantLat     float64
		wantRegion  string
	}{
		{name: "exact", city: "Berlin", country: "Germany", wantMatch: true, wantLat: 52.52, wantRegion: "Berlin"},
		{name: "case insensitive", city: "BERLIN", country: "germany", wantMatch: true, wantLat: 52.52, wantRegion: "Berlin"},
		{name: "city correction", city: "Bruxelles", country: "Belgium", wantMatch: true, wantLat: 50.8467, wantRegion: "Brussels-Capital Region"},
		{name: "country correction", city: "London", country: "UK", wantMatch: true, wantLat: 51.5072, wantRegion: "London, City of"},
		{name: "correction wins over literal match", city: "Köln", country: "Germany", wantMatch: true, wantLat: 50.9364, wantRegion: "North Rhine-Westphalia"},
		{name: "most populous duplicate", city: "Portland", country: "USA", wantMatch: true, wantLat: 45.52, wantRegion: "Oregon"},
		{name: "unmatched", city: "Atlantis", country: "Greece"},
		{name: "placeholder", city: "Unknown", country: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := models.DimCustomer{CustomerID: "X", City: tt.city, Country: tt.country}
			got, ok := idx.Enrich(in)

			assert.Equal(t, tt.wantMatch, ok)
			assert.Equal(t, tt.city, got.City)
			assert.Equal(t, tt.country, got.Country)
			if !tt.wantMatch {
				assert.False(t, got.Latitude.Valid)
				assert.False(t, got.Longitude.Valid)
				assert.False(t, got.Region.Valid)
				assert.False(t, got.CityPopulation.Valid)
				return
			}
			assert.True(t, got.Latitude.Valid)
			assert.Equal(t, tt.wantLat, got.Latitude.Float64)
			assert.Equal(t, tt.wantRegion, got.Region.String)
		})
	}
}

func TestGeoIndex_Collapsed(t *testing.T) {
	idx := NewGeoIndex(referenceCities, DefaultCorrections())
	assert.Equal(t, 2, idx.Collapsed)
}

func TestEnrichCustomers_KeepsRowCount(t *testing.T) {
	customers := []models.DimCustomer{
		{CustomerID: "A", City: "Bruxelles", Country: "Belgium"},
		{CustomerID: "B", City: "Portland", Country: "USA"},
		{CustomerID: "C", City: "Atlantis", Country: "Greece"},
		{CustomerID: "D", City: "Portland", Country: "USA"},
		{CustomerID: "E", City: "Unknown", Country: "Unknown"},
	}

	enriched, unmatched := EnrichCustomers(customers, NewGeoIndex(referenceCities, DefaultCorrections()), utils.NewNopLogger())

	require.Len(t, enriched, len(customers))
	assert.Equal(t, 2, unmatched)
	for i := range customers {
		assert.Equal(t, customers[i].CustomerID, enriched[i].CustomerID)
	}
	assert.True(t, enriched[0].Latitude.Valid)
	assert.False(t, enriched[2].Latitude.Valid)
}
