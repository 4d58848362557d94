package models

// TransformedData contains the star schema ready to be loaded
type TransformedData struct {
	// Dimensions
	Dimensions Dimensions

	// Facts
	Sales []FactSales

	// Metadata
	UnmatchedCustomers int
	DuplicatesDropped  int
}
