package domain

import (
	"time"
)

// CatalogItem is the read-only projection of a product used for filtering
// and sorting. Catalog sources build these; nothing in this service mutates them.
// Price is in minor currency units.
type CatalogItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Brand       string    `json:"brand"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	Active      bool      `json:"active"`
	OnSale      bool      `json:"on_sale"`
	InStock     bool      `json:"in_stock"`
	CreatedAt   time.Time `json:"created_at"`
	Tags        []string  `json:"tags"`
}

// QueryResult is one page of a filtered and sorted catalog.
type QueryResult struct {
	Items        []CatalogItem `json:"items"`
	TotalMatched int           `json:"total_matched"`
	TotalPages   int           `json:"total_pages"`
	CurrentPage  int           `json:"current_page"`
	PageSize     int           `json:"page_size"`
}

// HasNext reports whether a page follows the current one.
func (r *QueryResult) HasNext() bool {
	return r.CurrentPage < r.TotalPages
}

// HasPrev reports whether a page precedes the current one.
func (r *QueryResult) HasPrev() bool {
	return r.CurrentPage > 1
}

// FacetCount is the number of active items carrying a given value.
type FacetCount struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// PriceRange holds the lowest and highest price among active items.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Availability counts active items by stock state.
type Availability struct {
	InStock    int `json:"in_stock"`
	OutOfStock int `json:"out_of_stock"`
}

// FacetSummary describes the values a filter panel can offer for a catalog snapshot.
type FacetSummary struct {
	Categories   []FacetCount `json:"categories"`
	Brands       []FacetCount `json:"brands"`
	PriceRange   PriceRange   `json:"price_range"`
	Availability Availability `json:"availability"`
	TotalActive  int          `json:"total_active"`
}
