package domain

import (
	"math"
	"slices"
	"time"
)

// SortKey selects the ordering applied to a catalog query.
type SortKey string

// Sort options for catalog queries.
const (
	SortDefault    SortKey = "default"
	SortPriceAsc   SortKey = "price_asc"
	SortPriceDesc  SortKey = "price_desc"
	SortRatingDesc SortKey = "rating_desc"
	SortNameAsc    SortKey = "name_asc"
	SortNameDesc   SortKey = "name_desc"
	SortNewest     SortKey = "newest"
	SortPopularity SortKey = "popularity"
)

// ValidSortKeys returns the list of valid sort keys.
func ValidSortKeys() []SortKey {
	return []SortKey{
		SortDefault, SortPriceAsc, SortPriceDesc, SortRatingDesc,
		SortNameAsc, SortNameDesc, SortNewest, SortPopularity,
	}
}

// IsValidSortKey checks whether the given string is a known sort key.
func IsValidSortKey(key string) bool {
	return slices.Contains(ValidSortKeys(), SortKey(key))
}

const (
	// DefaultPageSize is used whenever a criteria carries a non-positive page size.
	DefaultPageSize = 12

	// CatalogPageSize is the page size of catalog-wide listings.
	CatalogPageSize = 24

	// NoUpperBound is the MaxPrice sentinel meaning "no price ceiling".
	// It is finite so that it survives JSON encoding.
	NoUpperBound = math.MaxFloat64
)

// FilterCriteria describes the subset, order, and page of a catalog a shopper
// wants to see. Categories and Brands have set semantics: order and
// duplicates are irrelevant.
type FilterCriteria struct {
	SearchText       string    `json:"search_text"`
	Categories       []string  `json:"categories"`
	Brands           []string  `json:"brands"`
	MinRating        float64   `json:"min_rating"`
	MinPrice         float64   `json:"min_price"`
	MaxPrice         float64   `json:"max_price"`
	OnSaleOnly       bool      `json:"on_sale_only"`
	FreeShippingOnly bool      `json:"free_shipping_only"`
	SortKey          SortKey   `json:"sort_key"`
	Page             int       `json:"page"`
	PageSize         int       `json:"page_size"`
	LastUpdated      time.Time `json:"last_updated"`
}

// DefaultCriteria returns criteria that restrict nothing: first page, default sort.
func DefaultCriteria() FilterCriteria {
	return DefaultCriteriaWithPageSize(DefaultPageSize)
}

// DefaultCriteriaWithPageSize is DefaultCriteria for call sites that page differently.
func DefaultCriteriaWithPageSize(pageSize int) FilterCriteria {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return FilterCriteria{
		Categories: []string{},
		Brands:     []string{},
		MaxPrice:   NoUpperBound,
		SortKey:    SortDefault,
		Page:       1,
		PageSize:   pageSize,
	}
}

// Clone returns a deep copy. The category and brand slices of the copy are
// independent of the original.
func (c FilterCriteria) Clone() FilterCriteria {
	out := c
	out.Categories = cloneSet(c.Categories)
	out.Brands = cloneSet(c.Brands)
	return out
}

// IsEmpty reports whether no restrictive field is set. Sort, paging and the
// update stamp do not count as filters.
func (c FilterCriteria) IsEmpty() bool {
	return c.SearchText == "" &&
		len(c.Categories) == 0 &&
		len(c.Brands) == 0 &&
		c.MinRating == 0 &&
		c.MinPrice == 0 &&
		c.MaxPrice == NoUpperBound &&
		!c.OnSaleOnly &&
		!c.FreeShippingOnly
}

// Equal compares every field. Categories and Brands are compared as sets.
func (c FilterCriteria) Equal(o FilterCriteria) bool {
	return c.SearchText == o.SearchText &&
		sameSet(c.Categories, o.Categories) &&
		sameSet(c.Brands, o.Brands) &&
		c.MinRating == o.MinRating &&
		c.MinPrice == o.MinPrice &&
		c.MaxPrice == o.MaxPrice &&
		c.OnSaleOnly == o.OnSaleOnly &&
		c.FreeShippingOnly == o.FreeShippingOnly &&
		c.SortKey == o.SortKey &&
		c.Page == o.Page &&
		c.PageSize == o.PageSize &&
		c.LastUpdated.Equal(o.LastUpdated)
}

// Normalized returns a clone with the set fields deduplicated and sorted and
// nil slices replaced by empty ones, which gives a stable persisted form.
func (c FilterCriteria) Normalized() FilterCriteria {
	out := c.Clone()
	out.Categories = canonicalSet(out.Categories)
	out.Brands = canonicalSet(out.Brands)
	return out
}

func cloneSet(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func canonicalSet(s []string) []string {
	out := cloneSet(s)
	slices.Sort(out)
	return slices.Compact(out)
}

func sameSet(a, b []string) bool {
	return slices.Equal(canonicalSet(a), canonicalSet(b))
}
