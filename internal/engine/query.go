// Package engine filters, sorts, and paginates an in-memory catalog snapshot.
// It holds no state and performs no I/O: the same snapshot and criteria
// always yield the same result.
package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/utafrali/shopcatalog/internal/domain"
	"github.com/utafrali/shopcatalog/pkg/pagination"
)

// FreeShippingThreshold is the minimum item price that ships for free.
const FreeShippingThreshold = 50000

// Query runs the criteria against items and returns one page of the result.
// Malformed criteria never fail: an inverted price range matches nothing, a
// non-positive page size falls back to domain.DefaultPageSize, and the page
// is clamped into range. The items slice is not modified.
func Query(items []domain.CatalogItem, criteria domain.FilterCriteria) domain.QueryResult {
	m := newMatcher(criteria)

	matched := make([]domain.CatalogItem, 0, len(items))
	for i := range items {
		if m.matches(&items[i]) {
			matched = append(matched, items[i])
		}
	}

	sortItems(matched, criteria.SortKey)

	w := pagination.Resolve(len(matched), criteria.Page, criteria.PageSize, domain.DefaultPageSize)

	return domain.QueryResult{
		Items:        pagination.Slice(matched, w),
		TotalMatched: len(matched),
		TotalPages:   w.TotalPages,
		CurrentPage:  w.Page,
		PageSize:     w.PerPage,
	}
}

// matcher holds the criteria with its string fields pre-lowered.
type matcher struct {
	c          domain.FilterCriteria
	search     string
	categories []string
	brands     []string
}

func newMatcher(c domain.FilterCriteria) *matcher {
	return &matcher{
		c:          c,
		search:     strings.ToLower(c.SearchText),
		categories: lowerAll(c.Categories),
		brands:     lowerAll(c.Brands),
	}
}

// matches applies every predicate in a fixed order: active, text, category,
// brand, rating, price, on sale, free shipping.
func (m *matcher) matches(p *domain.CatalogItem) bool {
	if !p.Active {
		return false
	}

	if m.search != "" && !m.matchesText(p) {
		return false
	}

	if len(m.categories) > 0 && !slices.Contains(m.categories, strings.ToLower(p.Category)) {
		return false
	}

	if len(m.brands) > 0 && !slices.Contains(m.brands, strings.ToLower(p.Brand)) {
		return false
	}

	if p.Rating < m.c.MinRating {
		return false
	}

	if p.Price < m.c.MinPrice || p.Price > m.c.MaxPrice {
		return false
	}

	if m.c.OnSaleOnly && !p.OnSale {
		return false
	}

	if m.c.FreeShippingOnly && p.Price < FreeShippingThreshold {
		return false
	}

	return true
}

// matchesText is a plain case-insensitive substring test. No tokenizing, no ranking.
func (m *matcher) matchesText(p *domain.CatalogItem) bool {
	fields := [...]string{p.Name, p.Description, p.Brand, p.Category}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), m.search) {
			return true
		}
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), m.search) {
			return true
		}
	}
	return false
}

// sortItems orders items in place. Every ordering is stable so equal keys keep
// their input order and pagination is reproducible.
func sortItems(items []domain.CatalogItem, key domain.SortKey) {
	switch key {
	case domain.SortPriceAsc:
		slices.SortStableFunc(items, func(a, b domain.CatalogItem) int {
			return cmp.Compare(a.Price, b.Price)
		})
	case domain.SortPriceDesc:
		slices.SortStableFunc(items, func(a, b domain.CatalogItem) int {
			return cmp.Compare(b.Price, a.Price)
		})
	case domain.SortRatingDesc:
		slices.SortStableFunc(items, func(a, b domain.CatalogItem) int {
			if c := cmp.Compare(b.Rating, a.Rating); c != 0 {
				return c
			}
			return cmp.Compare(b.ReviewCount, a.ReviewCount)
		})
	case domain.SortNameAsc:
		slices.SortStableFunc(items, func(a, b domain.CatalogItem) int {
			return strings.Compare(a.Name, b.Name)
		})
	case domain.SortNameDesc:
		slices.SortStableFunc(items, func(a, b domain.CatalogItem) int {
			return strings.Compare(b.Name, a.Name)
		})
	case domain.SortNewest:
		slices.SortStableFunc(items, func(a, b domain.CatalogItem) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	default:
		// SortDefault, SortPopularity, or unknown: keep the caller's order.
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
