package engine

import (
	"cmp"
	"slices"

	"github.com/utafrali/shopcatalog/internal/domain"
	"github.com/utafrali/shopcatalog/pkg/slug"
)

// Facets summarizes the active items of a snapshot for a filter panel:
// category and brand counts sorted by name, the price span, and stock counts.
// Items with an empty category or brand are counted in the totals only.
func Facets(items []domain.CatalogItem) domain.FacetSummary {
	categories := make(map[string]int)
	brands := make(map[string]int)
	summary := domain.FacetSummary{}

	first := true
	for i := range items {
		p := &items[i]
		if !p.Active {
			continue
		}
		summary.TotalActive++

		if p.Category != "" {
			categories[p.Category]++
		}
		if p.Brand != "" {
			brands[p.Brand]++
		}

		if p.InStock {
			summary.Availability.InStock++
		} else {
			summary.Availability.OutOfStock++
		}

		if first {
			summary.PriceRange = domain.PriceRange{Min: p.Price, Max: p.Price}
			first = false
			continue
		}
		summary.PriceRange.Min = min(summary.PriceRange.Min, p.Price)
		summary.PriceRange.Max = max(summary.PriceRange.Max, p.Price)
	}

	summary.Categories = toCounts(categories)
	summary.Brands = toCounts(brands)
	return summary
}

func toCounts(m map[string]int) []domain.FacetCount {
	out := make([]domain.FacetCount, 0, len(m))
	for name, n := range m {
		out = append(out, domain.FacetCount{Name: name, Slug: slug.Generate(name), Count: n})
	}
	slices.SortFunc(out, func(a, b domain.FacetCount) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
