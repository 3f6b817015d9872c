package http

import (
	"github.com/utafrali/shopcatalog/internal/domain"
)

// ReplaceFiltersRequest is the body of PUT /api/v1/catalog/filters. A missing
// max_price means no ceiling. Out-of-range numbers are normalized by the
// service, not rejected.
type ReplaceFiltersRequest struct {
	SearchText       string   `json:"search_text" validate:"max=200"`
	Categories       []string `json:"categories" validate:"max=50,dive,required,max=100"`
	Brands           []string `json:"brands" validate:"max=50,dive,required,max=100"`
	MinRating        float64  `json:"min_rating"`
	MinPrice         float64  `json:"min_price"`
	MaxPrice         *float64 `json:"max_price"`
	OnSaleOnly       bool     `json:"on_sale_only"`
	FreeShippingOnly bool     `json:"free_shipping_only"`
	SortKey          string   `json:"sort_key" validate:"omitempty,sortkey"`
	Page             int      `json:"page"`
	PageSize         int      `json:"page_size" validate:"lte=100"`
}

func (r *ReplaceFiltersRequest) criteria() domain.FilterCriteria {
	c := domain.FilterCriteria{
		SearchText:       r.SearchText,
		Categories:       r.Categories,
		Brands:           r.Brands,
		MinRating:        r.MinRating,
		MinPrice:         r.MinPrice,
		MaxPrice:         domain.NoUpperBound,
		OnSaleOnly:       r.OnSaleOnly,
		FreeShippingOnly: r.FreeShippingOnly,
		SortKey:          domain.SortKey(r.SortKey),
		Page:             r.Page,
		PageSize:         r.PageSize,
	}
	if r.MaxPrice != nil {
		c.MaxPrice = *r.MaxPrice
	}
	return c
}

// UpdateSearchRequest is the body of PATCH /filters/search.
type UpdateSearchRequest struct {
	Text string `json:"text" validate:"max=200"`
}

// UpdateCategoriesRequest is the body of PATCH /filters/categories. An empty
// list clears the restriction.
type UpdateCategoriesRequest struct {
	Categories []string `json:"categories" validate:"max=50,dive,required,max=100"`
}

// UpdateBrandsRequest is the body of PATCH /filters/brands.
type UpdateBrandsRequest struct {
	Brands []string `json:"brands" validate:"max=50,dive,required,max=100"`
}

// UpdatePriceRequest is the body of PATCH /filters/price. A missing max
// removes the ceiling.
type UpdatePriceRequest struct {
	Min float64  `json:"min"`
	Max *float64 `json:"max"`
}

// UpdateSortRequest is the body of PATCH /filters/sort.
type UpdateSortRequest struct {
	SortKey string `json:"sort_key" validate:"required,sortkey"`
}

// UpdatePageRequest is the body of PATCH /filters/page. Pages below 1 mean
// the first page.
type UpdatePageRequest struct {
	Page int `json:"page"`
}

// FilterStateResponse is returned by every filter endpoint.
type FilterStateResponse struct {
	Criteria         domain.FilterCriteria `json:"criteria"`
	HasActiveFilters bool                  `json:"has_active_filters"`
}

func newFilterStateResponse(c domain.FilterCriteria) FilterStateResponse {
	return FilterStateResponse{Criteria: c, HasActiveFilters: !c.IsEmpty()}
}

// PageMeta accompanies a page of products.
type PageMeta struct {
	TotalMatched int  `json:"total_matched"`
	TotalPages   int  `json:"total_pages"`
	CurrentPage  int  `json:"current_page"`
	PageSize     int  `json:"page_size"`
	HasNext      bool `json:"has_next"`
	HasPrev      bool `json:"has_prev"`
}

func newPageMeta(r *domain.QueryResult) PageMeta {
	return PageMeta{
		TotalMatched: r.TotalMatched,
		TotalPages:   r.TotalPages,
		CurrentPage:  r.CurrentPage,
		PageSize:     r.PageSize,
		HasNext:      r.HasNext(),
		HasPrev:      r.HasPrev(),
	}
}
