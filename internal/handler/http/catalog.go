// Package http exposes the catalog over a chi router.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/utafrali/shopcatalog/internal/domain"
	"github.com/utafrali/shopcatalog/internal/service"
	apperrors "github.com/utafrali/shopcatalog/pkg/errors"
	"github.com/utafrali/shopcatalog/pkg/httputil"
	"github.com/utafrali/shopcatalog/pkg/logger"
	"github.com/utafrali/shopcatalog/pkg/pagination"
	"github.com/utafrali/shopcatalog/pkg/validator"
)

const maxPerPage = 100

var registerValidations sync.Once

// CatalogHandler serves catalog queries and per-session filter state.
type CatalogHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	registerValidations.Do(func() {
		if err := validator.RegisterValidation("sortkey", domain.IsValidSortKey); err != nil {
			logger.Error("failed to register sortkey validation", slog.String("error", err.Error()))
		}
	})
	return &CatalogHandler{service: svc, logger: logger}
}

// ListProducts handles GET /api/v1/catalog/products. The session's stored
// criteria apply; page, per_page and sort query parameters override them for
// this request only.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	sessionID := logger.SessionIDFromContext(r.Context())

	p := pagination.FromRequest(r, maxPerPage)
	o := service.Overrides{Page: p.Page, PageSize: p.PerPage}
	if v := r.URL.Query().Get("sort"); v != "" {
		if !domain.IsValidSortKey(v) {
			httputil.WriteError(w, r, apperrors.InvalidInput("sort must be a known sort key"), h.logger)
			return
		}
		o.SortKey = domain.SortKey(v)
	}

	var (
		result *domain.QueryResult
		err    error
	)
	if o == (service.Overrides{}) {
		result, err = h.service.Browse(r.Context(), sessionID)
	} else {
		result, err = h.service.Preview(r.Context(), sessionID, o)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result.Items, newPageMeta(result))
}

// GetFacets handles GET /api/v1/catalog/facets.
func (h *CatalogHandler) GetFacets(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Facets(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, summary, nil)
}

// GetFilters handles GET /api/v1/catalog/filters.
func (h *CatalogHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	c := h.service.Filters(r.Context(), logger.SessionIDFromContext(r.Context()))
	httputil.WriteData(w, http.StatusOK, newFilterStateResponse(c), nil)
}

// ReplaceFilters handles PUT /api/v1/catalog/filters.
func (h *CatalogHandler) ReplaceFilters(w http.ResponseWriter, r *http.Request) {
	var req ReplaceFiltersRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := h.service.ReplaceFilters(r.Context(), logger.SessionIDFromContext(r.Context()), req.criteria())
	h.writeState(w, r, c, nil)
}

// ResetFilters handles DELETE /api/v1/catalog/filters.
func (h *CatalogHandler) ResetFilters(w http.ResponseWriter, r *http.Request) {
	c := h.service.ResetFilters(r.Context(), logger.SessionIDFromContext(r.Context()))
	h.writeState(w, r, c, nil)
}

// UpdateSearch handles PATCH /api/v1/catalog/filters/search.
func (h *CatalogHandler) UpdateSearch(w http.ResponseWriter, r *http.Request) {
	var req UpdateSearchRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := h.service.UpdateSearch(r.Context(), logger.SessionIDFromContext(r.Context()), req.Text)
	h.writeState(w, r, c, nil)
}

// UpdateCategories handles PATCH /api/v1/catalog/filters/categories.
func (h *CatalogHandler) UpdateCategories(w http.ResponseWriter, r *http.Request) {
	var req UpdateCategoriesRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := h.service.UpdateCategories(r.Context(), logger.SessionIDFromContext(r.Context()), req.Categories)
	h.writeState(w, r, c, nil)
}

// UpdateBrands handles PATCH /api/v1/catalog/filters/brands.
func (h *CatalogHandler) UpdateBrands(w http.ResponseWriter, r *http.Request) {
	var req UpdateBrandsRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := h.service.UpdateBrands(r.Context(), logger.SessionIDFromContext(r.Context()), req.Brands)
	h.writeState(w, r, c, nil)
}

// UpdatePrice handles PATCH /api/v1/catalog/filters/price.
func (h *CatalogHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req UpdatePriceRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := h.service.UpdatePrice(r.Context(), logger.SessionIDFromContext(r.Context()), req.Min, req.Max)
	h.writeState(w, r, c, nil)
}

// UpdateSort handles PATCH /api/v1/catalog/filters/sort.
func (h *CatalogHandler) UpdateSort(w http.ResponseWriter, r *http.Request) {
	var req UpdateSortRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.UpdateSort(r.Context(), logger.SessionIDFromContext(r.Context()), domain.SortKey(req.SortKey))
	h.writeState(w, r, c, err)
}

// UpdatePage handles PATCH /api/v1/catalog/filters/page.
func (h *CatalogHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	var req UpdatePageRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := h.service.UpdatePage(r.Context(), logger.SessionIDFromContext(r.Context()), req.Page)
	h.writeState(w, r, c, nil)
}

// decode reads and validates a JSON body. Malformed bodies become
// INVALID_INPUT; failed validation keeps its per-field messages.
func (h *CatalogHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return true
	}
	var valErr *validator.ValidationError
	if !errors.As(err, &valErr) {
		err = apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	httputil.WriteError(w, r, err, h.logger)
	return false
}

func (h *CatalogHandler) writeState(w http.ResponseWriter, r *http.Request, c domain.FilterCriteria, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newFilterStateResponse(c), nil)
}
