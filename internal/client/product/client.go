// Package product reads the catalog snapshot from the product service over HTTP.
package product

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/utafrali/shopcatalog/internal/domain"
	"github.com/utafrali/shopcatalog/pkg/httpclient"
)

const (
	serviceName = "product"

	// DefaultPerPage is the page size requested from the product service.
	DefaultPerPage = 100

	// maxPages bounds a single snapshot fetch.
	maxPages = 500
)

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client implements repository.CatalogSource by paging through
// GET /api/v1/products of the product service.
type Client struct {
	http    HTTPDoer
	baseURL string
	perPage int
	logger  *slog.Logger
}

// NewClient creates a product service client. perPage <= 0 uses DefaultPerPage.
func NewClient(doer HTTPDoer, baseURL string, perPage int, logger *slog.Logger) *Client {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &Client{
		http:    doer,
		baseURL: baseURL,
		perPage: perPage,
		logger:  logger,
	}
}

type brandRef struct {
	Name string `json:"name"`
}

type categoryRef struct {
	Name string `json:"name"`
}

// remoteProduct is the subset of the product service's list payload the
// catalog needs. Merchandising flags live in metadata.
type remoteProduct struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	BasePrice   int64        `json:"base_price"`
	Brand       *brandRef    `json:"brand,omitempty"`
	Category    *categoryRef `json:"category,omitempty"`
	Rating      float64      `json:"average_rating"`
	ReviewCount int          `json:"review_count"`
	Metadata    struct {
		OnSale  bool     `json:"on_sale"`
		InStock *bool    `json:"in_stock"`
		Tags    []string `json:"tags"`
	} `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

type listResponse struct {
	Data       []remoteProduct `json:"data"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
	HasNext    bool            `json:"has_next"`
}

// FetchAll pages through every product, newest first.
func (c *Client) FetchAll(ctx context.Context) ([]domain.CatalogItem, error) {
	items := []domain.CatalogItem{}
	start := time.Now()

	for page := 1; ; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("fetch catalog: more than %d pages", maxPages)
		}

		resp, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		for i := range resp.Data {
			items = append(items, resp.Data[i].toItem())
		}
		if !resp.HasNext || len(resp.Data) == 0 {
			c.logger.DebugContext(ctx, "catalog snapshot fetched",
				slog.Int("items", len(items)),
				slog.Int("pages", page),
				slog.Duration("duration", time.Since(start)),
			)
			return items, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, page int) (*listResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("sort_by", "newest")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/products?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create list products request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call product service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode list products response (page %d): %w", page, err)
	}
	return &out, nil
}

func (p *remoteProduct) toItem() domain.CatalogItem {
	it := domain.CatalogItem{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       float64(p.BasePrice),
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
		Active:      p.Status == "published",
		OnSale:      p.Metadata.OnSale,
		InStock:     p.Metadata.InStock == nil || *p.Metadata.InStock,
		CreatedAt:   p.CreatedAt.UTC(),
		Tags:        p.Metadata.Tags,
	}
	if p.Brand != nil {
		it.Brand = p.Brand.Name
	}
	if p.Category != nil {
		it.Category = p.Category.Name
	}
	return it
}
