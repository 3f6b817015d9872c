// Package postgres reads the catalog snapshot from the product database.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/utafrali/shopcatalog/internal/domain"
	"github.com/utafrali/shopcatalog/pkg/database"
)

// fetchCatalogQuery flattens products with their brand and category names,
// review aggregates, and merchandising flags kept in metadata. Prices are in
// minor currency units.
const fetchCatalogQuery = `
		SELECT p.id, p.name, COALESCE(p.description, ''),
		       COALESCE(b.name, ''), COALESCE(c.name, ''),
		       p.base_price, p.status = 'published',
		       COALESCE((p.metadata->>'on_sale')::boolean, false),
		       COALESCE((p.metadata->>'in_stock')::boolean, true),
		       COALESCE(r.avg_rating, 0), COALESCE(r.review_count, 0),
		       COALESCE(p.metadata->'tags', '[]'::jsonb),
		       p.created_at
		FROM products p
		LEFT JOIN brands b ON b.id = p.brand_id
		LEFT JOIN categories c ON c.id = p.category_id
		LEFT JOIN (
			SELECT product_id, AVG(rating)::float8 AS avg_rating, COUNT(*) AS review_count
			FROM reviews
			GROUP BY product_id
		) r ON r.product_id = p.id
		WHERE p.deleted_at IS NULL
		ORDER BY p.created_at DESC, p.id`

// CatalogSource implements repository.CatalogSource over PostgreSQL.
type CatalogSource struct {
	pool database.DBTX
}

// NewCatalogSource creates a PostgreSQL-backed catalog source.
func NewCatalogSource(pool database.DBTX) *CatalogSource {
	return &CatalogSource{pool: pool}
}

// FetchAll loads every non-deleted product, newest first. Inactive products
// are included; the query engine filters them.
func (s *CatalogSource) FetchAll(ctx context.Context) (items []domain.CatalogItem, err error) {
	ctx, end := database.TraceQuery(ctx, "FetchCatalog", fetchCatalogQuery)
	defer func() { end(err) }()

	rows, err := s.pool.Query(ctx, fetchCatalogQuery)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	items = []domain.CatalogItem{}
	for rows.Next() {
		var (
			it          domain.CatalogItem
			price       int64
			reviewCount int64
			tags        []byte
			createdAt   time.Time
		)
		if err := rows.Scan(
			&it.ID, &it.Name, &it.Description,
			&it.Brand, &it.Category,
			&price, &it.Active,
			&it.OnSale, &it.InStock,
			&it.Rating, &reviewCount,
			&tags,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}

		it.Price = float64(price)
		it.ReviewCount = int(reviewCount)
		it.CreatedAt = createdAt.UTC()
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &it.Tags); err != nil {
				return nil, fmt.Errorf("decode tags of product %s: %w", it.ID, err)
			}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}

	return items, nil
}

// Ping checks the database connection with a trivial query.
func (s *CatalogSource) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping catalog database: %w", err)
	}
	return nil
}
