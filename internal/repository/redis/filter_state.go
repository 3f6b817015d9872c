package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/shopcatalog/internal/domain"
	apperrors "github.com/utafrali/shopcatalog/pkg/errors"
)

// FilterStateRepository implements repository.FilterStateRepository using Redis.
// Each key holds the JSON encoding of one FilterCriteria.
type FilterStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFilterStateRepository creates a new Redis-backed filter state repository.
// A zero ttl keeps entries until they are deleted.
func NewFilterStateRepository(client *redis.Client, ttl time.Duration) *FilterStateRepository {
	return &FilterStateRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the criteria stored under key.
func (r *FilterStateRepository) Get(ctx context.Context, key string) (*domain.FilterCriteria, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("filter state", key)
		}
		return nil, fmt.Errorf("redis get filter state: %w", err)
	}

	var criteria domain.FilterCriteria
	if err := json.Unmarshal(data, &criteria); err != nil {
		return nil, fmt.Errorf("unmarshal filter state: %w", err)
	}

	criteria = criteria.Normalized()
	return &criteria, nil
}

// Save persists criteria under key with the configured TTL. Category and brand
// sets are written sorted and deduplicated.
func (r *FilterStateRepository) Save(ctx context.Context, key string, criteria *domain.FilterCriteria) error {
	data, err := json.Marshal(criteria.Normalized())
	if err != nil {
		return fmt.Errorf("marshal filter state: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set filter state: %w", err)
	}

	return nil
}

// Delete removes the entry under key.
func (r *FilterStateRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del filter state: %w", err)
	}

	return nil
}

// Ping checks Redis connectivity for the readiness check.
func (r *FilterStateRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
