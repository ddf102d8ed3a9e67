package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/pricing"
	"fuelstation/internal/domain/registry"
	"fuelstation/pkg/logger"
)

// DefaultPriceTTL bounds how stale a cached price may get when no invalidation arrives.
const DefaultPriceTTL = 10 * time.Minute

// PriceCache is a read-through cache in front of a pricing.Repository.
// Redis failures fall back to the wrapped repository.
type PriceCache struct {
	next  pricing.Repository
	store Store
	ttl   time.Duration
}

// NewPriceCache wraps next with a cache held in store.
func NewPriceCache(next pricing.Repository, store Store, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &PriceCache{next: next, store: store, ttl: ttl}
}

var _ pricing.Repository = (*PriceCache)(nil)

// PriceKey returns the cache key of a station price on a day.
func PriceKey(stationID id.ID, fuel registry.FuelType, asOf time.Time) string {
	return fmt.Sprintf("%s%s", pricePrefix(stationID, fuel), types.FormatDate(asOf))
}

func pricePrefix(stationID id.ID, fuel registry.FuelType) string {
	return fmt.Sprintf("price:%s:%s:", stationID, fuel)
}

// FindActive returns the cached price or loads and caches it.
// Misses are not cached so a newly entered price is seen at once.
func (c *PriceCache) FindActive(ctx context.Context, stationID id.ID, fuel registry.FuelType, asOf time.Time) (*pricing.Price, error) {
	key := PriceKey(stationID, fuel, asOf)

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "price cache read failed, using database", "key", key, "error", err)
	}
	if ok {
		var p pricing.Price
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		logger.Warn(ctx, "price cache entry corrupt, using database", "key", key)
	}

	p, err := c.next.FindActive(ctx, stationID, fuel, asOf)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			logger.Warn(ctx, "price cache write failed", "key", key, "error", err)
		}
	}
	return p, nil
}

// Invalidate drops every cached day of a station's fuel price.
func (c *PriceCache) Invalidate(ctx context.Context, stationID id.ID, fuel registry.FuelType) error {
	n, err := c.store.DeletePrefix(ctx, pricePrefix(stationID, fuel))
	if err != nil {
		return fmt.Errorf("invalidate prices: %w", err)
	}
	logger.Debug(ctx, "price cache invalidated", "station_id", stationID, "fuel_type", fuel, "keys", n)
	return nil
}

// InvalidateAll drops every cached price.
func (c *PriceCache) InvalidateAll(ctx context.Context) error {
	if _, err := c.store.DeletePrefix(ctx, "price:"); err != nil {
		return fmt.Errorf("invalidate prices: %w", err)
	}
	return nil
}
