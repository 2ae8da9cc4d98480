package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const productKeyPrefix = "product"

// cachedProductRepository is a read-through cache in front of a ProductRepository.
// Only FindByID is cached; every write to an id deletes that id's entry.
type cachedProductRepository struct {
	next   repository.ProductRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewProductCache wraps next with a Redis cache keyed by product id
func NewProductCache(next repository.ProductRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) repository.ProductRepository {
	return &cachedProductRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func productKey(id string) string {
	return fmt.Sprintf("%s:%s", productKeyPrefix, id)
}

func (c *cachedProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	key := productKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var product domain.Product
		if err := json.Unmarshal(data, &product); err == nil {
			return &product, nil
		}
		c.logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		// Redis trouble never fails a read
		c.logger.Warn("Product cache read failed", zap.String("key", key), zap.Error(err))
	}

	product, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Product cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return product, nil
}

func (c *cachedProductRepository) Create(ctx context.Context, product *domain.Product) error {
	return c.next.Create(ctx, product)
}

func (c *cachedProductRepository) Update(ctx context.Context, product *domain.Product) error {
	// Invalidate whether or not the write succeeded
	defer c.invalidate(ctx, product.ID)
	return c.next.Update(ctx, product)
}

func (c *cachedProductRepository) Delete(ctx context.Context, id string) error {
	defer c.invalidate(ctx, id)
	return c.next.Delete(ctx, id)
}

func (c *cachedProductRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	return c.next.FindByCode(ctx, code)
}

func (c *cachedProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	return c.next.List(ctx, filter)
}

func (c *cachedProductRepository) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(context.WithoutCancel(ctx), productKey(id)).Err(); err != nil {
		c.logger.Warn("Product cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
}
