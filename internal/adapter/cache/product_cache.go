package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/config"
	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	productCacheKeyPrefix = "product:"
	dialTimeout           = 5 * time.Second
	defaultProductTTL     = 5 * time.Minute
)

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := client.Ping(dialCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis (ping failed): %w", err)
	}
	return client, nil
}

// cachedProduct is the cached form of domain.Product.
type cachedProduct struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	Title           string  `json:"title"`
	Price           float64 `json:"price"`
	TransactionType string  `json:"transaction_type"`
	Status          string  `json:"status"`
}

// ProductCatalog is a read-through Redis cache in front of another catalog.
// Cache failures are logged and fall through to the source; they never fail a read.
type ProductCatalog struct {
	source domain.ProductCatalog
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

func NewProductCatalog(source domain.ProductCatalog, client *redis.Client, ttl time.Duration, log *logger.Logger) *ProductCatalog {
	if ttl <= 0 {
		ttl = defaultProductTTL
	}
	return &ProductCatalog{
		source: source,
		client: client,
		ttl:    ttl,
		logger: log.Named("ProductCache"),
	}
}

func productKey(id string) string {
	return productCacheKeyPrefix + id
}

func (c *ProductCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if p, ok := c.get(ctx, id); ok {
		return p, nil
	}

	p, err := c.source.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, p)
	return p, nil
}

// ListDonations is not cached; availability changes with every accepted request.
func (c *ProductCatalog) ListDonations(ctx context.Context, excludeOwnerID string, page, limit int) ([]*domain.Product, int64, error) {
	return c.source.ListDonations(ctx, excludeOwnerID, page, limit)
}

// Invalidate drops a cached product.
func (c *ProductCatalog) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, productKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete product %s from redis: %w", id, err)
	}
	return nil
}

func (c *ProductCatalog) get(ctx context.Context, id string) (*domain.Product, bool) {
	data, err := c.client.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Product cache read failed", zap.Error(err), zap.String("product_id", id))
		}
		return nil, false
	}

	var cp cachedProduct
	if err := json.Unmarshal(data, &cp); err != nil {
		c.logger.Warn("Discarding undecodable cached product", zap.Error(err), zap.String("product_id", id))
		_ = c.Invalidate(ctx, id)
		return nil, false
	}
	return &domain.Product{
		ID:              cp.ID,
		OwnerID:         cp.OwnerID,
		Title:           cp.Title,
		Price:           cp.Price,
		TransactionType: domain.TransactionType(cp.TransactionType),
		Status:          cp.Status,
	}, true
}

func (c *ProductCatalog) set(ctx context.Context, p *domain.Product) {
	data, err := json.Marshal(cachedProduct{
		ID:              p.ID,
		OwnerID:         p.OwnerID,
		Title:           p.Title,
		Price:           p.Price,
		TransactionType: string(p.TransactionType),
		Status:          p.Status,
	})
	if err != nil {
		c.logger.Warn("Failed to encode product for cache", zap.Error(err), zap.String("product_id", p.ID))
		return
	}
	if err := c.client.Set(ctx, productKey(p.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Product cache write failed", zap.Error(err), zap.String("product_id", p.ID))
	}
}
