package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"procurement-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/deduct_stock.lua
var deductStockScript string

//go:embed scripts/increase_stock.lua
var increaseStockScript string

const (
	// Sentinel results from the stock scripts.
	cacheMiss    = -2
	insufficient = -1

	lockPollInterval = 50 * time.Millisecond
)

// ErrCacheMiss indicates the SKU has no cached quantity; callers fall back
// to the database.
var ErrCacheMiss = fmt.Errorf("stock not cached")

type Client struct {
	rdb            *redis.Client
	deductScript   *redis.Script
	increaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:            rdb,
		deductScript:   redis.NewScript(deductStockScript),
		increaseScript: redis.NewScript(increaseStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(sku string) string {
	return fmt.Sprintf("stock:%s", sku)
}

// SetStock writes the cached quantity for a SKU
func (c *Client) SetStock(ctx context.Context, sku string, quantity int) error {
	return c.rdb.Set(ctx, stockKey(sku), quantity, 0).Err()
}

// GetStock reads the cached quantity for a SKU; ErrCacheMiss if absent
func (c *Client) GetStock(ctx context.Context, sku string) (int, error) {
	val, err := c.rdb.Get(ctx, stockKey(sku)).Result()
	if err == redis.Nil {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}

// DeductStock atomically decrements the cached quantity using a Lua script.
// Returns the new quantity; ErrCacheMiss if the SKU is not cached; an
// insufficient-stock error if the cached balance is too low.
func (c *Client) DeductStock(ctx context.Context, sku string, quantity int) (int, error) {
	result, err := c.deductScript.Run(ctx, c.rdb, []string{stockKey(sku)}, quantity).Result()
	if err != nil {
		return 0, fmt.Errorf("deduct stock script failed: %w", err)
	}

	newQty, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	switch newQty {
	case cacheMiss:
		return 0, ErrCacheMiss
	case insufficient:
		return 0, models.NewInsufficientStock("insufficient cached stock for %s", sku)
	}
	return int(newQty), nil
}

// IncreaseStock atomically increments the cached quantity using a Lua script.
// Returns the new quantity; ErrCacheMiss if the SKU is not cached.
func (c *Client) IncreaseStock(ctx context.Context, sku string, quantity int) (int, error) {
	result, err := c.increaseScript.Run(ctx, c.rdb, []string{stockKey(sku)}, quantity).Result()
	if err != nil {
		return 0, fmt.Errorf("increase stock script failed: %w", err)
	}

	newQty, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	if newQty == cacheMiss {
		return 0, ErrCacheMiss
	}
	return int(newQty), nil
}

// AcquirePOLock serializes mutating operations for one purchase order. It
// polls for the lock up to maxWait and returns a release func on success, or
// a CONFLICT error once the bounded wait is exhausted. The TTL bounds the
// damage of a crashed holder.
func (c *Client) AcquirePOLock(ctx context.Context, poID string, ttl, maxWait time.Duration) (func(), error) {
	key := fmt.Sprintf("lock:po:%s", poID)
	deadline := time.Now().Add(maxWait)

	for {
		ok, err := c.rdb.SetNX(ctx, key, "1", ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("po lock acquire failed: %w", err)
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = c.rdb.Del(ctx, key).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, models.NewConflict("purchase order %s is locked by another operation", poID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}
