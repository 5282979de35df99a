package repository

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"strconv"
	"time"
)

const (
	// cart:{session} -> hash {product_size_id: quantity}
	keyCart = "cart:%s"

	cartTTL = 7 * 24 * time.Hour
)

// CartRepository keeps carts in redis
type CartRepository struct {
	rdb *redis.Client
}

// NewCartRepository creates new CartRepository instance
func NewCartRepository(rdb *redis.Client) *CartRepository {
	return &CartRepository{rdb: rdb}
}

// Add increments quantity of product size in cart and returns new quantity
func (cr *CartRepository) Add(ctx context.Context, session string, productSizeID int64, qty int) (int, error) {
	key := fmt.Sprintf(keyCart, session)

	var incr *redis.IntCmd
	_, err := cr.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, strconv.FormatInt(productSizeID, 10), int64(qty))
		pipe.Expire(ctx, key, cartTTL)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return int(incr.Val()), nil
}

// Quantities returns product size quantities in cart, empty map if cart does not exist
func (cr *CartRepository) Quantities(ctx context.Context, session string) (map[int64]int, error) {
	raw, err := cr.rdb.HGetAll(ctx, fmt.Sprintf(keyCart, session)).Result()
	if err != nil {
		return nil, err
	}

	items := make(map[int64]int, len(raw))
	for field, val := range raw {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(val)
		if err != nil || qty <= 0 {
			continue
		}
		items[id] = qty
	}

	return items, nil
}

// Clear removes cart. Clearing missing cart is not an error.
func (cr *CartRepository) Clear(ctx context.Context, session string) error {
	return cr.rdb.Del(ctx, fmt.Sprintf(keyCart, session)).Err()
}
