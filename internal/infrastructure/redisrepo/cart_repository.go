package redisrepo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	domain "github.com/namprobe/NekoViBE-sub001/internal/domain/cart"
)

// CartRepository keeps each user's cart as a Redis hash (product id ->
// quantity). Carts are working state, not part of the order transaction: a
// failed checkout leaves the cart intact, a committed one clears it
// afterwards.
type CartRepository struct {
	client *redis.Client
}

func NewCartRepository(client *redis.Client) *CartRepository {
	return &CartRepository{client: client}
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

// addItemScript applies a quantity delta atomically and removes the field
// when the resulting quantity drops to zero or below.
var addItemScript = redis.NewScript(`
local qty = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
if qty <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
end
return qty
`)

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	fields, err := r.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart redis: get %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}

	c := &domain.Cart{UserID: userID}
	for productID, raw := range fields {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("cart redis: corrupt quantity for %s/%s: %w", userID, productID, err)
		}
		if qty <= 0 {
			continue
		}
		c.Items = append(c.Items, domain.Item{ProductID: productID, Quantity: qty})
	}
	if len(c.Items) == 0 {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (r *CartRepository) AddItem(ctx context.Context, userID, productID string, delta int) error {
	if err := addItemScript.Run(ctx, r.client, []string{cartKey(userID)}, productID, delta).Err(); err != nil {
		return fmt.Errorf("cart redis: add item %s/%s: %w", userID, productID, err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("cart redis: clear %s: %w", userID, err)
	}
	return nil
}
