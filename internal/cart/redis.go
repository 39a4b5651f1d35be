// Package cart implements the cart-provider boundary on Redis. Each cart is
// a hash keyed by user, mapping variant id to quantity; checkout reads it
// and clears it exactly once after a successful charge.
package cart

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/shopkit/order-fulfillment/internal/entity"
)

type RedisCartProvider struct {
	client *redis.Client
}

// NewRedisCartProvider creates a cart provider on an existing Redis client.
func NewRedisCartProvider(client *redis.Client) *RedisCartProvider {
	return &RedisCartProvider{client: client}
}

func cartKey(userID string) string {
	return "cart:" + userID
}

// Get reads the user's cart. A missing key is an empty cart, not an error.
func (p *RedisCartProvider) Get(ctx context.Context, userID string) (*entity.Cart, error) {
	key := cartKey(userID)

	fields, err := p.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart %s: %w", key, err)
	}

	cart := &entity.Cart{ID: key, UserID: userID}
	for variantID, qty := range fields {
		quantity, err := strconv.Atoi(qty)
		if err != nil {
			return nil, fmt.Errorf("corrupt quantity %q in cart %s: %w", qty, key, err)
		}
		if quantity <= 0 {
			continue
		}
		cart.Lines = append(cart.Lines, entity.CartLine{VariantID: variantID, Quantity: quantity})
	}
	return cart, nil
}

// Clear deletes the cart's lines.
func (p *RedisCartProvider) Clear(ctx context.Context, cartID string) error {
	if err := p.client.Del(ctx, cartID).Err(); err != nil {
		return fmt.Errorf("failed to clear cart %s: %w", cartID, err)
	}
	return nil
}

// AddItem sets the quantity for a variant in the user's cart. Exposed for
// the demo HTTP surface; the checkout core only reads and clears.
func (p *RedisCartProvider) AddItem(ctx context.Context, userID, variantID string, quantity int) error {
	if quantity <= 0 {
		return p.client.HDel(ctx, cartKey(userID), variantID).Err()
	}
	return p.client.HSet(ctx, cartKey(userID), variantID, quantity).Err()
}
