package cart

import (
	"context"
	"strings"
)

// KeyPrefix namespaces every stored cart by account.
const KeyPrefix = "liteflow.cart."

// Key returns the storage key of an account's cart.
func Key(address string) string {
	return KeyPrefix + strings.ToLower(address)
}

// Repository is a string key/value store holding serialized carts.
type Repository interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}
