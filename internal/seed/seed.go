package seed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"nft-storefront/internal/domain"
	cartrepo "nft-storefront/internal/repository/cart"
)

// DemoAccount is the first development account of local Hardhat/Anvil nodes.
const DemoAccount = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

type cartSeed struct {
	Account string
	Items   []domain.CartItem
}

// DemoCart returns the cart seeded for account, one entry per offer id.
func DemoCart(account string, offerIDs []string) (cartSeed, error) {
	normalized, err := domain.NormalizeAddress(account)
	if err != nil {
		return cartSeed{}, err
	}
	items := make([]domain.CartItem, 0, len(offerIDs))
	for _, id := range offerIDs {
		if err := domain.ValidateOfferID(id); err != nil {
			return cartSeed{}, fmt.Errorf("offer %q: %w", id, err)
		}
		items = append(items, domain.CartItem{OfferID: id})
	}
	return cartSeed{Account: normalized, Items: items}, nil
}

// CartWriter stores a serialized cart under its key.
type CartWriter interface {
	Set(ctx context.Context, key, value string) error
}

// Apply writes a demo cart for manual testing. Re-running it replaces the
// account's cart.
func Apply(ctx context.Context, pool *pgxpool.Pool, account string, offerIDs []string) error {
	c, err := DemoCart(account, offerIDs)
	if err != nil {
		return fmt.Errorf("demo cart: %w", err)
	}
	return Write(ctx, cartrepo.NewPostgres(pool), c)
}

// Write stores c under the account's cart key.
func Write(ctx context.Context, carts CartWriter, c cartSeed) error {
	raw, err := json.Marshal(c.Items)
	if err != nil {
		return err
	}
	if err := carts.Set(ctx, cartrepo.Key(c.Account), string(raw)); err != nil {
		return fmt.Errorf("upsert cart %s: %w", c.Account, err)
	}
	return nil
}
