package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"nft-storefront/internal/domain"
	cartrepo "nft-storefront/internal/repository/cart"
)

var (
	// ErrCorruptCart is returned when an account's stored cart is not a JSON array of items.
	ErrCorruptCart = errors.New("stored cart is malformed")
	// ErrCartNotSaved is returned by Checkout when the purchase went through
	// but the updated cart could not be written back to storage.
	ErrCartNotSaved = errors.New("purchase completed but cart not saved")
)

// Storage persists serialized carts by key.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// BatchPurchaser buys every line in a single transaction.
type BatchPurchaser interface {
	BatchPurchase(ctx context.Context, lines []domain.PurchaseLine) error
}

// Store holds the cart of the active account. Every change is written back to
// storage under the account's key. Without an active account the items live
// in memory only.
type Store struct {
	mu        sync.Mutex
	storage   Storage
	purchaser BatchPurchaser
	account   string
	items     []domain.CartItem
	callbacks []func([]domain.CartItem)
}

func NewStore(storage Storage, purchaser BatchPurchaser) *Store {
	return &Store{storage: storage, purchaser: purchaser}
}

// Account returns the lower-cased address of the active account, "" when none.
func (s *Store) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// SwitchAccount makes address the active account and reloads its cart from
// storage, discarding the in-memory items of the previous account. The
// loaded cart is written back to the account's key. On a storage or parse
// failure the store is left untouched.
func (s *Store) SwitchAccount(ctx context.Context, address string) error {
	return s.switchAccount(ctx, address, true)
}

// LoadAccount is SwitchAccount without the write-back, for read-only use.
func (s *Store) LoadAccount(ctx context.Context, address string) error {
	return s.switchAccount(ctx, address, false)
}

func (s *Store) switchAccount(ctx context.Context, address string, writeBack bool) error {
	account, err := domain.NormalizeAddress(address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, account)
	if err != nil {
		return err
	}
	s.account = account
	s.items = items
	if !writeBack {
		return nil
	}
	return s.persist(ctx)
}

func (s *Store) load(ctx context.Context, account string) ([]domain.CartItem, error) {
	raw, ok, err := s.storage.Get(ctx, cartrepo.Key(account))
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return []domain.CartItem{}, nil
	}
	var items []domain.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}
	if items == nil {
		items = []domain.CartItem{}
	}
	return items, nil
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) error {
	if s.account == "" {
		return nil
	}
	raw, err := json.Marshal(s.items)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, cartrepo.Key(s.account), string(raw)); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Items returns a copy of the cart in insertion order.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// AddItem appends item. It does not dedupe: callers check HasItem first.
func (s *Store) AddItem(ctx context.Context, item domain.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return s.persist(ctx)
}

// RemoveItem drops every entry for offerID. Absent ids are not an error.
func (s *Store) RemoveItem(ctx context.Context, offerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = without(s.items, map[string]struct{}{offerID: {}})
	return s.persist(ctx)
}

func (s *Store) HasItem(offerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.OfferID == offerID {
			return true
		}
	}
	return false
}

func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []domain.CartItem{}
	return s.persist(ctx)
}

// OnCheckout registers fn to run after every successful checkout with the
// purchased items.
func (s *Store) OnCheckout(fn func([]domain.CartItem)) {
	s.mu.Lock()
	s.callbacks = append(s.callbacks, fn)
	s.mu.Unlock()
}

// Checkout purchases items in one batch, removes them from the cart and runs
// the checkout callbacks. Nothing is removed when the purchase fails. A
// storage failure after the purchase is reported as ErrCartNotSaved.
func (s *Store) Checkout(ctx context.Context, items []domain.CartItem) error {
	if len(items) == 0 {
		return errors.New("no items to checkout")
	}
	if s.purchaser == nil {
		return errors.New("purchaser unavailable")
	}

	lines := make([]domain.PurchaseLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, domain.PurchaseLine{OfferID: it.OfferID, Quantity: it.QuantityOrDefault()})
	}
	if err := s.purchaser.BatchPurchase(ctx, lines); err != nil {
		return err
	}

	s.mu.Lock()
	processed := make(map[string]struct{}, len(items))
	for _, it := range items {
		processed[it.OfferID] = struct{}{}
	}
	s.items = without(s.items, processed)
	err := s.persist(ctx)
	callbacks := append([]func([]domain.CartItem){}, s.callbacks...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(items)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCartNotSaved, err)
	}
	return nil
}

func without(items []domain.CartItem, ids map[string]struct{}) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		if _, drop := ids[it.OfferID]; drop {
			continue
		}
		out = append(out, it)
	}
	return out
}
