package cart

import (
	"context"
	"errors"
	"testing"

	"nft-storefront/internal/domain"
	cartrepo "nft-storefront/internal/repository/cart"
)

const (
	alice = "0xA11CE00000000000000000000000000000000001"
	bob   = "0xB0B0000000000000000000000000000000000002"

	offer1 = "8f9b1c54-3a4e-4d8f-9f0b-2a3c4d5e6f70"
	offer2 = "1d2e3f40-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
	offer3 = "0b5c7d9e-1f2a-4b3c-9d4e-5f6a7b8c9d0e"
)

type stubStorage struct {
	values  map[string]string
	getErr  error
	setErr  error
	setKeys []string
}

func newStubStorage() *stubStorage {
	return &stubStorage{values: map[string]string{}}
}

func (s *stubStorage) Get(_ context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *stubStorage) Set(_ context.Context, key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.setKeys = append(s.setKeys, key)
	s.values[key] = value
	return nil
}

type stubPurchaser struct {
	err   error
	lines []domain.PurchaseLine
	calls int
}

func (s *stubPurchaser) BatchPurchase(_ context.Context, lines []domain.PurchaseLine) error {
	s.calls++
	s.lines = lines
	return s.err
}

func intPtr(v int) *int {
	return &v
}

func ids(items []domain.CartItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.OfferID)
	}
	return out
}

func TestStoreAddItemDoesNotDedupe(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newStubStorage(), nil)
	if err := store.SwitchAccount(ctx, alice); err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.AddItem(ctx, domain.CartItem{OfferID: offer1}); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
	}

	items := store.Items()
	if len(items) != 2 || items[0].OfferID != offer1 || items[1].OfferID != offer1 {
		t.Fatalf("expected two entries for the same offer, got %+v", items)
	}

	if err := store.RemoveItem(ctx, offer1); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if store.HasItem(offer1) || len(store.Items()) != 0 {
		t.Fatalf("expected every entry removed, got %+v", store.Items())
	}
}

func TestStoreHasItemTracksMutations(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newStubStorage(), nil)
	if err := store.SwitchAccount(ctx, alice); err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}

	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer1})
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer2, Quantity: intPtr(3)})
	if !store.HasItem(offer1) || !store.HasItem(offer2) || store.HasItem(offer3) {
		t.Fatalf("unexpected membership for %v", ids(store.Items()))
	}

	if err := store.RemoveItem(ctx, offer3); err != nil {
		t.Fatalf("removing an absent item should not fail: %v", err)
	}
	_ = store.RemoveItem(ctx, offer1)
	if store.HasItem(offer1) || !store.HasItem(offer2) {
		t.Fatalf("unexpected membership after remove: %v", ids(store.Items()))
	}

	if err := store.ClearCart(ctx); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	for _, id := range []string{offer1, offer2, offer3} {
		if store.HasItem(id) {
			t.Fatalf("expected %s absent after clear", id)
		}
	}
}

func TestStorePersistsUnderAccountKey(t *testing.T) {
	ctx := context.Background()
	storage := newStubStorage()
	store := NewStore(storage, nil)
	if err := store.SwitchAccount(ctx, alice); err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}
	if err := store.AddItem(ctx, domain.CartItem{OfferID: offer1, Quantity: intPtr(2)}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	key := "liteflow.cart.0xa11ce00000000000000000000000000000000001"
	if got := storage.values[key]; got != `[{"offerId":"`+offer1+`","quantity":2}]` {
		t.Fatalf("unexpected stored value %q", got)
	}
	if store.Account() != "0xa11ce00000000000000000000000000000000001" {
		t.Fatalf("unexpected account %q", store.Account())
	}
}

func TestStoreWithoutAccountDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	storage := newStubStorage()
	store := NewStore(storage, nil)
	if err := store.AddItem(ctx, domain.CartItem{OfferID: offer1}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(storage.setKeys) != 0 {
		t.Fatalf("expected no writes, got %v", storage.setKeys)
	}
	if !store.HasItem(offer1) {
		t.Fatalf("expected item kept in memory")
	}
}

func TestStoreSwitchAccountReloadsFromKey(t *testing.T) {
	ctx := context.Background()
	storage := newStubStorage()
	storage.values[cartrepo.Key(bob)] = `[{"offerId":"` + offer3 + `"}]`

	store := NewStore(storage, nil)
	if err := store.SwitchAccount(ctx, alice); err != nil {
		t.Fatalf("SwitchAccount alice: %v", err)
	}
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer1})
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer2})

	if err := store.SwitchAccount(ctx, bob); err != nil {
		t.Fatalf("SwitchAccount bob: %v", err)
	}
	if got := ids(store.Items()); len(got) != 1 || got[0] != offer3 {
		t.Fatalf("expected only bob's items, got %v", got)
	}
	if storage.values[cartrepo.Key(bob)] != `[{"offerId":"`+offer3+`"}]` {
		t.Fatalf("bob's key overwritten with %q", storage.values[cartrepo.Key(bob)])
	}

	if err := store.SwitchAccount(ctx, alice); err != nil {
		t.Fatalf("SwitchAccount alice again: %v", err)
	}
	if got := ids(store.Items()); len(got) != 2 || got[0] != offer1 || got[1] != offer2 {
		t.Fatalf("expected alice's items restored, got %v", got)
	}
}

func TestStoreSwitchAccountEmptyWhenAbsent(t *testing.T) {
	ctx := context.Background()
	storage := newStubStorage()
	store := NewStore(storage, nil)
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer1})

	if err := store.SwitchAccount(ctx, bob); err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}
	if len(store.Items()) != 0 {
		t.Fatalf("expected empty cart, got %+v", store.Items())
	}
	if storage.values[cartrepo.Key(bob)] != "[]" {
		t.Fatalf("expected empty array persisted, got %q", storage.values[cartrepo.Key(bob)])
	}
}

func TestStoreSwitchAccountMalformedJSON(t *testing.T) {
	ctx := context.Background()
	storage := newStubStorage()
	storage.values[cartrepo.Key(bob)] = `{not json`

	store := NewStore(storage, nil)
	if err := store.SwitchAccount(ctx, alice); err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer1})

	err := store.SwitchAccount(ctx, bob)
	if !errors.Is(err, ErrCorruptCart) {
		t.Fatalf("expected ErrCorruptCart, got %v", err)
	}
	if store.Account() != "0xa11ce00000000000000000000000000000000001" || !store.HasItem(offer1) {
		t.Fatalf("store should be untouched after failed switch")
	}
}

func TestStoreSwitchAccountInvalidAddress(t *testing.T) {
	store := NewStore(newStubStorage(), nil)
	if err := store.SwitchAccount(context.Background(), "not-an-address"); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestStoreCheckoutRemovesItemsAndRunsCallbacks(t *testing.T) {
	ctx := context.Background()
	purchaser := &stubPurchaser{}
	store := NewStore(newStubStorage(), purchaser)
	if err := store.SwitchAccount(ctx, alice); err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer1})
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer2, Quantity: intPtr(4)})
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer3})

	var called [][]domain.CartItem
	store.OnCheckout(func(items []domain.CartItem) { called = append(called, items) })
	store.OnCheckout(func(items []domain.CartItem) { called = append(called, items) })

	selected := []domain.CartItem{{OfferID: offer1}, {OfferID: offer2, Quantity: intPtr(4)}}
	if err := store.Checkout(ctx, selected); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	want := []domain.PurchaseLine{{OfferID: offer1, Quantity: 1}, {OfferID: offer2, Quantity: 4}}
	if len(purchaser.lines) != 2 || purchaser.lines[0] != want[0] || purchaser.lines[1] != want[1] {
		t.Fatalf("unexpected purchase lines %+v", purchaser.lines)
	}
	if got := ids(store.Items()); len(got) != 1 || got[0] != offer3 {
		t.Fatalf("expected only unpurchased item left, got %v", got)
	}
	if len(called) != 2 || len(called[0]) != 2 {
		t.Fatalf("expected both callbacks with purchased items, got %+v", called)
	}
}

func TestStoreCheckoutFailureKeepsItems(t *testing.T) {
	ctx := context.Background()
	purchaser := &stubPurchaser{err: errors.New("user rejected transaction")}
	store := NewStore(newStubStorage(), purchaser)
	_ = store.SwitchAccount(ctx, alice)
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer1})

	called := false
	store.OnCheckout(func([]domain.CartItem) { called = true })

	err := store.Checkout(ctx, []domain.CartItem{{OfferID: offer1}})
	if err == nil || err.Error() != "user rejected transaction" {
		t.Fatalf("expected purchase error, got %v", err)
	}
	if !store.HasItem(offer1) || called {
		t.Fatalf("nothing should change on failure")
	}
}

func TestStoreCheckoutSaveFailureAfterPurchase(t *testing.T) {
	ctx := context.Background()
	storage := newStubStorage()
	purchaser := &stubPurchaser{}
	store := NewStore(storage, purchaser)
	_ = store.SwitchAccount(ctx, alice)
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer1})
	_ = store.AddItem(ctx, domain.CartItem{OfferID: offer2})

	called := 0
	store.OnCheckout(func([]domain.CartItem) { called++ })

	storage.setErr = errors.New("db down")
	err := store.Checkout(ctx, []domain.CartItem{{OfferID: offer1}})
	if !errors.Is(err, ErrCartNotSaved) {
		t.Fatalf("expected ErrCartNotSaved, got %v", err)
	}
	if purchaser.calls != 1 || called != 1 {
		t.Fatalf("purchase and callbacks should run once, got calls=%d callbacks=%d", purchaser.calls, called)
	}
	if got := ids(store.Items()); len(got) != 1 || got[0] != offer2 {
		t.Fatalf("purchased item should leave the cart, got %v", got)
	}
}

func TestStoreCheckoutRequiresItems(t *testing.T) {
	store := NewStore(newStubStorage(), &stubPurchaser{})
	if err := store.Checkout(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty checkout")
	}
}

func TestServiceAddRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := New(newStubStorage(), nil, nil)

	items, err := svc.Add(ctx, alice, AddInput{OfferID: offer1})
	if err != nil || len(items) != 1 {
		t.Fatalf("Add: items=%v err=%v", items, err)
	}
	if _, err := svc.Add(ctx, alice, AddInput{OfferID: offer1}); !errors.Is(err, ErrAlreadyInCart) {
		t.Fatalf("expected ErrAlreadyInCart, got %v", err)
	}
	has, err := svc.Has(ctx, alice, offer1)
	if err != nil || !has {
		t.Fatalf("expected offer in cart, has=%v err=%v", has, err)
	}
}

func TestServiceAddValidation(t *testing.T) {
	svc := New(newStubStorage(), nil, nil)
	if _, err := svc.Add(context.Background(), alice, AddInput{OfferID: "nope"}); !errors.Is(err, domain.ErrInvalidOfferID) {
		t.Fatalf("expected ErrInvalidOfferID, got %v", err)
	}
	if _, err := svc.Add(context.Background(), alice, AddInput{OfferID: offer1, Quantity: intPtr(0)}); err == nil || err.Error() != "quantity must be positive" {
		t.Fatalf("expected quantity error, got %v", err)
	}
}

func TestServiceRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	svc := New(newStubStorage(), nil, nil)
	_, _ = svc.Add(ctx, alice, AddInput{OfferID: offer1})
	_, _ = svc.Add(ctx, alice, AddInput{OfferID: offer2})

	if err := svc.Remove(ctx, alice, offer1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	items, _ := svc.Items(ctx, alice)
	if got := ids(items); len(got) != 1 || got[0] != offer2 {
		t.Fatalf("unexpected items %v", got)
	}
	if err := svc.Clear(ctx, alice); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	items, _ = svc.Items(ctx, alice)
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %v", items)
	}
}

func TestServiceStorageError(t *testing.T) {
	storage := newStubStorage()
	storage.getErr = errors.New("db down")
	svc := New(storage, nil, nil)
	if _, err := svc.Items(context.Background(), alice); err == nil {
		t.Fatalf("expected storage error")
	}
}

func TestServiceReadsDoNotWrite(t *testing.T) {
	ctx := context.Background()
	storage := newStubStorage()
	storage.values[cartrepo.Key(alice)] = `[{"offerId":"` + offer1 + `"}]`
	storage.setErr = errors.New("read-only database")
	svc := New(storage, nil, nil)

	items, err := svc.Items(ctx, alice)
	if err != nil || len(items) != 1 {
		t.Fatalf("Items: %v %+v", err, items)
	}
	ok, err := svc.Has(ctx, alice, offer1)
	if err != nil || !ok {
		t.Fatalf("Has: %v %v", err, ok)
	}
	if len(storage.setKeys) != 0 {
		t.Fatalf("reads must not write, got %v", storage.setKeys)
	}
}
