package cart

import (
	"context"
	"errors"
	"strings"

	"nft-storefront/internal/domain"
	"nft-storefront/internal/metrics"
)

// ErrAlreadyInCart is returned by Service.Add when the offer is already in the cart.
var ErrAlreadyInCart = errors.New("offer already in cart")

// Service opens account-scoped stores for request handlers and the CLI.
type Service struct {
	storage   Storage
	purchaser BatchPurchaser
	recorder  metrics.Recorder
}

func New(storage Storage, purchaser BatchPurchaser, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Service{storage: storage, purchaser: purchaser, recorder: recorder}
}

type AddInput struct {
	OfferID  string `json:"offerId" binding:"required,uuid"`
	Quantity *int   `json:"quantity,omitempty" binding:"omitempty,min=1"`
}

// Open returns a store switched to address.
func (s *Service) Open(ctx context.Context, address string) (*Store, error) {
	store := NewStore(s.storage, s.purchaser)
	if err := store.SwitchAccount(ctx, address); err != nil {
		return nil, err
	}
	return store, nil
}

// View returns a store loaded for address without writing to storage.
func (s *Service) View(ctx context.Context, address string) (*Store, error) {
	store := NewStore(s.storage, s.purchaser)
	if err := store.LoadAccount(ctx, address); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Service) Items(ctx context.Context, address string) ([]domain.CartItem, error) {
	store, err := s.View(ctx, address)
	if err != nil {
		return nil, err
	}
	return store.Items(), nil
}

// Add puts an offer in the cart unless it is already there.
func (s *Service) Add(ctx context.Context, address string, in AddInput) ([]domain.CartItem, error) {
	offerID := strings.ToLower(strings.TrimSpace(in.OfferID))
	if err := domain.ValidateOfferID(offerID); err != nil {
		return nil, err
	}
	if in.Quantity != nil && *in.Quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}
	store, err := s.Open(ctx, address)
	if err != nil {
		return nil, err
	}
	if store.HasItem(offerID) {
		return nil, ErrAlreadyInCart
	}
	err = store.AddItem(ctx, domain.CartItem{OfferID: offerID, Quantity: in.Quantity})
	s.record("add", err)
	if err != nil {
		return nil, err
	}
	return store.Items(), nil
}

func (s *Service) Has(ctx context.Context, address, offerID string) (bool, error) {
	store, err := s.View(ctx, address)
	if err != nil {
		return false, err
	}
	return store.HasItem(strings.ToLower(strings.TrimSpace(offerID))), nil
}

func (s *Service) Remove(ctx context.Context, address, offerID string) error {
	store, err := s.Open(ctx, address)
	if err != nil {
		return err
	}
	err = store.RemoveItem(ctx, strings.ToLower(strings.TrimSpace(offerID)))
	s.record("remove", err)
	return err
}

func (s *Service) Clear(ctx context.Context, address string) error {
	store, err := s.Open(ctx, address)
	if err != nil {
		return err
	}
	err = store.ClearCart(ctx)
	s.record("clear", err)
	return err
}

func (s *Service) record(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.recorder.IncCounter(metrics.CartMutation, map[string]string{"kind": kind, "result": result})
}
