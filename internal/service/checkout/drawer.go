package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"nft-storefront/internal/domain"
	cartsvc "nft-storefront/internal/service/cart"
)

// OfferLookup resolves offer ids to the offers they refer to.
type OfferLookup interface {
	Offers(ctx context.Context, ids []string) (map[string]domain.Offer, error)
}

// Drawer owns the checkout state of one account's cart.
type Drawer struct {
	deps   Deps
	offers OfferLookup
	log    *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	open  bool
	state State
	tx    *Transaction
}

func NewDrawer(deps Deps, offers OfferLookup, log *zap.Logger) *Drawer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Drawer{
		deps:   deps,
		offers: offers,
		log:    log,
		now:    time.Now,
		state:  State{Step: StepSelection},
	}
}

func (d *Drawer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Drawer) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Transaction returns the active transaction step, nil outside of it.
func (d *Drawer) Transaction() *Transaction {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Step != StepTransaction {
		return nil
	}
	return d.tx
}

// apply must be called with mu held.
func (d *Drawer) apply(e Event) error {
	next, err := Next(d.state, e)
	if err != nil {
		return err
	}
	if next.Step == StepSelection {
		d.tx = nil
	}
	d.log.Debug("drawer transition",
		zap.Stringer("from", d.state.Step),
		zap.Stringer("to", next.Step),
		zap.String("event", fmt.Sprintf("%T", e)),
	)
	d.state = next
	return nil
}

func (d *Drawer) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	_ = d.apply(Opened{})
}

func (d *Drawer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	_ = d.apply(Closed{})
}

// RouteChanged closes the drawer and drops any progress.
func (d *Drawer) RouteChanged() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	_ = d.apply(RouteChanged{})
}

func (d *Drawer) Back() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.apply(Back{})
}

// Selection loads the offers of the cart and groups them by chain.
func (d *Drawer) Selection(ctx context.Context) (Selection, error) {
	items := d.deps.Store.Items()
	offers, err := d.offers.Offers(ctx, offerIDs(items))
	if err != nil {
		return Selection{}, err
	}
	return GroupByChain(items, offers, d.now()), nil
}

// Select moves to the transaction step for the given cart offers of chainID.
func (d *Drawer) Select(ctx context.Context, chainID int64, ids []string) (*Transaction, error) {
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}
	sel, err := d.Selection(ctx)
	if err != nil {
		return nil, err
	}
	group, ok := sel.Group(chainID)
	if !ok {
		return nil, fmt.Errorf("no purchasable items on chain %d", chainID)
	}
	byID := make(map[string]Line, len(group.Lines))
	for _, l := range group.Lines {
		byID[l.Item.OfferID] = l
	}

	items := make([]domain.CartItem, 0, len(ids))
	offers := make(map[string]domain.Offer, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		l, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("offer %s is not a purchasable cart item on chain %d", id, chainID)
		}
		if _, dup := offers[id]; dup {
			continue
		}
		items = append(items, l.Item)
		offers[id] = l.Offer
	}

	tx, err := NewTransaction(d.deps, chainID, items, offers)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.apply(Selected{ChainID: chainID, Items: items}); err != nil {
		return nil, err
	}
	d.tx = tx
	return tx, nil
}

// Submit runs the purchase of the active transaction and moves to the
// success or error step.
func (d *Drawer) Submit(ctx context.Context) (State, error) {
	tx := d.Transaction()
	if tx == nil {
		return d.State(), fmt.Errorf("%w: submit outside transaction step", ErrInvalidTransition)
	}
	receipt, err := tx.Purchase(ctx)
	if errors.Is(err, cartsvc.ErrCartNotSaved) {
		d.log.Warn("purchase confirmed, cart not saved", zap.Int64("chain_id", tx.ChainID()), zap.Error(err))
		err = nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.log.Warn("checkout failed", zap.Int64("chain_id", tx.ChainID()), zap.Error(err))
		_ = d.apply(Failed{Err: err})
		return d.state, err
	}
	// Rejected when the drawer was reset while the purchase was in flight.
	_ = d.apply(Succeeded{Receipt: receipt})
	return d.state, nil
}

// Fail shows err in the error view.
func (d *Drawer) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.apply(Failed{Err: err})
}

func offerIDs(items []domain.CartItem) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.OfferID]; ok {
			continue
		}
		seen[it.OfferID] = struct{}{}
		out = append(out, it.OfferID)
	}
	return out
}
