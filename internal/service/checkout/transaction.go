package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"nft-storefront/internal/domain"
	"nft-storefront/internal/marketplace"
	cartsvc "nft-storefront/internal/service/cart"
	"nft-storefront/internal/wallet"
)

var (
	ErrApprovalRequired = errors.New("currency approval required")
	ErrUnknownCurrency  = errors.New("currency not part of this checkout")
)

// Approvals reports and builds the token allowances the exchange needs.
type Approvals interface {
	FetchApprovals(ctx context.Context, chainID int64, account string, reqs []marketplace.ApprovalRequest) ([]marketplace.ApprovalStatus, error)
}

// Waiter blocks until a transaction is mined.
type Waiter interface {
	Wait(ctx context.Context, chainID int64, hash common.Hash) (*types.Receipt, error)
}

// Deps are the collaborators shared by every checkout of an account.
type Deps struct {
	Store     *cartsvc.Store
	Approvals Approvals
	Signer    wallet.Signer
	Confirmer Waiter
}

// Transaction is the second drawer step for one chain and item subset.
type Transaction struct {
	deps    Deps
	chainID int64
	items   []domain.CartItem
	offers  map[string]domain.Offer

	// approveMu serializes approvals so two currencies are never approved
	// concurrently from the same account.
	approveMu sync.Mutex

	mu       sync.RWMutex
	statuses map[string]marketplace.ApprovalStatus
}

func NewTransaction(deps Deps, chainID int64, items []domain.CartItem, offers map[string]domain.Offer) (*Transaction, error) {
	if len(items) == 0 {
		return nil, ErrEmptySelection
	}
	for _, it := range items {
		offer, ok := offers[it.OfferID]
		if !ok {
			return nil, fmt.Errorf("offer %s: %w", it.OfferID, domain.ErrNotFound)
		}
		if offer.ChainID != chainID {
			return nil, fmt.Errorf("offer %s is on chain %d, not %d", it.OfferID, offer.ChainID, chainID)
		}
	}
	return &Transaction{
		deps:    deps,
		chainID: chainID,
		items:   append([]domain.CartItem(nil), items...),
		offers:  offers,
	}, nil
}

func (t *Transaction) ChainID() int64 { return t.chainID }

func (t *Transaction) Items() []domain.CartItem {
	return append([]domain.CartItem(nil), t.items...)
}

// ApprovalRequests returns one request per currency, sorted by currency id,
// for the sum of unit price times quantity of its items.
func (t *Transaction) ApprovalRequests() []marketplace.ApprovalRequest {
	totals := map[string]*big.Int{}
	for _, it := range t.items {
		offer := t.offers[it.OfferID]
		price := offer.UnitPrice
		if price == nil {
			price = new(big.Int)
		}
		line := new(big.Int).Mul(price, big.NewInt(int64(it.QuantityOrDefault())))
		sum, ok := totals[offer.Currency.ID]
		if !ok {
			sum = new(big.Int)
			totals[offer.Currency.ID] = sum
		}
		sum.Add(sum, line)
	}
	out := make([]marketplace.ApprovalRequest, 0, len(totals))
	for id, amount := range totals {
		out = append(out, marketplace.ApprovalRequest{CurrencyID: id, Amount: amount.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrencyID < out[j].CurrencyID })
	return out
}

// Refresh fetches the approval status of every currency.
func (t *Transaction) Refresh(ctx context.Context) ([]marketplace.ApprovalStatus, error) {
	reqs := t.ApprovalRequests()
	account := t.deps.Signer.Address().Hex()
	results := make([]marketplace.ApprovalStatus, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			statuses, err := t.deps.Approvals.FetchApprovals(gctx, t.chainID, account, []marketplace.ApprovalRequest{req})
			if err != nil {
				return err
			}
			results[i] = marketplace.ApprovalStatus{CurrencyID: req.CurrencyID}
			for _, s := range statuses {
				if s.CurrencyID == req.CurrencyID {
					results[i] = s
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch approvals: %w", err)
	}

	statuses := make(map[string]marketplace.ApprovalStatus, len(results))
	for _, s := range results {
		statuses[s.CurrencyID] = s
	}
	t.mu.Lock()
	t.statuses = statuses
	t.mu.Unlock()
	return results, nil
}

// Approved reports whether the last refresh showed every currency approved.
func (t *Transaction) Approved() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.statuses == nil {
		return false
	}
	for _, req := range t.ApprovalRequests() {
		if !t.statuses[req.CurrencyID].Approved {
			return false
		}
	}
	return true
}

// Approve sends the allowance transaction of currencyID, waits for it to be
// mined and refreshes the approval status before returning.
func (t *Transaction) Approve(ctx context.Context, currencyID string) error {
	t.approveMu.Lock()
	defer t.approveMu.Unlock()

	t.mu.RLock()
	status, ok := t.statuses[currencyID]
	t.mu.RUnlock()
	if !ok {
		if _, err := t.Refresh(ctx); err != nil {
			return err
		}
		t.mu.RLock()
		status, ok = t.statuses[currencyID]
		t.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCurrency, currencyID)
		}
	}
	if status.Approved {
		return nil
	}
	if status.Transaction == nil {
		return fmt.Errorf("approve %s: no approval transaction", currencyID)
	}

	if err := wallet.EnsureChain(ctx, t.deps.Signer, t.chainID); err != nil {
		return err
	}
	tx, err := toWalletTransaction(*status.Transaction, t.chainID)
	if err != nil {
		return err
	}
	hash, err := t.deps.Signer.SendTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("approve %s: %w", currencyID, err)
	}
	if _, err := t.deps.Confirmer.Wait(ctx, t.chainID, hash); err != nil {
		return fmt.Errorf("approve %s: %w", currencyID, err)
	}
	_, err = t.Refresh(ctx)
	return err
}

// Purchase buys every item once all currencies are approved and removes
// them from the cart. It returns the receipt of the purchase, also alongside
// cart.ErrCartNotSaved when only the cart write failed.
func (t *Transaction) Purchase(ctx context.Context) (*types.Receipt, error) {
	if !t.Approved() {
		return nil, ErrApprovalRequired
	}
	if err := wallet.EnsureChain(ctx, t.deps.Signer, t.chainID); err != nil {
		return nil, err
	}
	var receipt *types.Receipt
	ctx = withReceipt(ctx, &receipt)
	if err := t.deps.Store.Checkout(ctx, t.items); err != nil {
		if errors.Is(err, cartsvc.ErrCartNotSaved) {
			return receipt, err
		}
		return nil, err
	}
	return receipt, nil
}
