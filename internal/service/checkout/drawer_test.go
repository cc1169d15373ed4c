package checkout

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nft-storefront/internal/domain"
	"nft-storefront/internal/marketplace"
	cartrepo "nft-storefront/internal/repository/cart"
	cartsvc "nft-storefront/internal/service/cart"
	"nft-storefront/internal/wallet"
)

const (
	account = "0xA11CE00000000000000000000000000000000001"

	offerEth1  = "8f9b1c54-3a4e-4d8f-9f0b-2a3c4d5e6f70"
	offerEth2  = "1d2e3f40-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
	offerUSDC  = "0b5c7d9e-1f2a-4b3c-9d4e-5f6a7b8c9d0e"
	offerOther = "2c3d4e5f-6a7b-4c8d-9e0f-1a2b3c4d5e6f"

	weth = "cur-weth"
	usdc = "cur-usdc"
)

type fakeSigner struct {
	mu      sync.Mutex
	chainID int64
	sent    []wallet.Transaction
	sendErr error
}

func (s *fakeSigner) Kind() wallet.Kind       { return wallet.KindInjected }
func (s *fakeSigner) Address() common.Address { return common.HexToAddress(account) }
func (s *fakeSigner) Close() error            { return nil }

func (s *fakeSigner) ChainID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainID, nil
}
func (s *fakeSigner) SwitchChain(_ context.Context, id int64) error {
	s.mu.Lock()
	s.chainID = id
	s.mu.Unlock()
	return nil
}
func (s *fakeSigner) SignMessage(_ context.Context, msg []byte) ([]byte, error) { return msg, nil }
func (s *fakeSigner) SendTransaction(_ context.Context, tx wallet.Transaction) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return common.Hash{}, s.sendErr
	}
	s.sent = append(s.sent, tx)
	return common.BigToHash(big.NewInt(int64(len(s.sent)))), nil
}

// fakeAPI approves a currency once its approval transaction was sent to the
// currency's spender address.
type fakeAPI struct {
	mu          sync.Mutex
	signer      *fakeSigner
	requests    map[string]string
	fetchErr    error
	purchaseErr error
	purchased   []domain.PurchaseLine
}

func spender(currencyID string) string {
	if currencyID == weth {
		return "0x00000000000000000000000000000000000000a1"
	}
	return "0x00000000000000000000000000000000000000a2"
}

const exchange = "0x00000000000000000000000000000000000000e1"

func (a *fakeAPI) FetchApprovals(_ context.Context, chainID int64, _ string, reqs []marketplace.ApprovalRequest) ([]marketplace.ApprovalStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	if a.requests == nil {
		a.requests = map[string]string{}
	}
	out := make([]marketplace.ApprovalStatus, 0, len(reqs))
	for _, r := range reqs {
		a.requests[r.CurrencyID] = r.Amount
		approved := false
		a.signer.mu.Lock()
		for _, tx := range a.signer.sent {
			if tx.To == common.HexToAddress(spender(r.CurrencyID)) {
				approved = true
			}
		}
		a.signer.mu.Unlock()
		st := marketplace.ApprovalStatus{CurrencyID: r.CurrencyID, Approved: approved}
		if !approved {
			st.Transaction = &marketplace.TransactionRequest{ChainID: chainID, To: spender(r.CurrencyID), Data: "0x095ea7b3", Value: "0"}
		}
		out = append(out, st)
	}
	return out, nil
}

func (a *fakeAPI) CreatePurchaseTransaction(_ context.Context, chainID int64, _ string, lines []domain.PurchaseLine) (*marketplace.TransactionRequest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.purchaseErr != nil {
		return nil, a.purchaseErr
	}
	a.purchased = lines
	return &marketplace.TransactionRequest{ChainID: chainID, To: exchange, Data: "0xdeadbeef", Value: "0x0"}, nil
}

type fakeWaiter struct {
	reverted bool
	err      error
}

func (w *fakeWaiter) Wait(_ context.Context, _ int64, hash common.Hash) (*types.Receipt, error) {
	if w.err != nil {
		return nil, w.err
	}
	r := &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}
	if w.reverted {
		r.Status = types.ReceiptStatusFailed
		return r, wallet.ErrTransactionReverted
	}
	return r, nil
}

type fakeOffers map[string]domain.Offer

func (f fakeOffers) Offers(_ context.Context, ids []string) (map[string]domain.Offer, error) {
	out := map[string]domain.Offer{}
	for _, id := range ids {
		if o, ok := f[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

func testOffers() fakeOffers {
	wei := func(s string) *big.Int { n, _ := new(big.Int).SetString(s, 10); return n }
	return fakeOffers{
		offerEth1:  {ID: offerEth1, ChainID: 1, UnitPrice: wei("1000000000000000000"), Currency: domain.Currency{ID: weth, Decimals: 18, Symbol: "WETH"}},
		offerEth2:  {ID: offerEth2, ChainID: 1, UnitPrice: wei("500000000000000000"), Currency: domain.Currency{ID: weth, Decimals: 18, Symbol: "WETH"}},
		offerUSDC:  {ID: offerUSDC, ChainID: 1, UnitPrice: wei("2500000"), Currency: domain.Currency{ID: usdc, Decimals: 6, Symbol: "USDC"}},
		offerOther: {ID: offerOther, ChainID: 137, UnitPrice: wei("1"), Currency: domain.Currency{ID: "cur-matic", Decimals: 18, Symbol: "MATIC"}},
	}
}

// flakyStorage fails writes once setErr is set.
type flakyStorage struct {
	cartrepo.Repository
	mu     sync.Mutex
	setErr error
}

func (s *flakyStorage) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Repository.Set(ctx, key, value)
}

type fixture struct {
	storage *flakyStorage
	store   *cartsvc.Store
	signer  *fakeSigner
	api     *fakeAPI
	waiter  *fakeWaiter
	drawer  *Drawer
}

func newFixture(t *testing.T, items ...domain.CartItem) fixture {
	t.Helper()
	waiter := &fakeWaiter{}
	signer := &fakeSigner{chainID: 137}
	api := &fakeAPI{signer: signer}
	purchaser := NewPurchaser(api, signer, waiter, nil, nil)
	storage := &flakyStorage{Repository: cartrepo.NewMemory()}
	store := cartsvc.NewStore(storage, purchaser)
	ctx := context.Background()
	require.NoError(t, store.SwitchAccount(ctx, account))
	for _, it := range items {
		require.NoError(t, store.AddItem(ctx, it))
	}
	deps := Deps{Store: store, Approvals: api, Signer: signer, Confirmer: waiter}
	return fixture{storage: storage, store: store, signer: signer, api: api, waiter: waiter, drawer: NewDrawer(deps, testOffers(), nil)}
}

func qty(n int) *int { return &n }

func TestDrawerOpenShowsSelection(t *testing.T) {
	f := newFixture(t, domain.CartItem{OfferID: offerEth1})
	f.drawer.Open()
	assert.True(t, f.drawer.IsOpen())
	assert.Equal(t, StepSelection, f.drawer.State().Step)
	assert.Nil(t, f.drawer.Transaction())
}

func TestDrawerSelectShowsExactlySelectedItems(t *testing.T) {
	f := newFixture(t,
		domain.CartItem{OfferID: offerEth1},
		domain.CartItem{OfferID: offerOther},
		domain.CartItem{OfferID: offerEth2, Quantity: qty(2)},
	)
	f.drawer.Open()
	tx, err := f.drawer.Select(context.Background(), 1, []string{offerEth1, offerEth2})
	require.NoError(t, err)

	st := f.drawer.State()
	assert.Equal(t, StepTransaction, st.Step)
	assert.Equal(t, int64(1), st.ChainID)
	assert.Equal(t, []domain.CartItem{{OfferID: offerEth1}, {OfferID: offerEth2, Quantity: qty(2)}}, st.Items)
	assert.Same(t, tx, f.drawer.Transaction())
}

func TestDrawerSelectRejectsOtherChainOrMissingItems(t *testing.T) {
	f := newFixture(t, domain.CartItem{OfferID: offerEth1}, domain.CartItem{OfferID: offerOther})
	f.drawer.Open()
	ctx := context.Background()

	_, err := f.drawer.Select(ctx, 1, []string{offerOther})
	assert.Error(t, err)
	_, err = f.drawer.Select(ctx, 1, []string{offerEth2})
	assert.Error(t, err)
	_, err = f.drawer.Select(ctx, 1, nil)
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Equal(t, StepSelection, f.drawer.State().Step)
}

func TestApprovalRequestsSumPerCurrency(t *testing.T) {
	f := newFixture(t,
		domain.CartItem{OfferID: offerEth1, Quantity: qty(3)},
		domain.CartItem{OfferID: offerEth2},
		domain.CartItem{OfferID: offerUSDC, Quantity: qty(2)},
	)
	tx, err := f.drawer.Select(context.Background(), 1, []string{offerEth1, offerEth2, offerUSDC})
	require.NoError(t, err)

	assert.Equal(t, []marketplace.ApprovalRequest{
		{CurrencyID: usdc, Amount: "5000000"},
		{CurrencyID: weth, Amount: "3500000000000000000"},
	}, tx.ApprovalRequests())
}

func TestPurchaseRequiresApproval(t *testing.T) {
	f := newFixture(t, domain.CartItem{OfferID: offerEth1})
	ctx := context.Background()
	tx, err := f.drawer.Select(ctx, 1, []string{offerEth1})
	require.NoError(t, err)

	_, err = tx.Purchase(ctx)
	assert.ErrorIs(t, err, ErrApprovalRequired)

	statuses, err := tx.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Approved)
	_, err = tx.Purchase(ctx)
	assert.ErrorIs(t, err, ErrApprovalRequired)
	assert.Empty(t, f.api.purchased)
}

func TestCheckoutEndToEnd(t *testing.T) {
	f := newFixture(t,
		domain.CartItem{OfferID: offerEth1},
		domain.CartItem{OfferID: offerUSDC, Quantity: qty(2)},
		domain.CartItem{OfferID: offerOther},
	)
	ctx := context.Background()
	var checkedOut []domain.CartItem
	f.store.OnCheckout(func(items []domain.CartItem) { checkedOut = items })

	f.drawer.Open()
	tx, err := f.drawer.Select(ctx, 1, []string{offerEth1, offerUSDC})
	require.NoError(t, err)
	_, err = tx.Refresh(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Approve(ctx, weth))
	require.NoError(t, tx.Approve(ctx, usdc))
	assert.True(t, tx.Approved())
	assert.Equal(t, int64(1), f.signer.chainID)

	st, err := f.drawer.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, st.Step)
	require.NotNil(t, st.Receipt)
	assert.Equal(t, common.BigToHash(big.NewInt(3)), st.Receipt.TxHash)

	assert.Equal(t, []domain.PurchaseLine{{OfferID: offerEth1, Quantity: 1}, {OfferID: offerUSDC, Quantity: 2}}, f.api.purchased)
	assert.Equal(t, []domain.CartItem{{OfferID: offerOther}}, f.store.Items())
	assert.Len(t, checkedOut, 2)

	f.drawer.Fail(errors.New("late error"))
	assert.Equal(t, StepError, f.drawer.State().Step)

	f.drawer.RouteChanged()
	assert.Equal(t, StepSelection, f.drawer.State().Step)
	assert.False(t, f.drawer.IsOpen())
}

func TestApproveAlreadyApprovedIsNoop(t *testing.T) {
	f := newFixture(t, domain.CartItem{OfferID: offerEth1})
	ctx := context.Background()
	tx, err := f.drawer.Select(ctx, 1, []string{offerEth1})
	require.NoError(t, err)
	require.NoError(t, tx.Approve(ctx, weth))
	require.NoError(t, tx.Approve(ctx, weth))
	assert.Len(t, f.signer.sent, 1)
	assert.ErrorIs(t, tx.Approve(ctx, "cur-unknown"), ErrUnknownCurrency)
}

func TestSubmitRevertedShowsError(t *testing.T) {
	f := newFixture(t, domain.CartItem{OfferID: offerEth1})
	ctx := context.Background()
	tx, err := f.drawer.Select(ctx, 1, []string{offerEth1})
	require.NoError(t, err)
	require.NoError(t, tx.Approve(ctx, weth))

	f.waiter.reverted = true
	st, err := f.drawer.Submit(ctx)
	assert.ErrorIs(t, err, wallet.ErrTransactionReverted)
	assert.Equal(t, StepError, st.Step)
	assert.ErrorIs(t, st.Err, wallet.ErrTransactionReverted)
	assert.Equal(t, []domain.CartItem{{OfferID: offerEth1}}, f.store.Items())

	require.NoError(t, f.drawer.Back())
	assert.Equal(t, StepSelection, f.drawer.State().Step)
}

func TestSubmitSucceedsWhenCartSaveFails(t *testing.T) {
	f := newFixture(t, domain.CartItem{OfferID: offerEth1}, domain.CartItem{OfferID: offerOther})
	ctx := context.Background()
	tx, err := f.drawer.Select(ctx, 1, []string{offerEth1})
	require.NoError(t, err)
	require.NoError(t, tx.Approve(ctx, weth))

	f.storage.mu.Lock()
	f.storage.setErr = errors.New("db down")
	f.storage.mu.Unlock()

	st, err := f.drawer.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, st.Step)
	require.NotNil(t, st.Receipt)
	assert.Equal(t, common.BigToHash(big.NewInt(2)), st.Receipt.TxHash)
	assert.Equal(t, []domain.CartItem{{OfferID: offerOther}}, f.store.Items())
}

func TestSubmitOutsideTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.drawer.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRefreshError(t *testing.T) {
	f := newFixture(t, domain.CartItem{OfferID: offerEth1})
	f.api.fetchErr = errors.New("api down")
	tx, err := f.drawer.Select(context.Background(), 1, []string{offerEth1})
	require.NoError(t, err)
	_, err = tx.Refresh(context.Background())
	assert.ErrorContains(t, err, "api down")
	assert.False(t, tx.Approved())
}

func TestToWalletTransaction(t *testing.T) {
	tx, err := toWalletTransaction(marketplace.TransactionRequest{ChainID: 1, To: exchange, Data: "0x01", Value: "42"}, 1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), tx.Value)
	assert.Equal(t, []byte{1}, tx.Data)

	_, err = toWalletTransaction(marketplace.TransactionRequest{ChainID: 5, To: exchange}, 1)
	assert.ErrorIs(t, err, wallet.ErrInvalidTransaction)
	_, err = toWalletTransaction(marketplace.TransactionRequest{To: "nope"}, 1)
	assert.ErrorIs(t, err, wallet.ErrInvalidTransaction)
	_, err = toWalletTransaction(marketplace.TransactionRequest{To: exchange, Value: "x"}, 1)
	assert.ErrorIs(t, err, wallet.ErrInvalidTransaction)
}
