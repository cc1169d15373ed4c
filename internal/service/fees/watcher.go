// Package fees previews the fees of a listing while its terms are edited.
package fees

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"nft-storefront/internal/marketplace"
)

// Fetcher returns the fees for a set of listing terms.
type Fetcher interface {
	OrderFees(ctx context.Context, in marketplace.FeesInput) (marketplace.Fees, error)
}

type Result struct {
	Input marketplace.FeesInput
	Fees  marketplace.Fees
	Err   error
}

// Watcher fetches fees once the input stopped changing for the debounce
// delay. A new input cancels the pending or in-flight fetch and the result
// of a superseded fetch is never delivered.
type Watcher struct {
	fetch    Fetcher
	delay    time.Duration
	onResult func(Result)
	log      *zap.Logger

	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Watcher)

func WithLogger(log *zap.Logger) Option {
	return func(w *Watcher) { w.log = log }
}

func NewWatcher(fetch Fetcher, delay time.Duration, onResult func(Result), opts ...Option) *Watcher {
	w := &Watcher{fetch: fetch, delay: delay, onResult: onResult, log: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Update replaces the watched input. Incomplete inputs only cancel what is
// pending.
func (w *Watcher) Update(in marketplace.FeesInput) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.gen++
	w.stopLocked()
	if !complete(in) {
		return
	}
	gen := w.gen
	w.wg.Add(1)
	w.timer = time.AfterFunc(w.delay, func() {
		defer w.wg.Done()
		w.run(gen, in)
	})
}

// stopLocked must be called with mu held.
func (w *Watcher) stopLocked() {
	if w.timer != nil && w.timer.Stop() {
		w.wg.Done()
	}
	w.timer = nil
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Watcher) run(gen uint64, in marketplace.FeesInput) {
	w.mu.Lock()
	if gen != w.gen || w.closed {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	fees, err := w.fetch.OrderFees(ctx, in)

	w.mu.Lock()
	stale := gen != w.gen || w.closed
	w.mu.Unlock()
	if stale {
		w.log.Debug("dropping superseded fees", zap.Error(err))
		return
	}
	if err != nil {
		w.log.Warn("fetch fees", zap.Error(err))
	}
	w.onResult(Result{Input: in, Fees: fees, Err: err})
}

// Close cancels any pending fetch and waits for running callbacks to return.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.gen++
	w.stopLocked()
	w.mu.Unlock()
	w.wg.Wait()
}

func complete(in marketplace.FeesInput) bool {
	for _, s := range []string{in.CollectionAddress, in.TokenID, in.CurrencyID, in.Quantity, in.UnitPrice} {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return in.ChainID > 0
}

var hundred = decimal.NewFromInt(100)

// NetAmount is what the seller receives from amount once fees are taken,
// rounded down to the smallest unit.
func NetAmount(amount *big.Int, fees marketplace.Fees) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	total := decimal.NewFromBigInt(amount, 0)
	cut := total.Mul(fees.Percent).Div(hundred)
	return total.Sub(cut).Floor().BigInt()
}
