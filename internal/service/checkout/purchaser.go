package checkout

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"nft-storefront/internal/domain"
	"nft-storefront/internal/marketplace"
	"nft-storefront/internal/metrics"
	"nft-storefront/internal/wallet"
)

// PurchaseBuilder builds the batched purchase transaction of a set of offers.
type PurchaseBuilder interface {
	CreatePurchaseTransaction(ctx context.Context, chainID int64, account string, lines []domain.PurchaseLine) (*marketplace.TransactionRequest, error)
}

// Purchaser buys cart lines with the connected wallet on its current chain.
// It is the batch purchase procedure behind cart.Store.Checkout.
type Purchaser struct {
	api       PurchaseBuilder
	signer    wallet.Signer
	confirmer Waiter
	recorder  metrics.Recorder
	log       *zap.Logger
}

func NewPurchaser(api PurchaseBuilder, signer wallet.Signer, confirmer Waiter, recorder metrics.Recorder, log *zap.Logger) *Purchaser {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Purchaser{api: api, signer: signer, confirmer: confirmer, recorder: recorder, log: log}
}

func (p *Purchaser) BatchPurchase(ctx context.Context, lines []domain.PurchaseLine) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		p.recorder.IncCounter(metrics.CheckoutResult, map[string]string{"result": result})
		p.recorder.ObserveLatency(metrics.PurchaseDuration, time.Since(start), map[string]string{"result": result})
	}()

	chainID, err := p.signer.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read wallet chain: %w", err)
	}
	account := p.signer.Address().Hex()
	req, err := p.api.CreatePurchaseTransaction(ctx, chainID, account, lines)
	if err != nil {
		return err
	}
	tx, err := toWalletTransaction(*req, chainID)
	if err != nil {
		return err
	}
	hash, err := p.signer.SendTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("send purchase: %w", err)
	}
	p.log.Info("purchase sent",
		zap.Int64("chain_id", chainID),
		zap.String("tx", hash.Hex()),
		zap.Int("lines", len(lines)),
	)
	receipt, err := p.confirmer.Wait(ctx, chainID, hash)
	if err != nil {
		return fmt.Errorf("confirm purchase: %w", err)
	}
	storeReceipt(ctx, receipt)
	return nil
}

type receiptKey struct{}

// withReceipt makes the purchaser write the purchase receipt to dst.
func withReceipt(ctx context.Context, dst **types.Receipt) context.Context {
	return context.WithValue(ctx, receiptKey{}, dst)
}

func storeReceipt(ctx context.Context, r *types.Receipt) {
	if dst, ok := ctx.Value(receiptKey{}).(**types.Receipt); ok && dst != nil {
		*dst = r
	}
}

func toWalletTransaction(req marketplace.TransactionRequest, chainID int64) (wallet.Transaction, error) {
	if req.ChainID != 0 && req.ChainID != chainID {
		return wallet.Transaction{}, fmt.Errorf("%w: built for chain %d, wallet on %d", wallet.ErrInvalidTransaction, req.ChainID, chainID)
	}
	if !common.IsHexAddress(req.To) {
		return wallet.Transaction{}, fmt.Errorf("%w: to %q", wallet.ErrInvalidTransaction, req.To)
	}
	var data []byte
	if req.Data != "" && req.Data != "0x" {
		var err error
		if data, err = hexutil.Decode(req.Data); err != nil {
			return wallet.Transaction{}, fmt.Errorf("%w: data: %v", wallet.ErrInvalidTransaction, err)
		}
	}
	value := new(big.Int)
	if v := strings.TrimSpace(req.Value); v != "" {
		if _, ok := value.SetString(v, 0); !ok {
			return wallet.Transaction{}, fmt.Errorf("%w: value %q", wallet.ErrInvalidTransaction, req.Value)
		}
	}
	return wallet.Transaction{
		ChainID: chainID,
		To:      common.HexToAddress(req.To),
		Data:    data,
		Value:   value,
	}, nil
}
