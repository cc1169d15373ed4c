package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReceiptReader is the part of ethclient.Client the Confirmer polls.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Confirmer waits for transactions to be mined.
type Confirmer struct {
	readers  map[int64]ReceiptReader
	interval time.Duration
}

func NewConfirmer(readers map[int64]ReceiptReader, interval time.Duration) *Confirmer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Confirmer{readers: readers, interval: interval}
}

// Wait polls until hash is mined on chainID or ctx is done. A receipt with a
// failed status is returned together with ErrTransactionReverted.
func (c *Confirmer) Wait(ctx context.Context, chainID int64, hash common.Hash) (*types.Receipt, error) {
	reader, ok := c.readers[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrChainNotConfigured, chainID)
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		receipt, err := reader.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, hash.Hex())
			}
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
