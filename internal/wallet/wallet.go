// Package wallet signs messages and sends transactions for the connected
// account. Every supported wallet kind sits behind the same Signer interface.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Kind tags the wallet connector an account signed in with.
type Kind string

const (
	KindInjected      Kind = "injected"
	KindWalletConnect Kind = "walletconnect"
	KindCoinbase      Kind = "coinbase"
	KindEmail         Kind = "email"
)

var (
	ErrUnknownKind         = errors.New("unknown wallet kind")
	ErrChainNotConfigured  = errors.New("chain not configured")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrInvalidTransaction  = errors.New("invalid transaction request")
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindInjected, KindWalletConnect, KindCoinbase, KindEmail:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Remote reports whether the kind signs through an external bridge rather
// than a key held by this process.
func (k Kind) Remote() bool {
	return k != KindInjected
}

// Transaction is an unsigned call the wallet sends on behalf of the account.
type Transaction struct {
	ChainID int64
	To      common.Address
	Data    []byte
	Value   *big.Int
}

// Signer is the single capability set the checkout needs from any wallet.
type Signer interface {
	Kind() Kind
	Address() common.Address
	ChainID(ctx context.Context) (int64, error)
	SwitchChain(ctx context.Context, chainID int64) error
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
	SendTransaction(ctx context.Context, tx Transaction) (common.Hash, error)
	Close() error
}

// EnsureChain switches s to chainID when it is on another chain.
func EnsureChain(ctx context.Context, s Signer, chainID int64) error {
	current, err := s.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read wallet chain: %w", err)
	}
	if current == chainID {
		return nil
	}
	if err := s.SwitchChain(ctx, chainID); err != nil {
		return fmt.Errorf("switch wallet to chain %d: %w", chainID, err)
	}
	return nil
}
