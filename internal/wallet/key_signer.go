package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Backend is the part of ethclient.Client a KeySigner uses.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeySigner signs with a private key held in process and sends through the
// configured chain backends.
type KeySigner struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	backends map[int64]Backend

	mu      sync.Mutex
	chainID int64
}

type KeyOption func(*KeySigner)

// WithChain selects the initial chain. It defaults to the lowest configured id.
func WithChain(chainID int64) KeyOption {
	return func(s *KeySigner) { s.chainID = chainID }
}

func NewKeySigner(privateKeyHex string, backends map[int64]Backend, opts ...KeyOption) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	s := &KeySigner{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		backends: backends,
	}
	for id := range backends {
		if s.chainID == 0 || id < s.chainID {
			s.chainID = id
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *KeySigner) Kind() Kind              { return KindInjected }
func (s *KeySigner) Address() common.Address { return s.address }

func (s *KeySigner) ChainID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chainID == 0 {
		return 0, ErrChainNotConfigured
	}
	return s.chainID, nil
}

func (s *KeySigner) SwitchChain(_ context.Context, chainID int64) error {
	if _, ok := s.backends[chainID]; !ok {
		return fmt.Errorf("%w: %d", ErrChainNotConfigured, chainID)
	}
	s.mu.Lock()
	s.chainID = chainID
	s.mu.Unlock()
	return nil
}

// SignMessage produces an EIP-191 personal signature with v in {27, 28}.
func (s *KeySigner) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SendTransaction signs tx as an EIP-1559 transaction and broadcasts it.
func (s *KeySigner) SendTransaction(ctx context.Context, tx Transaction) (common.Hash, error) {
	backend, ok := s.backends[tx.ChainID]
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrChainNotConfigured, tx.ChainID)
	}
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	tip, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas tip: %w", err)
	}
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee, big.NewInt(2)))

	to := tx.To
	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Value: value,
		Data:  tx.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	chainID := big.NewInt(tx.ChainID)
	signed, err := types.SignNewTx(s.key, types.LatestSignerForChainID(chainID), &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      tx.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return signed.Hash(), nil
}

func (s *KeySigner) Close() error { return nil }
