package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Caller is the JSON-RPC surface of a wallet bridge.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// RemoteSigner forwards signing to a wallet bridge (WalletConnect relay,
// Coinbase Wallet SDK or an email-based custodial wallet) speaking the
// standard wallet JSON-RPC methods.
type RemoteSigner struct {
	kind    Kind
	address common.Address
	rpc     Caller
}

// DialRemote connects to the bridge at url and reads the connected account.
func DialRemote(ctx context.Context, kind Kind, url string) (*RemoteSigner, error) {
	if !kind.Remote() {
		return nil, fmt.Errorf("%w: %s is not a remote wallet", ErrUnknownKind, kind)
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet bridge: %w", err)
	}
	s, err := NewRemoteSigner(ctx, kind, client)
	if err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func NewRemoteSigner(ctx context.Context, kind Kind, caller Caller) (*RemoteSigner, error) {
	var accounts []common.Address
	if err := caller.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("wallet bridge returned no account")
	}
	return &RemoteSigner{kind: kind, address: accounts[0], rpc: caller}, nil
}

func (s *RemoteSigner) Kind() Kind              { return s.kind }
func (s *RemoteSigner) Address() common.Address { return s.address }

func (s *RemoteSigner) ChainID(ctx context.Context) (int64, error) {
	var id hexutil.Big
	if err := s.rpc.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}
	return id.ToInt().Int64(), nil
}

func (s *RemoteSigner) SwitchChain(ctx context.Context, chainID int64) error {
	param := map[string]string{"chainId": hexutil.EncodeBig(big.NewInt(chainID))}
	if err := s.rpc.CallContext(ctx, nil, "wallet_switchEthereumChain", param); err != nil {
		return fmt.Errorf("wallet_switchEthereumChain: %w", err)
	}
	return nil
}

func (s *RemoteSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	var sig hexutil.Bytes
	if err := s.rpc.CallContext(ctx, &sig, "personal_sign", hexutil.Encode(message), s.address); err != nil {
		return nil, fmt.Errorf("personal_sign: %w", err)
	}
	return sig, nil
}

type sendTxArgs struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	Data    hexutil.Bytes  `json:"data,omitempty"`
	Value   *hexutil.Big   `json:"value,omitempty"`
	ChainID *hexutil.Big   `json:"chainId,omitempty"`
}

func (s *RemoteSigner) SendTransaction(ctx context.Context, tx Transaction) (common.Hash, error) {
	args := sendTxArgs{
		From:    s.address,
		To:      tx.To,
		Data:    tx.Data,
		ChainID: (*hexutil.Big)(big.NewInt(tx.ChainID)),
	}
	if tx.Value != nil {
		args.Value = (*hexutil.Big)(tx.Value)
	}
	var hash common.Hash
	if err := s.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}
	return hash, nil
}

// Close disconnects from the bridge.
func (s *RemoteSigner) Close() error {
	s.rpc.Close()
	return nil
}
