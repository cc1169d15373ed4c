package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Chains holds one ethclient per configured chain.
type Chains struct {
	clients map[int64]*ethclient.Client
}

// DialChains connects to every RPC endpoint in urls.
func DialChains(ctx context.Context, urls map[int64]string) (*Chains, error) {
	c := &Chains{clients: make(map[int64]*ethclient.Client, len(urls))}
	for id, url := range urls {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("dial chain %d: %w", id, err)
		}
		c.clients[id] = client
	}
	return c, nil
}

func (c *Chains) Backends() map[int64]Backend {
	out := make(map[int64]Backend, len(c.clients))
	for id, cl := range c.clients {
		out[id] = cl
	}
	return out
}

func (c *Chains) Confirmer(interval time.Duration) *Confirmer {
	readers := make(map[int64]ReceiptReader, len(c.clients))
	for id, cl := range c.clients {
		readers[id] = cl
	}
	return NewConfirmer(readers, interval)
}

func (c *Chains) Close() {
	for _, cl := range c.clients {
		cl.Close()
	}
}

// Open returns the Signer for kind: a KeySigner for injected wallets, a
// RemoteSigner dialled at bridgeURL otherwise.
func Open(ctx context.Context, kind Kind, privateKey, bridgeURL string, chains *Chains) (Signer, error) {
	if kind.Remote() {
		return DialRemote(ctx, kind, bridgeURL)
	}
	return NewKeySigner(privateKey, chains.Backends())
}
