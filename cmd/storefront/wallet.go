package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nft-storefront/internal/marketplace"
	"nft-storefront/internal/service/session"
	"nft-storefront/internal/wallet"
)

// walletSession is a connected, signed-in wallet.
type walletSession struct {
	signer    wallet.Signer
	confirmer *wallet.Confirmer
	client    *marketplace.Client
}

func (a *app) connectWallet(ctx context.Context) (*walletSession, error) {
	if err := a.cfg.ValidateWallet(); err != nil {
		return nil, err
	}
	kind, err := wallet.ParseKind(a.cfg.Wallet.Kind)
	if err != nil {
		return nil, err
	}
	chains, err := wallet.DialChains(ctx, a.cfg.RPCURLs)
	if err != nil {
		return nil, err
	}
	signer, err := wallet.Open(ctx, kind, a.cfg.Wallet.PrivateKey, a.cfg.Wallet.BridgeURL, chains)
	if err != nil {
		chains.Close()
		return nil, fmt.Errorf("open %s wallet: %w", kind, err)
	}
	a.closers = append(a.closers, chains.Close, func() { _ = signer.Close() })

	client, err := a.marketplace()
	if err != nil {
		return nil, err
	}
	address := signer.Address().Hex()
	sessions := session.New(client, a.cfg.AppName, 0, a.log.Named("session"))
	marketplace.WithTokenSource(sessions.TokenSource(address))(client)
	a.closers = append(a.closers, func() { sessions.Logout(address) })

	if _, err := sessions.Authenticate(ctx, signer); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	a.log.Info("wallet connected", zap.String("kind", string(kind)), zap.String("address", address))

	return &walletSession{
		signer:    signer,
		confirmer: chains.Confirmer(2 * time.Second),
		client:    client,
	}, nil
}
