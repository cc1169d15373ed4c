// Package session signs accounts in to the marketplace API with their wallet.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nft-storefront/internal/marketplace"
	"nft-storefront/internal/wallet"
)

// ErrNotAuthenticated is returned when no valid token is cached for an account.
var ErrNotAuthenticated = errors.New("account not authenticated")

// Authenticator exchanges a signed sign-in message for a JWT.
type Authenticator interface {
	Authenticate(ctx context.Context, address, message, signature string) (string, error)
}

type Service struct {
	api     Authenticator
	appName string
	ttl     time.Duration
	tokens  *tokenManager
	log     *zap.Logger
}

// New creates a Service caching tokens for ttl, 24h when ttl is not positive.
func New(api Authenticator, appName string, ttl time.Duration, log *zap.Logger) *Service {
	return newService(api, appName, ttl, log, time.Now)
}

func newService(api Authenticator, appName string, ttl time.Duration, log *zap.Logger, now func() time.Time) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{api: api, appName: appName, ttl: ttl, tokens: newTokenManager(now), log: log}
}

// Message is the text an account signs to sign in.
func Message(appName, address, nonce string) string {
	return fmt.Sprintf("Welcome to %s!\n\nClick to sign in and accept the Terms of Service.\n\nThis request will not trigger a blockchain transaction or cost any gas fees.\n\nWallet address:\n%s\n\nNonce:\n%s",
		appName, address, nonce)
}

// Authenticate returns the cached token of the signer's account or signs a
// fresh sign-in message and exchanges it for one.
func (s *Service) Authenticate(ctx context.Context, signer wallet.Signer) (string, error) {
	address := strings.ToLower(signer.Address().Hex())
	if meta, ok := s.tokens.Get(address); ok {
		return meta.Token, nil
	}

	message := Message(s.appName, address, uuid.NewString())
	sig, err := signer.SignMessage(ctx, []byte(message))
	if err != nil {
		return "", fmt.Errorf("sign in message: %w", err)
	}
	token, err := s.api.Authenticate(ctx, address, message, hexutil.Encode(sig))
	if err != nil {
		return "", err
	}
	s.tokens.Store(address, token, s.ttl)
	s.log.Info("account signed in", zap.String("address", address), zap.String("wallet", string(signer.Kind())))
	return token, nil
}

// Token returns the cached, unexpired token of address.
func (s *Service) Token(address string) (string, error) {
	meta, ok := s.tokens.Get(strings.ToLower(address))
	if !ok {
		return "", ErrNotAuthenticated
	}
	return meta.Token, nil
}

// Logout forgets the token of address.
func (s *Service) Logout(address string) {
	s.tokens.Delete(strings.ToLower(address))
}

// TokenSource binds the marketplace client to the session of address.
func (s *Service) TokenSource(address string) marketplace.TokenSource {
	return func(context.Context) string {
		token, _ := s.Token(address)
		return token
	}
}
