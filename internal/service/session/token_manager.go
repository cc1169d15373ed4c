package session

import (
	"sync"
	"time"
)

type tokenMeta struct {
	Token     string
	ExpiresAt time.Time
}

// tokenManager caches one marketplace JWT per lower-cased account address.
type tokenManager struct {
	mu     sync.RWMutex
	tokens map[string]tokenMeta
	now    func() time.Time
}

func newTokenManager(now func() time.Time) *tokenManager {
	return &tokenManager{
		tokens: make(map[string]tokenMeta),
		now:    now,
	}
}

func (m *tokenManager) Store(address, token string, ttl time.Duration) {
	m.mu.Lock()
	m.tokens[address] = tokenMeta{Token: token, ExpiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

func (m *tokenManager) Get(address string) (tokenMeta, bool) {
	m.mu.RLock()
	meta, ok := m.tokens[address]
	m.mu.RUnlock()
	if !ok {
		return tokenMeta{}, false
	}
	if !m.now().Before(meta.ExpiresAt) {
		m.mu.Lock()
		delete(m.tokens, address)
		m.mu.Unlock()
		return tokenMeta{}, false
	}
	return meta, true
}

func (m *tokenManager) Delete(address string) {
	m.mu.Lock()
	delete(m.tokens, address)
	m.mu.Unlock()
}
