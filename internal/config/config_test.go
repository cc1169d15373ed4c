package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("RPC_URLS", "")
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.ShutdownTimeout)
	}
	if len(cfg.RPCURLs) != 0 {
		t.Fatalf("expected no rpc urls, got %v", cfg.RPCURLs)
	}
	if cfg.FeesDebounce != 500*time.Millisecond {
		t.Fatalf("unexpected debounce %s", cfg.FeesDebounce)
	}
}

func TestFromEnvParsesChainMapAndLists(t *testing.T) {
	t.Setenv("RPC_URLS", "1=https://eth.example, 137 = https://polygon.example,bad,0=https://zero.example")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("BASE_URL", "https://shop.example/")
	cfg := FromEnv()

	if len(cfg.RPCURLs) != 2 || cfg.RPCURLs[1] != "https://eth.example" || cfg.RPCURLs[137] != "https://polygon.example" {
		t.Fatalf("unexpected rpc urls %v", cfg.RPCURLs)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.BaseURL != "https://shop.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BaseURL)
	}
}

func TestValidateWallet(t *testing.T) {
	cfg := Config{
		Wallet:  Wallet{Kind: "walletconnect"},
		RPCURLs: map[int64]string{1: "https://eth.example"},
	}
	if err := cfg.ValidateWallet(); err == nil {
		t.Fatalf("expected bridge url error")
	}
	cfg.Wallet.BridgeURL = "https://bridge.example"
	if err := cfg.ValidateWallet(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Wallet = Wallet{Kind: "injected"}
	if err := cfg.ValidateWallet(); err == nil {
		t.Fatalf("expected private key error")
	}
	cfg.Wallet = Wallet{Kind: "ledger"}
	if err := cfg.ValidateWallet(); err == nil {
		t.Fatalf("expected kind error")
	}
}

func TestValidateNotifications(t *testing.T) {
	cfg := Config{
		Webhook: Webhook{Secret: "s3cret"},
		SMTP:    SMTP{Host: "smtp.example.com", Port: 587, From: "shop@example.com"},
	}
	if err := cfg.ValidateNotifications(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Webhook.Secret = ""
	if err := cfg.ValidateNotifications(); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
