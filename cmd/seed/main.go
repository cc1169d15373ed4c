package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"go.uber.org/zap"

	"nft-storefront/internal/config"
	"nft-storefront/internal/db"
	"nft-storefront/internal/logging"
	"nft-storefront/internal/seed"
)

func main() {
	var (
		account string
		offers  string
	)
	flag.StringVar(&account, "account", seed.DemoAccount, "Account address to seed a cart for")
	flag.StringVar(&offers, "offers", "", "Comma separated offer ids to put in the cart")
	flag.Parse()

	cfg := config.FromEnv()
	logger, err := logging.New("seed", cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	var ids []string
	for _, id := range strings.Split(offers, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if err := seed.Apply(ctx, pool, account, ids); err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}

	logger.Info("seed applied", zap.String("account", account), zap.Int("items", len(ids)))
}
