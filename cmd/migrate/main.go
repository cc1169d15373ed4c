package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"nft-storefront/internal/config"
	"nft-storefront/internal/db"
	"nft-storefront/internal/logging"
	"nft-storefront/internal/migrate"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New("migrate", cfg.LogLevel)
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

	if err := migrate.Apply(ctx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	version, dirty, err := migrate.Version(ctx, pool)
	if err != nil {
		logger.Fatal("read schema version", zap.Error(err))
	}
	logger.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
