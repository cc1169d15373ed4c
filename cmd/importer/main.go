package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"nft-storefront/internal/config"
	"nft-storefront/internal/db"
	"nft-storefront/internal/importer"
	"nft-storefront/internal/logging"
	cartrepo "nft-storefront/internal/repository/cart"
)

func main() {
	var (
		filePath string
		format   string
	)
	flag.StringVar(&filePath, "file", "", "Path to the cart export")
	flag.StringVar(&format, "format", "localstorage", "Export format: localstorage (JSON object) or csv")
	flag.Parse()

	if filePath == "" || (format != "localstorage" && format != "csv") {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger, err := logging.New("importer", cfg.LogLevel)
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

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	carts := cartrepo.NewPostgres(pool)
	start := time.Now()

	var count int
	switch format {
	case "csv":
		count, err = importer.NewCSVImporter(f, carts).Run(ctx)
	default:
		var rep importer.Report
		rep, err = importer.ImportLocalStorage(ctx, f, carts)
		count = rep.Imported
		for _, key := range rep.Skipped {
			logger.Warn("skipped malformed cart", zap.String("key", key))
		}
	}
	if err != nil {
		logger.Fatal("import failed", zap.Error(err), zap.Int("imported", count))
	}

	keys, err := cartrepo.Keys(ctx, pool)
	if err != nil {
		logger.Fatal("list carts", zap.Error(err))
	}
	fmt.Printf("Imported %d carts in %s (%d stored)\n", count, time.Since(start).Truncate(time.Millisecond), len(keys))
}
