// Command storefront manages carts and checks them out from the terminal.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nft-storefront/internal/config"
	"nft-storefront/internal/db"
	"nft-storefront/internal/logging"
	"nft-storefront/internal/marketplace"
	cartrepo "nft-storefront/internal/repository/cart"
	cartsvc "nft-storefront/internal/service/cart"
)

type app struct {
	cfg     config.Config
	log     *zap.Logger
	storage cartsvc.Storage
	closers []func()
}

var (
	flagAccount string
	flagMemory  bool

	a = &app{}
)

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Manage NFT storefront carts and checkouts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return a.init(cmd.Context())
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		a.close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAccount, "account", os.Getenv("STOREFRONT_ACCOUNT"), "Account address whose cart is used")
	rootCmd.PersistentFlags().BoolVar(&flagMemory, "memory", false, "Keep carts in memory instead of Postgres")
	rootCmd.AddCommand(cartCmd, checkoutCmd, feesCmd, loginCmd)
}

func (a *app) init(ctx context.Context) error {
	a.cfg = config.FromEnv()
	logger, err := logging.New("storefront", a.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.log = logger

	if flagMemory {
		a.storage = cartrepo.NewMemory()
		return nil
	}
	pool, err := db.Connect(ctx, a.cfg.DBConnString, db.WithMaxConns(2), db.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.storage = cartrepo.NewPostgres(pool)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) marketplace(opts ...marketplace.Option) (*marketplace.Client, error) {
	if err := a.cfg.ValidateMarketplace(); err != nil {
		return nil, err
	}
	opts = append([]marketplace.Option{marketplace.WithLogger(a.log.Named("marketplace"))}, opts...)
	return marketplace.New(a.cfg.Marketplace.GraphQLURL, a.cfg.Marketplace.APIKey, opts...), nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		a.close()
		log.SetFlags(0)
		log.Fatalf("storefront: %v", err)
	}
}
