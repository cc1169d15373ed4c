package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"nft-storefront/internal/config"
	"nft-storefront/internal/db"
	"nft-storefront/internal/httpserver"
	"nft-storefront/internal/logging"
	"nft-storefront/internal/marketplace"
	"nft-storefront/internal/metrics"
	cartrepo "nft-storefront/internal/repository/cart"
	cartsvc "nft-storefront/internal/service/cart"
	"nft-storefront/internal/service/notification"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New("api", cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, db.WithMaxConns(int32(cfg.DBMaxConns)), db.WithLogger(logger))
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(registry)

	cartService := cartsvc.New(cartrepo.NewPostgres(dbpool), nil, recorder)
	deps := httpserver.Deps{
		CartSvc:     cartService,
		Gatherer:    registry,
		CORSOrigins: cfg.CORSOrigins,
	}

	if err := cfg.ValidateMarketplace(); err != nil {
		logger.Warn("marketplace API not configured, chain grouping and notifications disabled", zap.Error(err))
	} else {
		client := marketplace.New(cfg.Marketplace.GraphQLURL, cfg.Marketplace.APIKey, marketplace.WithLogger(logger.Named("marketplace")))
		deps.Offers = client

		notifier, err := newNotifier(cfg, client, recorder, logger)
		if err != nil {
			logger.Warn("notifications disabled", zap.Error(err))
		} else {
			deps.Notifier = notifier
		}
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, deps)
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.Stringer("signal", sig))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

func newNotifier(cfg config.Config, emails notification.EmailLookup, recorder metrics.Recorder, logger *zap.Logger) (*notification.Service, error) {
	if err := cfg.ValidateNotifications(); err != nil {
		return nil, err
	}
	mailer, err := notification.NewMailer(notification.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		return nil, err
	}
	return notification.New(notification.Config{
		Secret:  cfg.Webhook.Secret,
		AppName: cfg.AppName,
		BaseURL: cfg.BaseURL,
	}, emails, mailer, recorder, logger.Named("notification"))
}
