package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nft-storefront/internal/domain"
	"nft-storefront/internal/logging"
	cartsvc "nft-storefront/internal/service/cart"
	"nft-storefront/internal/service/checkout"
)

// CartService is the cart API the handlers need.
type CartService interface {
	Items(ctx context.Context, address string) ([]domain.CartItem, error)
	Add(ctx context.Context, address string, in cartsvc.AddInput) ([]domain.CartItem, error)
	Has(ctx context.Context, address, offerID string) (bool, error)
	Remove(ctx context.Context, address, offerID string) error
	Clear(ctx context.Context, address string) error
}

// Notifier handles signed marketplace webhook calls.
type Notifier interface {
	Handle(ctx context.Context, body []byte, signature string) (bool, error)
}

type Deps struct {
	CartSvc CartService
	// Offers is optional; without it the chain grouping of carts is unavailable.
	Offers   checkout.OfferLookup
	Notifier Notifier
	// Gatherer exposes /metrics when set.
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(log *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.CartSvc == nil {
		return nil, errors.New("cart service required")
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(logging.GinMiddleware(log), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	h := &cartHandler{svc: deps.CartSvc, offers: deps.Offers, now: time.Now}
	accounts := router.Group("/accounts/:address/cart")
	accounts.GET("", h.get)
	accounts.DELETE("", h.clear)
	accounts.POST("/items", h.add)
	accounts.GET("/items/:offerId", h.has)
	accounts.DELETE("/items/:offerId", h.remove)

	if deps.Notifier != nil {
		router.POST("/webhooks/liteflow", webhookHandler(deps.Notifier, log))
	}

	return router, nil
}
