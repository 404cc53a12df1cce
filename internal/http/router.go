// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// compression, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Keep the webhook ingestion path free of throttling and CORS concerns
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tapcommerce/go-merchant-backend/internal/attribution"
	"github.com/tapcommerce/go-merchant-backend/internal/config"
	"github.com/tapcommerce/go-merchant-backend/internal/http/handlers"
	"github.com/tapcommerce/go-merchant-backend/internal/http/middleware"
	"github.com/tapcommerce/go-merchant-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), health and metrics
// endpoints, the webhook ingestion route, and the versioned read API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Structured logging
//  4. Recovery: capture panics after logger
//  5. Body size limiter (signed payloads are small)
//  6. Metrics
//
// The webhook route stays outside the /api group: it must never be rate
// limited (the gateway retries throttled deliveries) and browsers never call
// it, so compression and CORS are pointless there.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(cfg.MaxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← db + downstream clients
	dispatcher := attribution.New(cfg.Attribution.URL, cfg.Attribution.Token, cfg.Attribution.Timeout)
	webhookSvc := &services.WebhookService{
		DB:                  db,
		Dispatcher:          dispatcher,
		Environment:         cfg.Environment,
		CheckoutMatchWindow: cfg.CheckoutMatchWindow,
		DispatchTimeout:     cfg.Attribution.Timeout,
		Currency:            cfg.Attribution.Currency,
	}
	salesSvc := &services.SalesService{DB: db}
	h := handlers.New(webhookSvc, salesSvc, cfg.WebhookSecret)

	// Webhook ingestion (authenticated by signature, never throttled)
	r.POST("/webhooks/gateway", h.HandleGatewayWebhook)

	// Read API for the dashboard
	api := r.Group("/api/v1")
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	api.Use(corsFor(cfg))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	api.Use(rl.Handler())
	{
		api.GET("/sales", h.ListSales)
		api.GET("/sales/:orderID", h.GetSale)
		api.GET("/deliveries", h.ListDeliveries)
	}
}

// corsFor builds the CORS posture for the read API. With no configured
// origins it allows all (dev default); otherwise only the allowlist.
func corsFor(cfg config.Config) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	return cors.New(cc)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
