package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filmsociety/api/cache"
	"filmsociety/api/cms"
	"filmsociety/api/config"
	"filmsociety/api/database"
	"filmsociety/api/handlers"
	"filmsociety/api/logger"
	"filmsociety/api/metrics"
	"filmsociety/api/middleware"
	"filmsociety/api/pages"
	"filmsociety/api/payments"
	"filmsociety/api/schema"
	"filmsociety/api/store"
	"filmsociety/api/tmdb"
	"filmsociety/api/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	if cfg.App.GinMode != "" {
		gin.SetMode(cfg.App.GinMode)
	} else if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := handlers.RegisterValidators(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// --- Databases ---
	pg, err := database.NewPostgresDB(startCtx, cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to initialize PostgreSQL database", zap.Error(err))
	}
	defer pg.Close()

	ch, err := database.NewClickHouseDB(startCtx, cfg.ClickHouse, cfg.App.Name, log)
	if err != nil {
		log.Fatal("Failed to initialize ClickHouse database", zap.Error(err))
	}
	defer ch.Close()

	// --- Stores ---
	analyticsStore := store.NewAnalyticsStore(ch.DB, log)
	memberStore := store.NewMemberStore(pg.DB, log)
	ticketStore := store.NewTicketStore(pg.DB, log)
	for name, s := range map[string]interface {
		EnsureSchema(context.Context) error
	}{"analytics": analyticsStore, "members": memberStore, "tickets": ticketStore} {
		if err := s.EnsureSchema(startCtx); err != nil {
			log.Fatal("Failed to ensure schema", zap.String("store", name), zap.Error(err))
		}
	}

	// --- Content and external services ---
	contentCache := newCache(cfg.Redis, log)
	defer contentCache.Close()

	cmsClient := cms.New(cms.Config{
		ProjectID:  cfg.CMS.ProjectID,
		Dataset:    cfg.CMS.Dataset,
		APIVersion: cfg.CMS.APIVersion,
		Token:      cfg.CMS.Token,
		UseCDN:     cfg.CMS.UseCDN,
		CacheTTL:   cfg.CMS.CacheTTL,
	}, contentCache, log)
	if !cmsClient.Configured() {
		log.Warn("CMS project id not set, serving fallback pages")
	}

	movies := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, log)
	pay := payments.New(payments.Config{
		SecretKey: cfg.Payments.SecretKey,
		Currency:  cfg.Payments.Currency,
		BaseURL:   cfg.Payments.BaseURL,
	}, log)
	if !pay.Configured() {
		log.Warn("Payment provider key not set, paid sign-ups will fail")
	}

	contentSchema, err := schema.Load()
	if err != nil {
		log.Fatal("Failed to load content schema", zap.Error(err))
	}

	jwtManager := utils.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// --- Handlers ---
	analyticsHandlers := handlers.NewAnalyticsHandlers(analyticsStore, cfg.Ingest.MaxBatch, log)
	memberHandlers := handlers.NewMemberHandlers(memberStore, ticketStore, cmsClient, pay, jwtManager,
		handlers.MemberHandlersConfig{
			TierPrices:    cfg.Payments.TierPrices,
			Currency:      cfg.Payments.Currency,
			CookieName:    cfg.Auth.CookieName,
			SecureCookie:  cfg.IsProduction(),
			WebhookSecret: cfg.Payments.WebhookSecret,
		}, log)
	schemaHandlers := handlers.NewSchemaHandlers(contentSchema, log)
	pageHandlers, err := pages.New(cmsClient, movies, cfg.Payments.TierPrices, log)
	if err != nil {
		log.Fatal("Failed to parse page templates", zap.Error(err))
	}

	limiter := middleware.NewRateLimiter(cfg.Ingest.RatePerSecond, cfg.Ingest.Burst)
	limiter.StartCleanup(time.Minute)
	defer limiter.Stop()

	authRequired := middleware.AuthRequired(middleware.AuthConfig{
		JWT:        jwtManager,
		APIKey:     cfg.Auth.APIKey,
		CookieName: cfg.Auth.CookieName,
	})

	r := gin.New()
	r.Use(logger.GinMiddleware(log), logger.Recovery(log), metrics.GinMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.App.FEOrigin))

	r.GET("/healthz", handlers.Health(map[string]handlers.Pinger{
		"postgres":   pg.DB,
		"clickhouse": ch.DB,
	}))
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	{
		api.POST("/analytics", limiter.Middleware(), analyticsHandlers.TrackEvent)

		api.POST("/members", memberHandlers.Join)
		api.POST("/tickets", memberHandlers.BuyTickets)
		api.POST("/login", memberHandlers.Login)
		api.POST("/logout", memberHandlers.Logout)
		api.POST("/payments/webhook", memberHandlers.PaymentWebhook)
		api.GET("/schema", schemaHandlers.GetSchema)

		api.GET("/members/me", authRequired, memberHandlers.Me)

		protected := api.Group("/")
		protected.Use(authRequired, middleware.OperatorOnly())
		{
			protected.GET("/analytics", analyticsHandlers.GetInsights)
			protected.POST("/schema/validate", schemaHandlers.ValidateDocument)

			stats := protected.Group("/stats")
			{
				stats.GET("/event-counts", analyticsHandlers.GetEventCountsOverTime)
				stats.GET("/top-pages", analyticsHandlers.GetTopPages)
			}
		}
	}

	pageHandlers.Register(r)
	r.NoRoute(pageHandlers.NotFound)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exiting")
}

// newCache prefers Redis when an address is configured and falls back to
// an in-process cache when it is not or cannot be reached.
func newCache(cfg config.RedisConfig, log *zap.Logger) cache.Cache {
	if cfg.Addr == "" {
		return cache.NewMemoryCache()
	}
	rc, err := cache.NewRedisCache(cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory cache", zap.String("addr", cfg.Addr), zap.Error(err))
		return cache.NewMemoryCache()
	}
	return rc
}
