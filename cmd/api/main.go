package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tileboardhq/tileboard/config"
	"github.com/tileboardhq/tileboard/pkg/ai/llm"
	"github.com/tileboardhq/tileboard/pkg/api/handlers"
	"github.com/tileboardhq/tileboard/pkg/assets"
	"github.com/tileboardhq/tileboard/pkg/auth"
	"github.com/tileboardhq/tileboard/pkg/billing"
	"github.com/tileboardhq/tileboard/pkg/cache"
	"github.com/tileboardhq/tileboard/pkg/database"
	"github.com/tileboardhq/tileboard/pkg/email"
	"github.com/tileboardhq/tileboard/pkg/export"
	"github.com/tileboardhq/tileboard/pkg/gueststore"
	"github.com/tileboardhq/tileboard/pkg/identity"
	"github.com/tileboardhq/tileboard/pkg/jobs"
	"github.com/tileboardhq/tileboard/pkg/logger"
	"github.com/tileboardhq/tileboard/pkg/metrics"
	custommw "github.com/tileboardhq/tileboard/pkg/middleware"
	"github.com/tileboardhq/tileboard/pkg/migration"
	"github.com/tileboardhq/tileboard/pkg/plans"
	"github.com/tileboardhq/tileboard/pkg/quota"
	"github.com/tileboardhq/tileboard/pkg/tiles"
	"github.com/tileboardhq/tileboard/pkg/workspace"
)

func main() {
	cfg := config.Load()
	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("configuration loaded", "environment", cfg.APIEnvironment)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			appLogger.Warn("failed to initialize sentry", "error", err)
		} else {
			appLogger.Info("sentry initialized", "environment", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		appLogger.Info("sentry disabled (no DSN configured)")
	}

	// Database
	db, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Identity and quota plumbing
	retention := time.Duration(cfg.GuestRetentionDays) * 24 * time.Hour
	tokenBlacklist := auth.NewTokenBlacklist(redisClient)
	resolver := identity.NewResolver(cfg.JWTSecret, cfg.GuestCookieSecret, tokenBlacklist, retention, cfg.IsProduction())
	registry := plans.NewRegistry(db.DB)
	quotaStore := quota.NewStore(redisClient, retention)
	gate := quota.NewGate(quotaStore, registry, appLogger, cfg.QuotaFailOpen)
	guests := gueststore.New(retention)

	// S3 object storage for uploads
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("❌ Failed to load AWS configuration: %v", err)
	}
	s3Client := s3.NewFromConfig(awsCfg)

	// Services
	contentService := workspace.NewService(db.DB, appLogger)
	migrationEngine := migration.NewEngine(db.DB, appLogger)
	emailService := email.NewService(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName, cfg.FrontendURL, appLogger)
	billingService := billing.NewService(db.DB, &billing.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PriceMember:   cfg.StripePriceMember,
		PriceBusiness: cfg.StripePriceBusiness,
		SuccessURL:    cfg.StripeSuccessURL,
		CancelURL:     cfg.StripeCancelURL,
	}, appLogger)
	llmClient := llm.NewOpenAIClient(llm.Config{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIModel,
	}, appLogger)
	tileService := tiles.NewService(contentService, guests, gate, llmClient, appLogger)
	assetService := assets.NewService(db.DB, s3Client, cfg.S3Bucket, gate, appLogger)
	exportService := export.NewService(contentService)

	// Prometheus metrics
	prometheusMetrics := metrics.New()

	// Cron jobs
	cronManager := jobs.NewCronManager(db.DB, guests, prometheusMetrics, appLogger)
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()

	// Handlers
	authHandler := handlers.NewAuthHandler(db.DB, cfg, tokenBlacklist, prometheusMetrics)
	usageHandler := handlers.NewUsageHandler(gate, registry)
	workspaceHandler := handlers.NewWorkspaceHandler(contentService, guests, gate, prometheusMetrics)
	tileHandler := handlers.NewTileHandler(tileService, prometheusMetrics)
	migrationHandler := handlers.NewMigrationHandler(db.DB, migrationEngine, guests, emailService, prometheusMetrics)
	billingHandler := handlers.NewBillingHandler(billingService, emailService, cfg, prometheusMetrics)
	assetHandler := handlers.NewAssetHandler(assetService, prometheusMetrics)
	exportHandler := handlers.NewExportHandler(exportService)

	// Rate limiters
	globalRateLimiter := custommw.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	authRateLimiter := custommw.NewRateLimiter(5, 2)
	webhookRateLimiter := custommw.NewRateLimiter(100, 20)

	// Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(prometheusMetrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowCredentials: true,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}))
	e.Use(echomw.Gzip())
	e.Use(echomw.Secure())
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health and metrics (public, outside identity resolution)
	e.GET("/health", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}
		if _, err := redisClient.Redis.Ping(c.Request().Context()).Result(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Stripe webhook authenticates via signature, not identity
	e.POST("/api/v1/webhook/stripe", billingHandler.Webhook, webhookRateLimiter.RateLimitMiddleware())

	// API v1: every route resolves a guest or member identity
	v1 := e.Group("/api/v1")
	v1.Use(custommw.APIVersionMiddleware(custommw.CurrentAPIVersion))
	v1.Use(custommw.ResolveIdentity(resolver))

	v1.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"version": custommw.CurrentAPIVersion.Version,
			"latest":  custommw.CurrentAPIVersion.LatestVersion,
		})
	})

	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register, authRateLimiter.RateLimitMiddleware())
		authRoutes.POST("/login", authHandler.Login, authRateLimiter.RateLimitMiddleware())
		authRoutes.POST("/logout", authHandler.Logout, custommw.RequireMember())
		authRoutes.GET("/me", authHandler.Me, custommw.RequireMember())
	}

	v1.GET("/usage", usageHandler.GetUsage)

	v1.POST("/workspaces", workspaceHandler.CreateWorkspace)
	v1.GET("/workspaces", workspaceHandler.ListWorkspaces)
	v1.GET("/workspaces/:id/dashboards", workspaceHandler.ListDashboards)
	v1.POST("/dashboards", workspaceHandler.CreateDashboard)
	v1.GET("/dashboards/:id/tiles", workspaceHandler.ListTiles)
	v1.GET("/dashboards/:id/contacts", workspaceHandler.ListContacts)
	v1.GET("/dashboards/:id/notes", workspaceHandler.ListNotes)
	v1.POST("/contacts", workspaceHandler.CreateContact)
	v1.POST("/notes", workspaceHandler.CreateNote)

	v1.POST("/tiles/generate", tileHandler.GenerateTile)
	v1.POST("/tiles/:id/regenerate", tileHandler.RegenerateTile)
	v1.PATCH("/tiles/:id", workspaceHandler.UpdateTile)
	v1.DELETE("/tiles/:id", workspaceHandler.DeleteTile)
	v1.POST("/tiles/chat", tileHandler.TileChat)
	v1.POST("/contacts/:id/chat", tileHandler.ContactChat)

	v1.POST("/assets", assetHandler.Upload)
	v1.GET("/assets", assetHandler.List, custommw.RequireMember())
	v1.DELETE("/assets/:id", assetHandler.Delete, custommw.RequireMember())

	v1.GET("/dashboards/:id/contacts/export", exportHandler.ExportContacts, custommw.RequireMember())

	v1.POST("/migrate", migrationHandler.Migrate, custommw.RequireMember())

	billingRoutes := v1.Group("/billing")
	{
		billingRoutes.POST("/checkout", billingHandler.CreateCheckout, custommw.RequireMember())
		billingRoutes.POST("/reconcile", billingHandler.Reconcile)
		billingRoutes.POST("/portal", billingHandler.CustomerPortal, custommw.RequireMember())
	}

	// Start server
	address := cfg.APIHost + ":" + cfg.APIPort
	appLogger.Info("starting server",
		"address", address,
		"rate_limit_rpm", cfg.RateLimitRequestsPerMinute,
		"quota_fail_open", cfg.QuotaFailOpen,
		"guest_retention_days", cfg.GuestRetentionDays)

	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")

	cronManager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	appLogger.Info("server stopped")
}
