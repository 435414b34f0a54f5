package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"agritenant/tenant-portal/tenant-portal-backend/internal/auth"
	"agritenant/tenant-portal/tenant-portal-backend/internal/config"
	"agritenant/tenant-portal/tenant-portal-backend/internal/onboarding"
	"agritenant/tenant-portal/tenant-portal-backend/internal/onboarding/feed"
	"agritenant/tenant-portal/tenant-portal-backend/internal/tenant"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	if os.Getenv("APP_ENV") == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Security.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName))
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	// Change feed
	hub := feed.NewHub(logger)
	defer hub.Stop()
	feedManager := feed.NewManager(hub, logger)

	// Tenant domain: appliers and auto-progress predicates
	tenantRepo := tenant.NewPostgresRepository(db)
	tenantService := tenant.NewService(tenantRepo, logger)
	tenantHandler := tenant.NewHandler(tenantService, logger)
	appliers := tenant.NewAppliers(tenantRepo)

	applierRegistry := onboarding.NewApplierRegistry()
	if err := appliers.Register(applierRegistry); err != nil {
		logger.Fatal("Failed to register domain appliers", zap.Error(err))
	}
	if err := applierRegistry.Complete(); err != nil {
		logger.Fatal("Applier registry incomplete", zap.Error(err))
	}

	// Onboarding engine
	onboardingRepo := onboarding.NewPostgresRepository(db)
	detector := onboarding.NewAutoProgressDetector(onboardingRepo, appliers.Predicates(), logger)
	onboardingService := onboarding.NewService(onboardingRepo, applierRegistry, detector, hub, logger)
	onboardingHandler := onboarding.NewHandler(onboardingService, logger)

	// Setup Router
	if os.Getenv("APP_ENV") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	api.Use(auth.Middleware(cfg.Security.JWTSecret))
	{
		onboardingHandler.RegisterRoutes(api)
		tenantHandler.RegisterRoutes(api)
		api.GET("/onboarding/ws", feedManager.HandleConnection)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
