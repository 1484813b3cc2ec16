// Package main is the entry point for the transfer service.
// It initializes all dependencies, sets up the HTTP server,
// and starts the application.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"airtime/internal/config"
	"airtime/internal/ledger"
	"airtime/internal/logging"
	"airtime/internal/repositories"
	"airtime/internal/routes"
	"airtime/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// main initializes and starts the HTTP server.
// It performs the following setup:
// - Loads configuration
// - Initializes database and cache connections
// - Connects the ledger client and the event producer
// - Configures routes
// - Starts the HTTP server
func main() {
	config.LoadEnv()

	zl, err := logging.New(config.IsProduction())
	if err != nil {
		panic(err)
	}
	defer func() { _ = zl.Sync() }()

	// Initialize databases (PostgreSQL + Redis)
	if err := repositories.InitDB(zl); err != nil {
		zl.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer repositories.Close(zl)

	sqlDB, err := repositories.DB.DB()
	if err != nil {
		zl.Fatal("failed to get database instance", zap.Error(err))
	}

	// Periodic check of connection pool stats
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			stats := sqlDB.Stats()
			zl.Debug("db stats",
				zap.Int("open", stats.OpenConnections),
				zap.Int("idle", stats.Idle),
				zap.Int("in_use", stats.InUse),
				zap.Int64("wait_count", stats.WaitCount),
				zap.Duration("wait_duration", stats.WaitDuration))
		}
	}()

	ledgerClient := ledger.NewClient(ledger.Config{
		BaseURL:             config.GetEnv("LEDGER_BASE_URL", "http://localhost:8081"),
		APIKey:              config.GetEnv("LEDGER_API_KEY", ""),
		Timeout:             config.GetDurationEnv("LEDGER_TIMEOUT", 5*time.Second),
		ConsecutiveFailures: uint32(config.GetIntEnv("LEDGER_BREAKER_FAILURES", 5)),
		OpenTimeout:         config.GetDurationEnv("LEDGER_BREAKER_OPEN_TIMEOUT", 30*time.Second),
	}, zl)

	publisher := newPublisher(zl)
	defer publisher.Close()

	app := fiber.New(fiber.Config{
		AppName: "airtime-transfer",
	})

	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,PUT",
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api/transfers", limiter.New(limiter.Config{
		Max:        config.GetIntEnv("TRANSFER_RATE_LIMIT", 60),
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	routes.SetupRoutes(app, routes.Dependencies{
		DB:        repositories.DB,
		Cache:     repositories.CacheService,
		Ledger:    ledgerClient,
		Publisher: publisher,
		Exchange:  config.GetEnv("TRANSFER_EVENT_EXCHANGE", "transfers"),
		JWTSecret: config.GetEnv("JWT_SECRET", "airtime"),
		Logger:    zl,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		zl.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Error("shutdown failed", zap.Error(err))
		}
	}()

	port := config.GetEnv("PORT", "3000")
	zl.Info("transfer service listening", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		zl.Error("server stopped", zap.Error(err))
	}
}

// newPublisher connects to RabbitMQ when RABBITMQ_URL is set and falls back
// to a producer that only logs.
func newPublisher(zl *zap.Logger) rabbitmq.Publisher {
	url := config.GetEnv("RABBITMQ_URL", "")
	if url == "" {
		zl.Info("RABBITMQ_URL not set, transfer events will only be logged")
		return rabbitmq.NewEventProducerFallback(zl)
	}
	producer, err := rabbitmq.NewEventProducer(url, zl)
	if err != nil {
		zl.Warn("rabbitmq unavailable, transfer events will only be logged", zap.Error(err))
		return rabbitmq.NewEventProducerFallback(zl)
	}
	return producer
}
