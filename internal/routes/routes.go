// Package routes defines the API routing configuration.
// It wires the transfer services to their handlers and sets up the HTTP
// routes together with their authentication requirements.
package routes

import (
	"context"

	domainerrors "airtime/internal/errors"
	"airtime/internal/handlers"
	"airtime/internal/ledger"
	"airtime/internal/logging"
	"airtime/internal/middleware"
	"airtime/internal/models"
	"airtime/internal/repositories"
	"airtime/internal/repositories/cache"
	"airtime/internal/services/notification"
	"airtime/internal/services/rules"
	"airtime/internal/services/settings"
	"airtime/internal/services/transfer"
	"airtime/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies are the process level resources the routes are built on.
type Dependencies struct {
	DB        *gorm.DB
	Cache     *cache.CacheService
	Ledger    *ledger.Client
	Publisher rabbitmq.Publisher
	Exchange  string
	JWTSecret string
	Logger    *zap.Logger
}

// SetupRoutes builds the transfer stack and registers every route on app.
func SetupRoutes(app *fiber.App, deps Dependencies) {
	log := logging.OrNop(deps.Logger)

	// Repositories
	configRepo := repositories.NewConfigRepository(deps.DB, deps.Cache, log)
	txRepo := repositories.NewTransactionRepository(deps.DB)

	// Runtime configuration
	store := settings.NewStore(configRepo, log)
	gate := rules.NewGate(configRepo, store, log)
	preload(store, gate, log)

	// Transfer services
	notifier := notification.NewService(deps.Ledger, store, deps.Publisher, deps.Exchange, log)
	validator := transfer.NewValidator(deps.Ledger, configRepo, gate, txRepo, store, log)
	orchestrator := transfer.NewOrchestrator(deps.Ledger, txRepo, store, notifier, log)
	transferService := transfer.NewService(validator, orchestrator, domainerrors.NewCatalog(store), store, log)

	// Handlers
	transferHandler := handlers.NewTransferHandler(transferService)
	adminHandler := handlers.NewAdminHandler(configRepo, store, gate, log)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(ctx context.Context) error {
			sqlDB, err := deps.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		"redis":  handlers.PingFunc(deps.Cache.HealthCheck),
		"ledger": deps.Ledger,
	}, deps.Cache)

	Register(app, Handlers{
		Transfer: transferHandler,
		Admin:    adminHandler,
		Health:   healthHandler,
		Auth:     middleware.NewAuthMiddleware(deps.JWTSecret, log),
	})
}

// Handlers groups what Register mounts.
type Handlers struct {
	Transfer *handlers.TransferHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
	Auth     *middleware.AuthMiddleware
}

// Register mounts the routes on app.
func Register(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.HealthCheck)

	api := app.Group("/api", h.Auth.Handler)

	transfers := api.Group("/transfers")
	transfers.Post("/", middleware.HasPermission(models.PermissionTransferWrite), h.Transfer.Transfer)
	transfers.Post("/adjustment", middleware.HasPermission(models.PermissionTransferWrite), h.Transfer.TransferWithReason)
	transfers.Post("/service-center",
		middleware.RequireRole(models.RoleServiceCenter, models.RoleAdmin),
		middleware.HasPermission(models.PermissionTransferNoPin),
		h.Transfer.TransferWithoutPin)
	transfers.Post("/validate", middleware.HasPermission(models.PermissionTransferValidate), h.Transfer.Validate)

	admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Put("/settings", middleware.HasPermission(models.PermissionSettingsWrite), h.Admin.PutSetting)
	admin.Post("/settings/invalidate", h.Admin.InvalidateSettings)
	admin.Post("/rules/reload", h.Admin.ReloadRules)
	admin.Get("/cache/stats", h.Health.CacheStats)
}

// preload warms the settings and rule snapshots. Failures are not fatal:
// both retry on first use.
func preload(store *settings.Store, gate *rules.Gate, log *zap.Logger) {
	ctx := context.Background()
	if err := store.Load(ctx); err != nil {
		log.Warn("settings preload failed", zap.Error(err))
	}
	if err := gate.Reload(ctx); err != nil {
		log.Warn("transfer rule preload failed", zap.Error(err))
	}
}
