package handlers

import (
	"context"
	"strings"

	"airtime/internal/logging"
	"airtime/internal/models"
	"airtime/internal/utils"
	"airtime/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ConfigAdmin is the write side of the configuration repository.
type ConfigAdmin interface {
	UpsertSetting(ctx context.Context, setting *models.Setting) error
	InvalidateCache(ctx context.Context) error
}

// SettingsInvalidator drops the in-memory settings snapshot.
type SettingsInvalidator interface {
	Invalidate()
}

// RuleReloader rebuilds the transfer rule snapshot.
type RuleReloader interface {
	Reload(ctx context.Context) error
}

// AdminHandler exposes operator endpoints for runtime configuration.
type AdminHandler struct {
	configs  ConfigAdmin
	settings SettingsInvalidator
	rules    RuleReloader
	logger   *zap.Logger
}

func NewAdminHandler(configs ConfigAdmin, settings SettingsInvalidator, rules RuleReloader, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		configs:  configs,
		settings: settings,
		rules:    rules,
		logger:   logging.OrNop(logger),
	}
}

// PutSetting handles PUT /admin/settings. The new value is visible once the
// settings snapshot reloads, which this handler triggers.
func (h *AdminHandler) PutSetting(c *fiber.Ctx) error {
	var req struct {
		Category string `json:"category"`
		Key      string `json:"key"`
		Value    string `json:"value"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request")
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" || strings.TrimSpace(req.Category) == "" {
		return response.BadRequest(c, "category and key are required")
	}

	setting := &models.Setting{Category: req.Category, Key: req.Key, Value: req.Value}
	if err := h.configs.UpsertSetting(c.UserContext(), setting); err != nil {
		h.logger.Error("failed to save setting", zap.String("key", req.Key), zap.Error(err))
		return response.ServerError(c, "failed to save setting")
	}
	h.settings.Invalidate()

	h.logger.Info("setting updated", zap.String("key", req.Key), zap.String("by", utils.Actor(c)))
	return response.Success(c, "setting saved", setting)
}

// InvalidateSettings handles POST /admin/settings/invalidate.
func (h *AdminHandler) InvalidateSettings(c *fiber.Ctx) error {
	h.settings.Invalidate()
	if err := h.configs.InvalidateCache(c.UserContext()); err != nil {
		h.logger.Error("failed to invalidate config cache", zap.Error(err))
		return response.ServerError(c, "failed to invalidate config cache")
	}
	h.logger.Info("settings invalidated", zap.String("by", utils.Actor(c)))
	return response.Success(c, "settings invalidated", nil)
}

// ReloadRules handles POST /admin/rules/reload.
func (h *AdminHandler) ReloadRules(c *fiber.Ctx) error {
	if err := h.configs.InvalidateCache(c.UserContext()); err != nil {
		h.logger.Warn("failed to invalidate config cache before reload", zap.Error(err))
	}
	if err := h.rules.Reload(c.UserContext()); err != nil {
		h.logger.Error("rule reload failed", zap.Error(err))
		return response.Error(c, fiber.StatusServiceUnavailable, "rule reload failed, previous rules kept")
	}
	h.logger.Info("transfer rules reloaded", zap.String("by", utils.Actor(c)))
	return response.Success(c, "rules reloaded", nil)
}
