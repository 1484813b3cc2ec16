package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// StatsSource exposes Redis connection pool statistics.
type StatsSource interface {
	GetStats(ctx context.Context) *redis.PoolStats
}

// HealthHandler reports the state of the service dependencies.
type HealthHandler struct {
	checks map[string]Pinger
	stats  StatsSource
}

func NewHealthHandler(checks map[string]Pinger, stats StatsSource) *HealthHandler {
	return &HealthHandler{checks: checks, stats: stats}
}

// HealthCheck handles GET /health. Any failing dependency turns the response
// into a 503.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	services := fiber.Map{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			services[name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		services[name] = "connected"
	}

	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   state,
		"version":  "1.0.0",
		"services": services,
	})
}

// CacheStats handles GET /admin/cache/stats.
func (h *HealthHandler) CacheStats(c *fiber.Ctx) error {
	if h.stats == nil {
		return c.JSON(fiber.Map{"pool_stats": nil})
	}
	poolStats := h.stats.GetStats(c.UserContext())

	return c.JSON(fiber.Map{
		"pool_stats": fiber.Map{
			"hits":        poolStats.Hits,
			"misses":      poolStats.Misses,
			"timeouts":    poolStats.Timeouts,
			"total_conns": poolStats.TotalConns,
			"idle_conns":  poolStats.IdleConns,
			"stale_conns": poolStats.StaleConns,
		},
	})
}
