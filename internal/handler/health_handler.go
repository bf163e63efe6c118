package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f(ctx).
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check requests.
type HealthHandler struct {
	pool  Pinger
	cache Pinger
}

// NewHealthHandler creates a new HealthHandler with the given database pool.
// cache may be nil when the coupon cache is disabled.
func NewHealthHandler(pool Pinger, cache Pinger) *HealthHandler {
	return &HealthHandler{pool: pool, cache: cache}
}

// Check performs a health check by pinging the database and, if configured, the cache.
// Returns 200 OK with {"status": "healthy"} when everything is reachable.
// Returns 200 OK with {"status": "degraded"} when only the cache is unreachable, since lookups fall back to the database.
// Returns 503 Service Unavailable with {"status": "unhealthy", "error": "..."} when the database is unreachable.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.pool.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}
	if h.cache != nil {
		if err := h.cache.Ping(c.Context()); err != nil {
			log.Warn().Err(err).Msg("health check degraded: cache unreachable")
			return c.JSON(fiber.Map{
				"status": "degraded",
				"cache":  "unreachable",
			})
		}
	}
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}
