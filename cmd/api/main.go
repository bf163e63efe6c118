package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/event-coupon-ledger/internal/cache"
	"github.com/fairyhunter13/event-coupon-ledger/internal/config"
	"github.com/fairyhunter13/event-coupon-ledger/internal/handler"
	"github.com/fairyhunter13/event-coupon-ledger/internal/metrics"
	"github.com/fairyhunter13/event-coupon-ledger/internal/repository"
	"github.com/fairyhunter13/event-coupon-ledger/internal/service"
	"github.com/fairyhunter13/event-coupon-ledger/internal/validator"
	"github.com/fairyhunter13/event-coupon-ledger/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.ConnectRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Optional coupon cache
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedisClient(ctx, database.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.DB.ConnectRetries)
		if err != nil {
			pool.Close()
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Event Coupon Ledger",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator
	validate := validator.New()

	// Metrics
	m := metrics.New()

	// Initialize ledger components (layered architecture)
	var couponRepo service.CouponRepositoryInterface = repository.NewCouponRepository(pool)
	if rdb != nil {
		couponRepo = cache.NewCouponRepository(couponRepo, rdb, cfg.Redis.CacheTTL)
		log.Info().Dur("ttl", cfg.Redis.CacheTTL).Msg("coupon cache enabled")
	}
	redemptionRepo := repository.NewRedemptionRepository(pool)
	couponService := service.NewCouponService(pool, couponRepo, redemptionRepo,
		service.WithRecorder(m),
		service.WithDefaultMaxRedemptions(cfg.Ledger.DefaultMaxRedemptions),
	)
	couponHandler := handler.NewCouponHandler(couponService, validate)
	redemptionHandler := handler.NewRedemptionHandler(couponService, validate)

	// Health and metrics
	var cachePinger handler.Pinger
	if rdb != nil {
		cachePinger = handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	healthHandler := handler.NewHealthHandler(pool, cachePinger)
	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	// Coupon routes
	api := app.Group("/api/coupons")
	api.Post("/", couponHandler.CreateCoupon)
	api.Get("/:code", couponHandler.GetCoupon)
	api.Delete("/:code", couponHandler.DeleteCoupon)
	api.Get("/:code/redemptions", couponHandler.ListRedemptions)
	api.Post("/:code/deactivate", couponHandler.DeactivateCoupon)
	api.Get("/:code/validate", redemptionHandler.ValidateCoupon)
	api.Post("/:code/redeem", redemptionHandler.RedeemCoupon)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close backing stores AFTER server shutdown (even if shutdown timed out)
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis client")
		}
	}
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
