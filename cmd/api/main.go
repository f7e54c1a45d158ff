package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediarelay/internal/config"
	handlers "mediarelay/internal/http/handler"
	"mediarelay/internal/http/middleware"
	"mediarelay/internal/otel"
	"mediarelay/internal/relay"
	"mediarelay/internal/staging"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	shutdownTracing, err := otel.Init(context.Background(), time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// Staging backend for in-flight uploads (local disk by default)
	st, err := staging.New(cfg.Staging)
	if err != nil {
		log.Fatalf("failed to initialize staging: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	relaySvc, err := relay.NewService(cfg.Downstream, st, reg)
	if err != nil {
		log.Fatalf("failed to initialize relay service: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// Leave headroom over the upload limit so the handler can reject
		// oversized files with the configured maximum in the message.
		BodyLimit: int(cfg.Upload.MaxSizeBytes()) + (10 << 20),
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	app.Use(otelfiber.Middleware())

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to initialize metrics: %v", err)
	}
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, cfg, st, relaySvc)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// corsConfig enumerates allowed origins from configuration; an empty list
// keeps fiber's permissive default for local development.
func corsConfig(origins []string) cors.Config {
	if len(origins) == 0 {
		return cors.ConfigDefault
	}
	return cors.Config{
		AllowOrigins: strings.Join(origins, ","),
	}
}
