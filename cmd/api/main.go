package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scanapi/internal/config"
	"scanapi/internal/database"
	"scanapi/internal/database/migration"
	"scanapi/internal/detection"
	handlers "scanapi/internal/http/handler"
	"scanapi/internal/http/middleware"
	"scanapi/internal/otel"
	"scanapi/internal/repository/postgres"
	"scanapi/internal/service"
	"scanapi/internal/storage"
	"scanapi/internal/vault"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx := context.Background()

	// Tracing is optional; set OTEL_SDK_DISABLED=true to skip the exporter.
	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Local filesystem areas for uploads and quarantined files
	store, err := storage.NewLocal(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize file storage: %v", err)
	}

	// Optional S3-compatible sample vault for quarantined file archival
	var sampleVault vault.SampleVault
	if cfg.Vault.Endpoint != "" {
		sampleVault, err = vault.NewMinIO(cfg.Vault)
		if err != nil {
			log.Fatalf("failed to initialize sample vault: %v", err)
		}
	}

	engine := detection.NewSimulated(
		time.Duration(cfg.Scanner.MinDelayMs)*time.Millisecond,
		time.Duration(cfg.Scanner.MaxDelayMs)*time.Millisecond,
	)

	scanRepo := postgres.NewScanPostgres(db)

	dispatcher, err := service.NewDispatcher(scanRepo, engine, store, sampleVault, cfg.Scanner, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to start analysis dispatcher: %v", err)
	}

	scanSvc := service.NewScanService(store, scanRepo, dispatcher)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    cfg.Storage.MaxUploadMB * 1024 * 1024,
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register prometheus middleware: %v", err)
	}
	app.Use(promMiddleware.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, scanSvc, cfg.JWTSecret)

	// Drain in-flight scans on shutdown so no record is left in scanning state.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		dispatcher.Close()
		_ = app.Shutdown()
	}()

	addr := cfg.AppHost + ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
