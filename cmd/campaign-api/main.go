package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg "sms-campaign-engine/config"
	"sms-campaign-engine/internal/adapters/db/postgres"
	"sms-campaign-engine/internal/adapters/provider"
	"sms-campaign-engine/internal/adapters/queue/rabbitmq"
	"sms-campaign-engine/internal/app"
	"sms-campaign-engine/internal/middleware"
	"sms-campaign-engine/internal/ports"
	"sms-campaign-engine/internal/transport"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(log); err != nil {
		log.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	conf, err := cfg.FromEnv()
	if err != nil {
		return err
	}

	repo, err := postgres.New(conf.DatabaseURL)
	if err != nil {
		return errors.New("failed to connect to postgres: " + err.Error())
	}
	defer repo.Close()

	// Engine events are best-effort; without a broker the API degrades
	// to a no-op publisher instead of refusing to start.
	var events ports.EventPublisher
	publisher, err := rabbitmq.NewPublisher(conf.AMQPURL)
	if err != nil {
		log.Warn("rabbitmq unavailable, engine events disabled", "err", err)
		events = ports.NopPublisher{}
	} else {
		defer publisher.Close()
		events = publisher
	}

	registry := provider.NewRegistry(provider.Options{
		TwilioBaseURL:   conf.TwilioBaseURL,
		TextBeeBaseURL:  conf.TextBeeBaseURL,
		MockFailureRate: conf.MockFailureRate,
	})

	svc := app.NewCampaignService(repo, events, log)
	step := app.NewBatchStepDriver(repo, registry.ForType, events, log, conf.BatchSize, conf.BatchPacing)

	fiberApp := fiber.New(fiber.Config{
		AppName:               "campaign-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// The step endpoint does real provider I/O with pacing sleeps,
		// so the write timeout must cover a full batch.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ServerHeader: "",
		BodyLimit:    4 * 1024 * 1024,
	})

	fiberApp.Use(recover.New(recover.Config{EnableStackTrace: true}))
	fiberApp.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${method} ${path} ${latency}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	fiberApp.Use(middleware.RequestID())
	fiberApp.Use(middleware.SecurityHeaders())
	fiberApp.Use(middleware.CORSConfig(conf.AllowedOrigins))

	rateLimiter := middleware.NewRateLimiter(2, 20)
	fiberApp.Use(rateLimiter.Middleware())

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	handler := transport.NewHandler(svc, step, log)
	api := fiberApp.Group("/api")
	handler.Register(api)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("campaign-api started", "addr", conf.HTTPAddr)
		if err := fiberApp.Listen(conf.HTTPAddr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		return errors.New("failed to shutdown gracefully: " + err.Error())
	}

	log.Info("campaign-api stopped gracefully")
	return nil
}
