// batch-runner triggers one BatchStepDriver step on a cron schedule. It
// is the stateless background worker: each firing advances at most one
// campaign by one bounded batch, and the chain guarantees the previous
// step finished before the next one starts.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cfg "sms-campaign-engine/config"
	"sms-campaign-engine/internal/adapters/db/postgres"
	"sms-campaign-engine/internal/adapters/provider"
	"sms-campaign-engine/internal/adapters/queue/rabbitmq"
	"sms-campaign-engine/internal/app"
	"sms-campaign-engine/internal/ports"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	conf, err := cfg.FromEnv()
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	repo, err := postgres.New(conf.DatabaseURL)
	if err != nil {
		log.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

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

	driver := app.NewBatchStepDriver(repo, registry.ForType, events, log, conf.BatchSize, conf.BatchPacing)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SkipIfStillRunning provides the at-most-one-concurrent-step
	// guarantee the driver relies on.
	cronLog := cronLogger{log: log}
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLog)))

	_, err = scheduler.AddFunc(conf.StepSchedule, func() {
		res, err := driver.Step(ctx)
		switch {
		case err != nil:
			log.Error("batch step", "err", err)
		case res.NoWork:
			log.Debug("no active campaigns to process")
		case res.Completed:
			log.Info("campaign completed", "campaign_id", res.CampaignID)
		default:
			log.Info("batch step done", "campaign_id", res.CampaignID, "processed", res.Processed)
		}
	})
	if err != nil {
		log.Error("invalid step schedule", "schedule", conf.StepSchedule, "err", err)
		os.Exit(1)
	}

	scheduler.Start()
	log.Info("batch-runner started", "schedule", conf.StepSchedule)

	<-ctx.Done()
	log.Info("shutting down batch-runner")
	<-scheduler.Stop().Done()
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Info(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error(msg, append(kv, "err", err)...)
}
