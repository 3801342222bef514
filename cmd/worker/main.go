// Command worker runs the background side of the engine: the scheduled
// dispatcher poll loop and the daily metrics aggregation.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/ignite/campaign-engine/internal/config"
	"github.com/ignite/campaign-engine/internal/pkg/logger"
	"github.com/ignite/campaign-engine/internal/provider"
	"github.com/ignite/campaign-engine/internal/render"
	"github.com/ignite/campaign-engine/internal/repository/postgres"
	"github.com/ignite/campaign-engine/internal/service/campaign"
	"github.com/ignite/campaign-engine/internal/service/dispatch"
	"github.com/ignite/campaign-engine/internal/service/metrics"
)

func main() {
	cfg, err := config.LoadFromEnv("config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	campaignSvc := campaign.NewService(postgres.NewCampaignRepo(db))
	resolver := dispatch.NewResolver(postgres.NewSubscriberRepo(db))
	renderer := render.NewRenderer(postgres.NewTemplateRepo(db), cfg.Render.CacheTTL())
	injector := dispatch.NewTrackingInjector(cfg.Tracking.BaseURL)

	prov, err := newProvider(ctx, cfg.Provider)
	if err != nil {
		log.Fatalf("provider: %v", err)
	}

	sender := dispatch.NewBatchSender(postgres.NewSendRepo(db), renderer, injector, prov, dispatch.SenderOptions{
		FromEmail:  cfg.Provider.FromEmail,
		FromName:   cfg.Provider.FromName,
		BatchSize:  cfg.Dispatch.BatchSize,
		BatchDelay: cfg.Dispatch.BatchDelay(),
		MaxRetries: cfg.Dispatch.MaxRetries,
		RetryBase:  cfg.Dispatch.RetryBaseDelay(),
	})

	dispatcher := dispatch.NewDispatcher(campaignSvc, resolver, sender, cfg.Dispatch.PollInterval())
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	aggregator := metrics.NewAggregator(postgres.NewMetricsRepo(db))
	go runDailyAggregation(ctx, aggregator, cfg.Metrics.RunHourUTC)

	logger.Info("worker started",
		"poll_interval", cfg.Dispatch.PollInterval().String(),
		"aggregation_hour_utc", cfg.Metrics.RunHourUTC)

	<-ctx.Done()
	logger.Info("worker shutting down")
}

// runDailyAggregation wakes at the configured UTC hour each day and rolls
// up the previous day.
func runDailyAggregation(ctx context.Context, agg *metrics.Aggregator, hourUTC int) {
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}

		yesterday := time.Now().UTC().AddDate(0, 0, -1)
		if err := agg.RunForDate(ctx, yesterday); err != nil {
			logger.Error("daily aggregation failed", "error", err.Error())
		}
	}
}

func newProvider(ctx context.Context, cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Type {
	case "ses":
		return provider.NewSES(ctx, cfg.SESRegion, cfg.SESAccessKey, cfg.SESSecretKey)
	default:
		return provider.NewSparkPost(cfg.APIKey, cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	}
}
