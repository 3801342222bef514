// Command server runs the campaign engine API: campaign lifecycle
// endpoints, the public tracking routes, the provider webhook, and the
// tracking queue consumer.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-engine/internal/api"
	"github.com/ignite/campaign-engine/internal/config"
	"github.com/ignite/campaign-engine/internal/pkg/logger"
	"github.com/ignite/campaign-engine/internal/provider"
	"github.com/ignite/campaign-engine/internal/render"
	"github.com/ignite/campaign-engine/internal/repository/postgres"
	"github.com/ignite/campaign-engine/internal/service/campaign"
	"github.com/ignite/campaign-engine/internal/service/dispatch"
	"github.com/ignite/campaign-engine/internal/service/metrics"
	"github.com/ignite/campaign-engine/internal/tracking"
)

func main() {
	cfg, err := config.LoadFromEnv("config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories.
	campaignRepo := postgres.NewCampaignRepo(db)
	subscriberRepo := postgres.NewSubscriberRepo(db)
	templateRepo := postgres.NewTemplateRepo(db)
	sendRepo := postgres.NewSendRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	metricsRepo := postgres.NewMetricsRepo(db)

	// Services.
	campaignSvc := campaign.NewService(campaignRepo)
	aggregator := metrics.NewAggregator(metricsRepo)

	prov, err := newProvider(ctx, cfg.Provider)
	if err != nil {
		log.Fatalf("provider: %v", err)
	}
	injector := dispatch.NewTrackingInjector(cfg.Tracking.BaseURL)
	renderer := render.NewRenderer(templateRepo, cfg.Render.CacheTTL())
	sender := dispatch.NewBatchSender(sendRepo, renderer, injector, prov, dispatch.SenderOptions{
		FromEmail:  cfg.Provider.FromEmail,
		FromName:   cfg.Provider.FromName,
		BatchSize:  cfg.Dispatch.BatchSize,
		BatchDelay: cfg.Dispatch.BatchDelay(),
		MaxRetries: cfg.Dispatch.MaxRetries,
		RetryBase:  cfg.Dispatch.RetryBaseDelay(),
	})
	resolver := dispatch.NewResolver(subscriberRepo)
	dispatcher := dispatch.NewDispatcher(campaignSvc, resolver, sender, cfg.Dispatch.PollInterval())

	// Tracking pipeline.
	publisher := tracking.NewPublisher(rdb, cfg.Tracking.QueueKey)
	consumer := tracking.NewConsumer(rdb, cfg.Tracking.QueueKey, sendRepo, eventRepo, subscriberRepo)
	consumer.Start(ctx)
	defer consumer.Stop()

	tracker := tracking.NewHandler(publisher)
	webhook := tracking.NewWebhookHandler(sendRepo, eventRepo, subscriberRepo)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewServer(campaignSvc, dispatcher, aggregator, tracker, webhook).Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("api server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err.Error())
	}
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func newProvider(ctx context.Context, cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Type {
	case "ses":
		return provider.NewSES(ctx, cfg.SESRegion, cfg.SESAccessKey, cfg.SESSecretKey)
	default:
		return provider.NewSparkPost(cfg.APIKey, cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	}
}
