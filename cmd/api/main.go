package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/mailpilot/campaign-engine/internal/config"
	"github.com/mailpilot/campaign-engine/internal/handler"
	"github.com/mailpilot/campaign-engine/internal/infra/postgresql"
	"github.com/mailpilot/campaign-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/mailpilot/campaign-engine/internal/infra/redis"
	"github.com/mailpilot/campaign-engine/internal/observability"
	"github.com/mailpilot/campaign-engine/internal/provider"
	"github.com/mailpilot/campaign-engine/internal/ratelimit"
	"github.com/mailpilot/campaign-engine/internal/repository"
	"github.com/mailpilot/campaign-engine/internal/service"
	"github.com/mailpilot/campaign-engine/internal/tracking"
	"github.com/mailpilot/campaign-engine/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	var rdb *goredis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
	} else {
		logger.Warn("redis url not set, falling back to in-process rate limiting")
	}

	campaignRepo := repository.NewGormCampaignRepo(db)
	recipientRepo := repository.NewGormRecipientRepo(db)
	targetRuleRepo := repository.NewGormTargetRuleRepo(db)
	eventRepo := repository.NewGormEventRepo(db)
	contactStore := repository.NewGormContactStore(db)
	templateStore := repository.NewGormTemplateStore(db)

	metrics := observability.NewMetrics()

	emailProvider, err := buildProvider(ctx, cfg)
	if err != nil {
		logger.Fatal("provider initialization failed", zap.Error(err))
	}
	if emailProvider == nil {
		logger.Warn("no email provider configured, sends will be rejected")
	}

	instrumenter, recorder, err := buildTracking(cfg, recipientRepo, eventRepo, logger)
	if err != nil {
		logger.Fatal("tracking initialization failed", zap.Error(err))
	}
	if instrumenter == nil {
		logger.Warn("tracking secret not set, emails go out uninstrumented")
	}
	if recorder != nil {
		recorder.SetMetrics(metrics)
	}

	resolver, err := service.NewAudienceResolver(targetRuleRepo, contactStore, logger)
	if err != nil {
		logger.Fatal("audience resolver initialization failed", zap.Error(err))
	}

	fromEmail := cfg.FromEmail()
	if fromEmail == "" {
		fromEmail = "no-reply@localhost"
	}

	dispatcher, err := service.NewDispatcher(service.DispatcherDeps{
		Campaigns:     campaignRepo,
		Recipients:    recipientRepo,
		Contacts:      contactStore,
		Templates:     templateStore,
		Resolver:      resolver,
		Provider:      emailProvider,
		Instrumenter:  instrumenter,
		LimiterFor:    limiterFactory(rdb, logger),
		Logger:        logger,
		Metrics:       metrics,
		FromEmail:     fromEmail,
		FromName:      cfg.SESFromName,
		MaxRatePerSec: cfg.MaxRatePerSec,
	})
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}

	scheduler, err := service.NewScheduler(
		campaignRepo,
		dispatcher,
		cfg.SchedulerInterval,
		cfg.SchedulerMaxCampaigns,
		cfg.RatePerSec,
		logger,
	)
	if err != nil {
		logger.Fatal("scheduler initialization failed", zap.Error(err))
	}
	scheduler.SetMetrics(metrics)

	campaignService, err := service.NewCampaignService(campaignRepo, targetRuleRepo, recipientRepo, eventRepo, logger)
	if err != nil {
		logger.Fatal("campaign service initialization failed", zap.Error(err))
	}

	analyticsService, err := service.NewAnalyticsService(campaignRepo, recipientRepo)
	if err != nil {
		logger.Fatal("analytics service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterCampaignRoutes(app, campaignService, dispatcher, analyticsService); err != nil {
		logger.Fatal("campaign routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterInternalRoutes(app, scheduler, cfg.CronSecret); err != nil {
		logger.Fatal("internal routes registration failed", zap.Error(err))
	}
	if recorder != nil {
		if err := handler.RegisterTrackRoutes(app, recorder); err != nil {
			logger.Fatal("track routes registration failed", zap.Error(err))
		}
	}

	go func() {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("scheduler stopped with error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("campaign-engine api started",
		zap.Int("port", cfg.APIPort),
		zap.String("provider", cfg.Provider),
	)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildProvider(ctx context.Context, cfg *config.Config) (provider.EmailProvider, error) {
	switch cfg.Provider {
	case config.ProviderSES:
		return provider.NewSESProvider(ctx, provider.SESConfig{
			Region:    cfg.AWSRegion,
			AccessKey: cfg.AWSAccessKeyID,
			SecretKey: cfg.AWSSecretAccessKey,
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		})
	case config.ProviderWebhook:
		return provider.NewWebhookProvider(cfg.WebhookURL, cfg.FromEmail())
	default:
		return nil, nil
	}
}

func buildTracking(
	cfg *config.Config,
	recipients *repository.GormRecipientRepo,
	events *repository.GormEventRepo,
	logger *zap.Logger,
) (*tracking.Instrumenter, *tracking.Recorder, error) {
	if strings.TrimSpace(cfg.TrackingSecret) == "" {
		return nil, nil, nil
	}

	codec, err := tracking.NewCodec(cfg.TrackingSecret)
	if err != nil {
		return nil, nil, err
	}
	instrumenter, err := tracking.NewInstrumenter(codec, cfg.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}
	recorder, err := tracking.NewRecorder(codec, recipients, events, logger)
	if err != nil {
		return nil, nil, err
	}
	return instrumenter, recorder, nil
}

// limiterFactory prefers the shared redis window limiter so replicas pace a
// campaign together, and falls back to in-process interval pacing.
func limiterFactory(rdb *goredis.Client, logger *zap.Logger) ratelimit.Factory {
	return func(perSec float64) ratelimit.Limiter {
		if rdb != nil {
			limiter, err := infraredis.NewRateLimiter(rdb, perSec)
			if err == nil {
				return limiter
			}
			logger.Warn("redis rate limiter unavailable, using in-process pacing", zap.Error(err))
		}

		limiter, err := ratelimit.NewIntervalLimiter(perSec)
		if err != nil {
			// The dispatcher clamps rates before asking for a limiter;
			// reaching this means a programming error, pace at 1/sec.
			limiter, _ = ratelimit.NewIntervalLimiter(1)
		}
		return limiter
	}
}
