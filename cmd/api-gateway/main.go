package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/coaching-core-api/api/swagger"
	"github.com/noah-isme/coaching-core-api/internal/events"
	"github.com/noah-isme/coaching-core-api/internal/handler"
	"github.com/noah-isme/coaching-core-api/internal/payment"
	"github.com/noah-isme/coaching-core-api/internal/repository"
	"github.com/noah-isme/coaching-core-api/internal/router"
	"github.com/noah-isme/coaching-core-api/internal/scheduler"
	"github.com/noah-isme/coaching-core-api/internal/service"
	"github.com/noah-isme/coaching-core-api/pkg/cache"
	"github.com/noah-isme/coaching-core-api/pkg/config"
	"github.com/noah-isme/coaching-core-api/pkg/database"
	"github.com/noah-isme/coaching-core-api/pkg/logger"
	"github.com/noah-isme/coaching-core-api/pkg/webhook"
)

// @title Coaching Core API
// @version 1.0.0
// @description Slot ledger, enrollment workflow and coach payouts.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// Workflow sessions live in Redis, so it is required.
	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	gateway, err := newGateway(cfg)
	if err != nil {
		logr.Fatal("payment gateway unavailable", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	publisher, closePublisher := newPublisher(ctx, cfg, metrics, logr)
	defer closePublisher()

	cacheRepo := repository.NewCacheRepository(rdb, logr)
	slotRepo := repository.NewTimeSlotRepository(db, cfg.Workflow.Timezone)
	coachRepo := repository.NewCoachRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db, slotRepo)
	orderRepo := repository.NewPaymentOrderRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	settingsRepo := repository.NewPayoutSettingsRepository(db)
	sessionRepo := repository.NewWorkflowSessionRepository(cacheRepo, cfg.Workflow.SessionTTL)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.CoachTTL, logr, cfg.Cache.Enabled)
	coachSvc := service.NewCoachDirectoryService(coachRepo, cacheSvc, cfg.Cache.CoachTTL, logr)
	slotSvc := service.NewSlotService(slotRepo, metrics, cfg.Workflow.SlotWindowDays, logr)
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	workflowSvc := service.NewWorkflowService(service.WorkflowDeps{
		Sessions:    sessionRepo,
		Courses:     courseRepo,
		Coaches:     coachSvc,
		Slots:       slotSvc,
		Enrollments: enrollmentRepo,
		Orders:      orderRepo,
		Gateway:     gateway,
		Publisher:   publisher,
		Metrics:     metrics,
	}, service.WorkflowConfig{
		Location:       cfg.Workflow.Location(),
		PaymentTimeout: cfg.Payments.Timeout,
		Currency:       cfg.Payments.Currency,
	}, validate, logr)

	payoutSvc := service.NewPayoutService(payoutRepo, settingsRepo, coachSvc, publisher, metrics, service.PayoutConfig{
		Location:        cfg.Workflow.Location(),
		DefaultCurrency: cfg.Payouts.DefaultCurrency,
		NumberPrefix:    cfg.Payouts.NumberPrefix,
	}, validate, logr)

	if cfg.Scheduler.Enabled {
		go scheduler.New(workflowSvc, cfg.Scheduler.Interval, logr).Start(ctx)
	}

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metrics,
		Tokens:         tokenSvc,
	}, router.Handlers{
		Workflow: handler.NewWorkflowHandler(workflowSvc),
		Webhook:  handler.NewPaymentWebhookHandler(workflowSvc, webhook.NewSigner(cfg.Payments.WebhookSecret, 5*time.Minute), validate, logr),
		Payouts:  handler.NewPayoutHandler(payoutSvc),
		Slots:    handler.NewSlotHandler(slotSvc),
		Coaches:  handler.NewCoachHandler(coachSvc),
		Metrics:  handler.NewMetricsHandler(metrics, readinessChecks(db, rdb)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newGateway(cfg *config.Config) (payment.Gateway, error) {
	if !cfg.Payments.Sandbox {
		return nil, errors.New("no live payment gateway adapter is configured; set PAYMENT_SANDBOX=true")
	}
	return payment.NewSandboxGateway(cfg.Payments.SandboxCheckoutURL), nil
}

// newPublisher returns the event publisher and a function releasing it. With
// events disabled or RabbitMQ unreachable, events are discarded.
func newPublisher(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (events.Publisher, func()) {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}, func() {}
	}
	sink, err := events.NewAMQPPublisher(cfg.Events.RabbitMQURL, logr)
	if err != nil {
		logr.Error("rabbitmq unavailable, domain events disabled", zap.Error(err))
		return events.NopPublisher{}, func() {}
	}
	dispatcher := events.NewDispatcher(sink, events.DispatcherConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.MaxRetries,
	}, logr, metrics.RecordEventDropped)
	dispatcher.Start(ctx)
	return dispatcher, func() {
		dispatcher.Stop()
		if err := sink.Close(); err != nil {
			logr.Warn("failed to close rabbitmq publisher", zap.Error(err))
		}
	}
}

func readinessChecks(db *sqlx.DB, rdb *redis.Client) map[string]handler.ReadinessCheck {
	return map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return cache.Ping(ctx, rdb)
		},
	}
}
