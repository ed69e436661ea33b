package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/RaMarWilson1/bookbetter/internal/calendar"
	"github.com/RaMarWilson1/bookbetter/internal/handler"
	"github.com/RaMarWilson1/bookbetter/internal/realtime"
	"github.com/RaMarWilson1/bookbetter/internal/repository"
	"github.com/RaMarWilson1/bookbetter/internal/service"
	"github.com/RaMarWilson1/bookbetter/pkg/cache"
	"github.com/RaMarWilson1/bookbetter/pkg/config"
	"github.com/RaMarWilson1/bookbetter/pkg/database"
	"github.com/RaMarWilson1/bookbetter/pkg/events"
	"github.com/RaMarWilson1/bookbetter/pkg/jobs"
	"github.com/RaMarWilson1/bookbetter/pkg/logger"
	"github.com/RaMarWilson1/bookbetter/pkg/signing"
)

// @title BookBetter API
// @version 1.0.0
// @description Availability and booking core for appointment-based businesses
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
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildApp(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer deps.close()

	deps.start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, deps, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Warn("server shutdown", zap.Error(err))
		}
	}()

	logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
	logr.Info("server stopped")
}

// app holds the wired dependencies shared by the router and background workers.
type app struct {
	db     interface{ Close() error }
	redis  interface{ Close() error }
	checks map[string]handler.Pinger

	metrics       *service.MetricsService
	auth          *service.AuthService
	tenants       *repository.TenantRepository
	availability  *service.AvailabilityService
	reservations  *service.ReservationService
	bookings      *service.BookingService
	payments      *service.PaymentService
	exports       *service.ExportService
	idempotency   *service.IdempotencyService
	links         *signing.TokenSigner
	hub           *realtime.Hub
	notifications *jobs.Queue
	reminders     *service.ReminderService
	logger        *zap.Logger
}

func buildApp(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a := &app{db: db, logger: logr, checks: map[string]handler.Pinger{"postgres": db}}

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, idempotent replay disabled", zap.Error(err))
	} else {
		a.redis = redisClient
		a.checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	policy, err := calendar.ParseBufferPolicy(cfg.Booking.BufferPolicy)
	if err != nil {
		return nil, err
	}

	validate := validator.New()
	a.metrics = service.NewMetricsService()
	bus := events.NewBus(logr)

	a.tenants = repository.NewTenantRepository(db)
	services := repository.NewServiceRepository(db)
	schedules := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	store := repository.NewReservationStore(db, cfg.Booking.LockTimeout)

	a.auth = service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	a.links = signing.NewTokenSigner(cfg.ManageLinks.Secret, cfg.ManageLinks.TTL)

	a.availability = service.NewAvailabilityService(a.tenants, services, schedules, bookingRepo, db, a.metrics, validate, logr,
		service.AvailabilityConfig{BufferPolicy: policy, MaxRangeDays: cfg.Booking.MaxRangeDays})
	a.reservations = service.NewReservationService(a.tenants, services, schedules, store, bus, a.links, a.metrics, validate, logr,
		service.ReservationConfig{
			BufferPolicy:   policy,
			StaffSelection: cfg.Booking.StaffSelection,
			MaxAttempts:    cfg.Booking.MaxAttempts,
			RetryBaseDelay: cfg.Booking.RetryBaseDelay,
			RetryMaxDelay:  cfg.Booking.RetryMaxDelay,
		})
	a.bookings = service.NewBookingService(bookingRepo, a.tenants, bus, a.metrics, validate, logr)
	a.payments = service.NewPaymentService(a.bookings, signing.NewWebhookSigner(cfg.Payments.WebhookSecret, cfg.Payments.WebhookTolerance), validate, logr)
	a.exports = service.NewExportService(bookingRepo, a.tenants, validate, logr, nil, nil)

	cacheSvc := service.NewCacheService(cacheRepo, a.metrics, cfg.Idempotency.TTL, logr, cfg.Idempotency.Enabled)
	a.idempotency = service.NewIdempotencyService(cacheSvc, cfg.Redis.KeyPrefix, cfg.Idempotency.TTL, logr)

	if cfg.Notifications.Enabled {
		var sender service.Sender = service.NewLogSender(logr)
		if cfg.Notifications.WebhookURL != "" {
			sender = service.NewWebhookSender(cfg.Notifications.WebhookURL, cfg.Notifications.WebhookSecret,
				cfg.Notifications.Timeout, cfg.Notifications.RatePerSecond)
		}
		notifier := service.NewNotificationService(notificationRepo, sender, a.metrics, logr)
		a.notifications = jobs.NewQueue("notifications", notifier.Deliver, jobs.QueueConfig{
			Workers:      cfg.Notifications.Workers,
			BufferSize:   cfg.Notifications.BufferSize,
			MaxRetries:   cfg.Notifications.Retries,
			RetryDelay:   cfg.Notifications.RetryDelay,
			Logger:       logr,
			OnDeadLetter: notifier.DeadLetter,
		})
		notifier.UseQueue(a.notifications)
		notifier.Subscribe(bus)
	}

	if cfg.Reminders.Enabled {
		a.reminders = service.NewReminderService(bookingRepo, bus, cfg.Reminders.Interval, cfg.Reminders.BatchSize, logr)
	}

	if cfg.Realtime.Enabled {
		a.hub = realtime.NewHub(cfg.CORS.AllowedOrigins, logr)
		a.hub.Subscribe(bus)
	}
	return a, nil
}

func (a *app) start(ctx context.Context) {
	if a.notifications != nil {
		a.notifications.Start(ctx)
	}
	if a.reminders != nil {
		a.reminders.Start(ctx)
	}
}

func (a *app) close() {
	if a.reminders != nil {
		a.reminders.Stop()
	}
	if a.notifications != nil {
		a.notifications.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close postgres", zap.Error(err))
	}
}
