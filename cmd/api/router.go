package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/RaMarWilson1/bookbetter/api/swagger"
	"github.com/RaMarWilson1/bookbetter/internal/handler"
	"github.com/RaMarWilson1/bookbetter/internal/middleware"
	"github.com/RaMarWilson1/bookbetter/internal/models"
	"github.com/RaMarWilson1/bookbetter/pkg/config"
	"github.com/RaMarWilson1/bookbetter/pkg/logger"
	corsmiddleware "github.com/RaMarWilson1/bookbetter/pkg/middleware/cors"
	reqidmiddleware "github.com/RaMarWilson1/bookbetter/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, a *app, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))

	metricsHandler := handler.NewMetricsHandler(a.metrics, a.checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/snapshot", metricsHandler.Snapshot)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	availabilityHandler := handler.NewAvailabilityHandler(a.availability)
	bookingHandler := handler.NewBookingHandler(a.reservations, a.bookings, a.idempotency, a.links)
	paymentHandler := handler.NewPaymentHandler(a.payments)
	agendaHandler := handler.NewAgendaHandler(a.exports)
	authHandler := handler.NewAuthHandler(a.auth)

	staffRoles := middleware.RequireRoles(models.RolePro, models.RoleStaff)

	api := r.Group(cfg.APIPrefix)
	api.GET("/availability", availabilityHandler.Get)
	api.POST("/webhooks/payments", paymentHandler.Webhook)

	if cfg.Env != config.EnvProduction {
		api.POST("/dev/token", authHandler.IssueToken)
	}

	// Guests holding a manage link cancel without a session.
	api.POST("/bookings/:id/cancel", middleware.OptionalJWT(a.auth), bookingHandler.Cancel)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth))
	secured.GET("/me", authHandler.Me)
	secured.GET("/me/bookings", middleware.RequireRoles(models.RoleClient), bookingHandler.ListMine)

	create := []gin.HandlerFunc{middleware.RequireRoles(models.RoleClient)}
	if cfg.RateLimit.Enabled {
		create = append(create, middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware())
	}
	secured.POST("/bookings", append(create, bookingHandler.Create)...)
	secured.GET("/bookings/:id", bookingHandler.Get)
	secured.POST("/bookings/:id/confirm", staffRoles, bookingHandler.Confirm)
	secured.POST("/bookings/:id/complete", staffRoles, bookingHandler.Complete)
	secured.POST("/bookings/:id/no-show", staffRoles, bookingHandler.NoShow)
	secured.PATCH("/bookings/:id/notes", staffRoles, bookingHandler.UpdateNotes)

	tenants := secured.Group("/tenants/:tenantId", staffRoles, middleware.RequireTenantClaim("tenantId"))
	tenants.GET("/bookings", bookingHandler.ListTenant)
	tenants.GET("/agenda", agendaHandler.Download)

	if a.hub != nil {
		// Browsers cannot set headers on a websocket upgrade.
		realtimeHandler := handler.NewRealtimeHandler(a.hub, a.tenants, logr)
		api.GET("/tenants/:tenantId/events/ws",
			middleware.QueryJWT(a.auth, "token"),
			staffRoles,
			middleware.RequireTenantClaim("tenantId"),
			realtimeHandler.Stream,
		)
	}

	return r
}
