// Package router assembles the HTTP surface: global middleware, the client
// workflow routes, operator routes and the payment webhook.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/coaching-core-api/internal/handler"
	"github.com/noah-isme/coaching-core-api/internal/middleware"
	"github.com/noah-isme/coaching-core-api/internal/models"
	"github.com/noah-isme/coaching-core-api/internal/service"
	"github.com/noah-isme/coaching-core-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/coaching-core-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/coaching-core-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Workflow *handler.WorkflowHandler
	Webhook  *handler.PaymentWebhookHandler
	Payouts  *handler.PayoutHandler
	Slots    *handler.SlotHandler
	Coaches  *handler.CoachHandler
	Metrics  *handler.MetricsHandler
}

// Options carries the cross-cutting dependencies of the router.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Tokens         middleware.TokenValidator
}

// New builds the gin engine.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics, "/health", "/ready", "/metrics"))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)

	// Signed by the gateway, not by a user token.
	api.POST("/payments/webhook", h.Webhook.Receive)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))

	secured.GET("/coaches", h.Coaches.List)
	secured.GET("/coaches/:coachId", h.Coaches.Get)
	secured.GET("/coaches/:coachId/slots", h.Slots.ListAvailable)
	secured.GET("/coaches/:coachId/payouts", middleware.RBAC(string(models.RoleAdmin), "SELF"), h.Payouts.ListForCoach)
	secured.GET("/slots/:id", h.Slots.Get)

	workflow := secured.Group("/enrollment-workflow")
	workflow.Use(middleware.RequireRoles(models.RoleClient, models.RoleEmployee, models.RoleAdmin))
	{
		workflow.POST("", h.Workflow.Start)
		workflow.GET("", h.Workflow.Get)
		workflow.DELETE("", h.Workflow.Cancel)
		workflow.PUT("/course", h.Workflow.SelectCourse)
		workflow.GET("/coaches", h.Workflow.Coaches)
		workflow.PUT("/coach", h.Workflow.SelectCoach)
		workflow.GET("/slots", h.Workflow.Slots)
		workflow.PUT("/slot", h.Workflow.SelectSlot)
		workflow.POST("/next", h.Workflow.Next)
		workflow.POST("/previous", h.Workflow.Previous)
		workflow.POST("/checkout", h.Workflow.Checkout)
		workflow.POST("/submit", h.Workflow.Submit)
	}

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/payouts", h.Payouts.List)
		admin.POST("/payouts", middleware.Audit(opts.Logger, "generate", "payout"), h.Payouts.Generate)
		admin.GET("/payouts/:id", h.Payouts.Get)
		admin.GET("/payouts/:id/line-items", h.Payouts.LineItems)
		admin.PATCH("/payouts/:id/status", middleware.Audit(opts.Logger, "update_status", "payout"), h.Payouts.UpdateStatus)

		admin.GET("/coaches/:coachId/payouts/preview", h.Payouts.Preview)
		admin.GET("/coaches/:coachId/payout-settings", h.Payouts.GetSettings)
		admin.PUT("/coaches/:coachId/payout-settings", middleware.Audit(opts.Logger, "upsert", "payout_settings"), h.Payouts.UpsertSettings)
		admin.DELETE("/coaches/cache", middleware.Audit(opts.Logger, "invalidate", "coach_cache"), h.Coaches.InvalidateCache)

		admin.POST("/slots/:id/reserve", middleware.Audit(opts.Logger, "reserve", "time_slot"), h.Slots.Reserve)
		admin.POST("/slots/:id/release", middleware.Audit(opts.Logger, "release", "time_slot"), h.Slots.Release)
	}

	return r
}
