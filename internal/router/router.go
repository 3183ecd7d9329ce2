package router

import (
	"time"

	"creditbot/config"
	"creditbot/internal/app"
	"creditbot/internal/handler"
	"creditbot/internal/middleware"
	"creditbot/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Setup wires the HTTP surface: processing and payment webhooks, payment landing
// pages, health, metrics and the admin API.
func Setup(cfg *config.Config, db *gorm.DB, svc *app.Services, limiter *middleware.InMemoryRateLimiter, botUsername string, log *logrus.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	if limiter == nil {
		limiter = middleware.NewInMemoryRateLimiter(300, 60*time.Second)
	}

	processingWebhook := handler.NewProcessingWebhookHandler(svc.Tasks, log)
	paymentWebhook := handler.NewPaymentWebhookHandler(svc.Payments, log)
	pages := handler.NewPaymentPagesHandler(botUsername)
	health := handler.NewHealthHandler(db)
	admin := handler.NewAdminHandler(svc.Stats, svc.Ledger, svc.Withdrawals, svc.Users, log)

	r.GET("/health", health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Webhooks are not rate limited: the senders retry until they get a 2xx.
	r.POST(cfg.Processing.WebhookPath, processingWebhook.Handle)
	r.POST(cfg.Gateway.WebhookPath, paymentWebhook.Handle)

	payment := r.Group("/payment", middleware.RateLimit(limiter))
	{
		payment.GET("/success", pages.Success)
		payment.GET("/fail", pages.Fail)
		payment.GET("/back", pages.Back)
	}

	// The feed authenticates from the query string; see ws.ServeFeed.
	r.GET("/api/v1/admin/feed", middleware.RateLimit(limiter), ws.ServeFeed(&cfg.JWT, cfg.Admin, svc.Feed, log))

	adminGroup := r.Group("/api/v1/admin",
		middleware.RateLimit(limiter),
		middleware.AuthRequired(&cfg.JWT),
		middleware.AdminRequired(cfg.Admin),
	)
	{
		adminGroup.GET("/stats", admin.Dashboard)
		adminGroup.GET("/withdrawals", admin.ListWithdrawals)
		adminGroup.POST("/withdrawals/:id/approve", admin.ApproveWithdrawal)
		adminGroup.POST("/withdrawals/:id/reject", admin.RejectWithdrawal)
		adminGroup.GET("/users/:id", admin.UserLedger)
		adminGroup.POST("/users/:id/credits", admin.AdjustCredits)
	}

	return r
}
