package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/config"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/handlers"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/middleware"
)

func SetupRouter(
	cfg *config.Config,
	healthHandler *handlers.HealthHandler,
	verificationHandler *handlers.VerificationHandler,
	escrowHandler *handlers.EscrowHandler,
	webhookHandler *handlers.PaymentWebhookHandler,
	wsHandler *handlers.WSHandler,
	devHandler *handlers.DevHandler,
	tokens middleware.AccessTokenParser,
	verificationLimiter *limiter.Limiter,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	if devHandler != nil && cfg.Env != "production" {
		api.POST("/dev/token", devHandler.IssueToken)
	}

	// Лимит считается на пару (IP, субъект), чтобы перебор по одному субъекту
	// не расходовал лимит соседних.
	verification := api.Group("/verification/:subjectId")
	if verificationLimiter != nil {
		verification.Use(middleware.RateLimitMiddleware(verificationLimiter, middleware.ClientIPAndParamKey("subjectId")))
	}
	{
		verification.GET("/status", verificationHandler.Status)
		verification.POST("/issue", verificationHandler.Issue)
		verification.POST("/resend", verificationHandler.Resend)
		verification.POST("/check", verificationHandler.Check)
	}

	// Сброс эпизода обнуляет оба бюджета, поэтому доступен только сервису
	// регистрации при повторной регистрации или новом запросе сброса пароля.
	internal := api.Group("/internal")
	internal.Use(middleware.AuthMiddleware(tokens), middleware.RequireRole(middleware.RoleService))
	{
		internal.DELETE("/verification/:subjectId", verificationHandler.Restart)
	}

	escrow := api.Group("/escrow")
	escrow.Use(middleware.AuthMiddleware(tokens))
	{
		escrow.POST("", escrowHandler.Open)
		escrow.GET("", escrowHandler.List)
		escrow.GET("/:id", middleware.UUIDValidator("id"), escrowHandler.Get)
		escrow.POST("/:id/transitions", middleware.UUIDValidator("id"), escrowHandler.Transition)
	}

	webhooks := api.Group("/webhooks")
	webhooks.Use(middleware.WebhookSignature(cfg.Escrow.WebhookSecret, cfg.Escrow.WebhookTolerance, nil))
	{
		webhooks.POST("/payments", webhookHandler.PaymentCaptured)
	}

	api.GET("/ws", wsHandler.Handle)

	return r
}
