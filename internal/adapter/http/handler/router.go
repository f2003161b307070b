package handler

import (
	"payment-orchestrator/internal/adapter/http/middleware"
	redisStore "payment-orchestrator/internal/adapter/storage/redis"
	"payment-orchestrator/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	PaymentSvc     ports.PaymentService
	RefundSvc      ports.RefundService
	ReportingSvc   ports.ReportingService
	Providers      ports.ProviderRegistry
	ApiKeyRepo     ports.ApiKeyRepository
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	ReadyCheckers  []ports.HealthChecker
	Breaker        ports.BreakerManager
	MerchantSvc    ports.MerchantManagementService // nil = merchant management disabled
	AuditSvc       ports.AuditService              // nil = audit logging disabled
	IdempotencyEng ports.IdempotencyEngine         // nil = idempotency gate disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health checks
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/ready", Readiness(deps.Breaker, deps.Providers, deps.ReadyCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- Provider inbound webhooks (signature-verified, no HMAC gate) ---
	webhookHandler := NewProviderWebhookHandler(deps.PaymentSvc, deps.Providers, deps.Logger)
	v1.POST("/webhooks/:provider", rl("webhooks_inbound"), webhookHandler.Handle)

	// --- API-key-authenticated routes (merchant API) ---
	apiKeyAuth := middleware.APIKeyAuth(deps.ApiKeyRepo, deps.Logger)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	refundHandler := NewRefundHandler(deps.RefundSvc)

	// Idempotency gate: optional per-request via the Idempotency-Key
	// header, guards the mutating payment/refund routes only.
	idempotencyGate := func(c *gin.Context) { c.Next() }
	if deps.IdempotencyEng != nil {
		idempotencyGate = middleware.Idempotency(deps.IdempotencyEng, deps.Logger)
	}

	payments := v1.Group("/payments", apiKeyAuth)
	{
		payments.POST("", rl("payments"), idempotencyGate, paymentHandler.CreatePayment)
		payments.GET("", rl("dashboard"), paymentHandler.ListPayments)
		payments.GET("/:id", rl("dashboard"), paymentHandler.GetPayment)
		payments.POST("/:id/refunds", rl("payments_refund"), idempotencyGate, refundHandler.CreateRefund)
		payments.GET("/:id/refundable", rl("dashboard"), refundHandler.Refundable)
	}

	refunds := v1.Group("/refunds", apiKeyAuth)
	{
		refunds.GET("/:id", rl("dashboard"), refundHandler.GetRefund)
	}

	// --- JWT-authenticated routes (dashboard) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	dashboardHandler := NewDashboardHandler(deps.ReportingSvc)

	dashboard := v1.Group("/dashboard", jwtAuth)
	{
		dashboard.GET("/stats", rl("dashboard"), dashboardHandler.GetStats)
	}

	// --- Merchant management (JWT-authenticated) ---
	if deps.MerchantSvc != nil {
		merchantHandler := NewMerchantHandler(deps.MerchantSvc)
		merchants := v1.Group("/merchants/me", jwtAuth)
		{
			merchants.GET("", rl("dashboard"), merchantHandler.GetProfile)
			merchants.PUT("/webhook-url", rl("dashboard"), merchantHandler.UpdateWebhookURL)
			merchants.POST("/rotate-keys", rl("dashboard"), merchantHandler.RotateKeys)
		}
	}

	return r
}
