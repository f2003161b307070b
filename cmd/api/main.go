package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-orchestrator/config"
	httpHandler "payment-orchestrator/internal/adapter/http/handler"
	pgStorage "payment-orchestrator/internal/adapter/storage/postgres"
	redisStorage "payment-orchestrator/internal/adapter/storage/redis"
	"payment-orchestrator/internal/breaker"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/idempotency"
	"payment-orchestrator/internal/provider"
	"payment-orchestrator/internal/service"
	"payment-orchestrator/internal/worker"
	"payment-orchestrator/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Secure Payment Gateway")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	merchantRepo := pgStorage.NewMerchantRepo(pool)
	apiKeyRepo := pgStorage.NewApiKeyRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	refundRepo := pgStorage.NewRefundRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	webhookRepo := pgStorage.NewWebhookRepository(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	webhookQueue := redisStorage.NewWebhookQueue(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Provider registry: each simulated processor is registered under its
	// own name so the saga and breaker manager can address it uniformly.
	providers := provider.NewRegistry()
	providers.Register(provider.NewStripe(cfg.Provider.StripeWebhookSecret))
	providers.Register(provider.NewVNPay(cfg.Provider.VNPaySecret))

	// Per-provider circuit breaker.
	breakerCfg := breaker.DefaultConfig()
	breakerCfg.Timeout = cfg.Breaker.ResetTimeout
	breakerCfg.ConsecutiveFailures = cfg.Breaker.FailureThreshold
	breakerCfg.CallTimeout = cfg.Breaker.Timeout
	breakerMgr := breaker.NewManager(breakerCfg, log)

	// Outbound webhook delivery and its durable retry worker.
	webhookSvc := service.NewWebhookService(webhookRepo, webhookQueue, &http.Client{Timeout: 10 * time.Second}, cfg.Webhook.Secret, cfg.Webhook.AllowHTTP, cfg.Webhook.MaxRetries, cfg.Webhook.RetryDelayDurations(), log)
	webhookWorker := worker.New(webhookSvc, webhookQueue, log, cfg.Webhook.SweepInterval)

	// Two-tier idempotency engine, gated in front of the mutating payment
	// and refund routes.
	idempotencyEngine := idempotency.NewEngine(idempotencyCache, idempotencyRepo, transactor, cfg.Idempotency.TTL)

	// Initialize business services
	authSvc := service.NewAuthService(merchantRepo, apiKeyRepo, hashSvc, encSvc, tokenSvc)
	paymentSvc := service.NewPaymentService(paymentRepo, txRepo, auditSvc, providers, breakerMgr, webhookSvc, transactor, log)
	refundSvc := service.NewRefundService(paymentRepo, refundRepo, txRepo, auditSvc, providers, breakerMgr, webhookSvc, transactor, log)
	reportingSvc := service.NewReportingService(paymentRepo)
	merchantSvc := service.NewMerchantService(merchantRepo, encSvc)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Start the webhook delivery worker in the background.
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	go webhookWorker.Run(workerCtx)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		PaymentSvc:     paymentSvc,
		RefundSvc:      refundSvc,
		ReportingSvc:   reportingSvc,
		Providers:      providers,
		ApiKeyRepo:     apiKeyRepo,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		ReadyCheckers:  []ports.HealthChecker{pgHealth, redisHealth},
		Breaker:        breakerMgr,
		MerchantSvc:    merchantSvc,
		AuditSvc:       auditSvc,
		IdempotencyEng: idempotencyEngine,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
