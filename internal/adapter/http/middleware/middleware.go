package middleware

import (
	"fmt"
	"net/http"
	"time"

	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/internal/crypto"
	"payment-orchestrator/pkg/apperror"
	"payment-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// HeaderAPIKey carries the merchant's opaque payments/refunds credential.
	HeaderAPIKey = "X-API-Key"

	// Context keys
	CtxMerchantID = "merchant_id"
	CtxAccessKey  = "access_key"
	CtxApiKeyID   = "api_key_id"
)

// APIKeyAuth creates a middleware that authenticates the payments/refunds
// surface against an opaque X-API-Key credential: hash, look up, check
// active, touch last-used best-effort.
func APIKeyAuth(apiKeyRepo ports.ApiKeyRepository, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			response.Error(c, apperror.ErrInvalidAPIKey())
			c.Abort()
			return
		}

		record, err := apiKeyRepo.GetByHashedKey(c.Request.Context(), crypto.HashAPIKey(key))
		if err != nil {
			log.Error().Err(err).Msg("failed to fetch api key")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if record == nil || !record.Active {
			response.Error(c, apperror.ErrInvalidAPIKey())
			c.Abort()
			return
		}

		if err := apiKeyRepo.TouchLastUsed(c.Request.Context(), record.ID, time.Now()); err != nil {
			log.Warn().Err(err).Str("api_key_id", record.ID.String()).Msg("failed to record api key last-used")
		}

		c.Set(CtxMerchantID, record.MerchantID)
		c.Set(CtxApiKeyID, record.ID)

		c.Next()
	}
}

// JWTAuth creates a middleware that validates JWT tokens for dashboard routes.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		tokenStr := authHeader[7:]
		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxMerchantID, claims.MerchantID)
		c.Set(CtxAccessKey, claims.AccessKey)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.Internal(fmt.Errorf("panic: %v", r)))
				c.Abort()
			}
		}()
		c.Next()
	}
}
