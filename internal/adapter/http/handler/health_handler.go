package handler

import (
	"net/http"
	"time"

	"payment-orchestrator/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// Readiness handles GET /ready — like /health but also reports any
// provider whose circuit breaker is currently open, since an open
// breaker means the service cannot usefully accept charges against
// that provider even though its own dependencies are healthy.
func Readiness(breaker ports.BreakerManager, providers ports.ProviderRegistry, checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		checks := make(map[string]depStatus)
		ready := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				checks[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				ready = false
			} else {
				checks[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		openBreakers := make([]string, 0)
		if breaker != nil && providers != nil {
			for _, name := range providers.Names() {
				if breaker.State(name) == "open" {
					openBreakers = append(openBreakers, name)
				}
			}
		}

		status := "ready"
		httpCode := http.StatusOK
		if !ready {
			status = "not_ready"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":        status,
			"checks":        checks,
			"open_breakers": openBreakers,
			"timestamp":     time.Now().Format(time.RFC3339),
		})
	}
}
