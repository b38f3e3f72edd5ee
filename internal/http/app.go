// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"
	"net/http"

	"indor_desk/platform/config"
	"indor_desk/platform/httpkit"
	"indor_desk/platform/logger"

	"github.com/gin-gonic/gin"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
	config.MetricsConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// MetricsProvider instruments requests and serves the scrape endpoint.
type MetricsProvider interface {
	Middleware() gin.HandlerFunc
	Handler() http.Handler
}

// App holds the fully initialized application dependencies.
// main.go populates it and hands it to the router.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is used for readiness checks (DB ping).
	Health HealthChecker
	// Metrics is optional; nil disables /metrics.
	Metrics MetricsProvider
	// AuthRateLimiter throttles the public auth routes per IP.
	AuthRateLimiter *httpkit.IPRateLimiter
	Modules         []Module
}
