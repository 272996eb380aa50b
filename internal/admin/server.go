package admin

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"logtrigger/internal/config"
	"logtrigger/internal/logger"
	"logtrigger/pkg/middleware"
	"logtrigger/pkg/ratelimit"
	"logtrigger/pkg/tracing"
)

// NewRouter builds the admin API. The rate limiter only guards /api routes so
// that health checks and scrapes are never throttled.
func NewRouter(ctx context.Context, cfg config.ServerConfig, h *Handler, log logger.Logger, serviceName string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(tracing.GinMiddleware(serviceName))
	router.Use(middleware.LoggerMiddleware(log))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.RateLimitMiddleware(ctx, ratelimit.RateLimitConfig{
			RPS:             cfg.RateLimit.RPS,
			Burst:           cfg.RateLimit.Burst,
			CleanupInterval: time.Duration(cfg.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(cfg.RateLimit.MaxAge) * time.Second,
		})
		router.Use(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") {
				limiter(c)
				return
			}
			c.Next()
		})
	}

	h.RegisterRoutes(router)
	return router
}

func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}
}
