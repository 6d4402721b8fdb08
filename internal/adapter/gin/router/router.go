package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"account-service/internal/adapter/gin/handler"
	"account-service/internal/adapter/gin/middleware"
	"account-service/internal/metrics"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker is a dependency probed by GET /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(
	userHandler *handler.UserHandler,
	m *metrics.Metrics,
	checks map[string]HealthChecker,
	log *zap.Logger,
) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Metrics(m))

	router.GET("/health", health(m, checks))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// API v1 routes
	v1 := router.Group("/v1")
	{
		v1.POST("/register", userHandler.Register)
		v1.POST("/login", userHandler.Login)

		users := v1.Group("/users")
		{
			users.GET("", userHandler.ListUsers)
			users.GET("/:id", userHandler.GetUser)
		}
	}

	return router
}

func health(m *metrics.Metrics, checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			err := check.Ping(ctx)
			m.SetDependencyHealth(name, err == nil)
			if err != nil {
				status = http.StatusServiceUnavailable
				results[name] = "unhealthy"
				continue
			}
			results[name] = "healthy"
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":  state,
			"service": "account-service",
			"checks":  results,
		})
	}
}
