package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ginhandler "account-service/internal/adapter/gin/handler"
	ginrouter "account-service/internal/adapter/gin/router"
	"account-service/internal/metrics"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(
	handler *ginhandler.UserHandler,
	m *metrics.Metrics,
	checks map[string]ginrouter.HealthChecker,
	ginAddr string,
	environment string,
	l *zap.Logger,
) *http.Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin router with all middleware and routes
	router := ginrouter.SetupRouter(handler, m, checks, l)

	l.Info("Gin REST API configured", zap.String("address", ginAddr))

	return &http.Server{
		Addr:              ginAddr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
