package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"

	accountv1 "account-service/api/account/v1"
	grpcadapter "account-service/internal/adapter/grpc"
	"account-service/internal/adapter/grpc/middleware"
	"account-service/internal/metrics"
	"account-service/pkg/logger"
)

// SetupGRPC creates and configures the gRPC server.
// Recovery sits innermost so panics are still logged and counted.
func SetupGRPC(svc *grpcadapter.AccountServiceServer, m *metrics.Metrics, l *zap.Logger) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RequestIDInterceptor(),
			middleware.LoggingInterceptor(l),
			m.UnaryServerInterceptor(),
			middleware.RecoveryInterceptor(l),
		),
	)
	accountv1.RegisterAccountServiceServer(grpcServer, svc)

	return grpcServer
}
