package middleware

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"account-service/pkg/logger"
)

// LoggingInterceptor writes one access log line per unary call. Request and
// response payloads are never logged since they carry passwords.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("client_ip", clientIP(ctx)),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}

		logger.WithContext(ctx, log).Log(levelFor(code), "grpc request", fields...)
		return resp, err
	}
}

// RecoveryInterceptor turns a handler panic into codes.Internal.
func RecoveryInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithContext(ctx, log).Error("panic in grpc handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// levelFor keeps expected client outcomes out of the error log.
func levelFor(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK, codes.InvalidArgument, codes.AlreadyExists, codes.Unauthenticated, codes.NotFound, codes.Canceled:
		return zapcore.InfoLevel
	case codes.DeadlineExceeded, codes.Unavailable:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// clientIP extracts the client IP address from the gRPC context.
func clientIP(ctx context.Context) string {
	// Requests through the gateway carry the original client address
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if xff := md.Get("x-forwarded-for"); len(xff) > 0 {
			return xff[0]
		}
		if xri := md.Get("x-real-ip"); len(xri) > 0 {
			return xri[0]
		}
	}

	if p, ok := peer.FromContext(ctx); ok {
		return p.Addr.String()
	}

	return "unknown"
}
