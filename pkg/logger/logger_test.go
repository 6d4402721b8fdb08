package logger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestNewWithConfig_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := NewWithConfig(Config{
		Level:       "info",
		Format:      "json",
		OutputPath:  path,
		ServiceName: "account-service",
	})
	require.NoError(t, err)
	l.Info("hello")
	assert.FileExists(t, path)
}

func TestWithContext_AddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = context.WithValue(ctx, UserIDKey, "user-1")

	WithContext(ctx, base).Info("with fields")
	WithContext(context.Background(), base).Info("without fields")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "user-1", entries[0].ContextMap()["user_id"])
	assert.Empty(t, entries[1].ContextMap())
}

func TestRequestIDInterceptor(t *testing.T) {
	interceptor := RequestIDInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/account.v1.AccountService/Login"}

	capture := func(ctx context.Context, _ any) (any, error) {
		return GetRequestID(ctx), nil
	}

	t.Run("generates an id", func(t *testing.T) {
		id, err := interceptor(context.Background(), nil, info, capture)
		require.NoError(t, err)
		assert.Len(t, id, 36)
	})

	t.Run("reuses a forwarded id", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "from-gateway"))
		id, err := interceptor(ctx, nil, info, capture)
		require.NoError(t, err)
		assert.Equal(t, "from-gateway", id)
	})
}

func TestGormLogger_DropsParamsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), 0.2, "warn")
	assert.Equal(t, gormlogger.Warn, gl.LogLevel)

	sql, params := gl.ParamsFilter(context.Background(), "INSERT INTO users VALUES (?)", "$2a$10$secret")
	assert.Equal(t, "INSERT INTO users VALUES (?)", sql)
	assert.Nil(t, params)

	gl.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "gorm slow query", logs.All()[0].Message)

	silent := gl.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Equal(t, 1, logs.Len())
}
