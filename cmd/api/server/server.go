package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"account-service/cmd/api/di"
	"account-service/internal/config"
)

// Server struct holds all server dependencies
type Server struct {
	Config *config.Config
	Logger *zap.Logger
	GRPC   *grpc.Server
	HTTP   *http.Server
	Gin    *http.Server

	gatewayConn *grpc.ClientConn
}

// New creates the gRPC, gateway and Gin servers over the container's services.
func New(cfg *config.Config, l *zap.Logger, c *di.Container) (*Server, error) {
	s := &Server{
		Config: cfg,
		Logger: l,
		GRPC:   SetupGRPC(c.GRPCService, c.Metrics, l),
		Gin:    SetupGinServer(c.GinHandler, c.Metrics, c.HealthChecks, ginAddress(cfg), cfg.App.Environment, l),
	}

	httpServer, conn, err := SetupHTTPGateway(gatewayTarget(cfg), httpAddress(cfg), l)
	if err != nil {
		return nil, err
	}
	s.HTTP = httpServer
	s.gatewayConn = conn

	return s, nil
}

// Start listens on the configured ports and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	var listeners []net.Listener
	closeAll := func() {
		for _, lis := range listeners {
			_ = lis.Close()
		}
	}

	for _, addr := range []string{grpcAddress(s.Config), httpAddress(s.Config), ginAddress(s.Config)} {
		lis, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			closeAll()
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		listeners = append(listeners, lis)
	}

	return s.Serve(ctx, listeners[0], listeners[1], listeners[2])
}

// Serve runs all three servers on the given listeners. When ctx is done, or
// any server fails, every server is shut down within the configured timeout.
func (s *Server) Serve(ctx context.Context, grpcLis, httpLis, ginLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger.Info("gRPC server running", zap.String("address", grpcLis.Addr().String()))
		if err := s.GRPC.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.Logger.Info("REST gateway running", zap.String("address", httpLis.Addr().String()))
		s.Logger.Info("Swagger UI available at", zap.String("url", "http://"+httpLis.Addr().String()+"/swagger/"))
		if err := s.HTTP.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP gateway: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.Logger.Info("Gin REST API running", zap.String("address", ginLis.Addr().String()))
		if err := s.Gin.Serve(ginLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gin server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

// shutdown stops the HTTP servers first so in-flight gateway calls can still
// reach gRPC, then drains gRPC.
func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.App.ShutdownTimeout)
	defer cancel()

	s.Logger.Info("starting graceful shutdown", zap.Duration("timeout", s.Config.App.ShutdownTimeout))

	var errs []error

	// Shutdown HTTP server
	s.Logger.Info("shutting down HTTP server...")
	if err := s.HTTP.Shutdown(shutdownCtx); err != nil {
		s.Logger.Error("failed to shutdown HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	// Shutdown Gin server
	s.Logger.Info("shutting down Gin server...")
	if err := s.Gin.Shutdown(shutdownCtx); err != nil {
		s.Logger.Error("failed to shutdown Gin server", zap.Error(err))
		errs = append(errs, fmt.Errorf("gin shutdown: %w", err))
	}

	if err := s.gatewayConn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("gateway connection close: %w", err))
	}

	// Shutdown gRPC server
	s.Logger.Info("shutting down gRPC server...")
	stopped := make(chan struct{})
	go func() {
		s.GRPC.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		s.Logger.Warn("gRPC graceful stop timed out, forcing stop")
		s.GRPC.Stop()
		<-stopped
	}

	return errors.Join(errs...)
}

// grpcAddress returns the gRPC server address
func grpcAddress(cfg *config.Config) string {
	return ":" + cfg.App.GRPCPort
}

// gatewayTarget is the loopback address the gateway dials.
func gatewayTarget(cfg *config.Config) string {
	return net.JoinHostPort("127.0.0.1", cfg.App.GRPCPort)
}

// httpAddress returns the HTTP server address
func httpAddress(cfg *config.Config) string {
	return ":" + cfg.App.HTTPPort
}

// ginAddress returns the Gin server address
func ginAddress(cfg *config.Config) string {
	return ":" + cfg.App.GinPort
}

