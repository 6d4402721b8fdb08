package server

import (
	"fmt"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	accountv1 "account-service/api/account/v1"
	"account-service/api/swagger"
	"account-service/internal/adapter/gateway"
)

// SetupHTTPGateway creates the REST gateway server and the client connection
// it uses to reach the gRPC server at grpcAddr. The caller closes the
// connection after the server has shut down.
func SetupHTTPGateway(grpcAddr string, httpAddr string, l *zap.Logger) (*http.Server, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial gRPC server: %w", err)
	}

	// Create gRPC-Gateway mux
	mux, err := gateway.New(accountv1.NewAccountServiceClient(conn), l)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to register gateway: %w", err)
	}

	// Create main HTTP mux to handle both API and Swagger UI
	httpMux := http.NewServeMux()

	// Serve the swagger JSON file
	httpMux.HandleFunc(swagger.Path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(swagger.Document)
	})

	// Serve Swagger UI
	httpMux.HandleFunc("/swagger/", httpSwagger.Handler(
		httpSwagger.URL(swagger.Path),
	))

	// Handle all other routes with gRPC Gateway mux
	httpMux.Handle("/", mux)

	l.Info("REST gateway configured", zap.String("address", httpAddr), zap.String("grpc_target", grpcAddr))

	return &http.Server{
		Addr:              httpAddr,
		Handler:           httpMux,
		ReadHeaderTimeout: 2 * time.Second,
	}, conn, nil
}
