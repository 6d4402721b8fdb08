// Package gateway exposes the gRPC account service as REST/JSON.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	accountv1 "account-service/api/account/v1"
	"account-service/pkg/logger"
)

type call func(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)

// decodeFunc builds the request message from the HTTP request.
type decodeFunc func(r *http.Request, inbound runtime.Marshaler, pathParams map[string]string) (*structpb.Struct, error)

type route struct {
	method     string
	pattern    string
	fullMethod string
	invoke     call
	decode     decodeFunc
	status     int
}

// New returns a ServeMux that translates REST calls into AccountService RPCs
// on client. The request ID header is forwarded as gRPC metadata.
func New(client accountv1.AccountServiceClient, log *zap.Logger) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux(
		runtime.WithIncomingHeaderMatcher(headerMatcher),
		runtime.WithOutgoingHeaderMatcher(outgoingHeaderMatcher),
	)

	routes := []route{
		{http.MethodPost, "/v1/register", accountv1.AccountService_Register_FullMethodName, client.Register, decodeBody, http.StatusCreated},
		{http.MethodPost, "/v1/login", accountv1.AccountService_Login_FullMethodName, client.Login, decodeBody, http.StatusOK},
		{http.MethodGet, "/v1/users", accountv1.AccountService_ListUsers_FullMethodName, client.ListUsers, decodeQuery, http.StatusOK},
		{http.MethodGet, "/v1/users/{id}", accountv1.AccountService_GetUser_FullMethodName, client.GetUser, decodePath, http.StatusOK},
	}

	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, handler(mux, rt, log)); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return mux, nil
}

func handler(mux *runtime.ServeMux, rt route, log *zap.Logger) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		inbound, outbound := runtime.MarshalerForRequest(mux, r)

		annotated, err := runtime.AnnotateContext(ctx, mux, r, rt.fullMethod, runtime.WithHTTPPathPattern(rt.pattern))
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound, w, r, err)
			return
		}

		in, err := rt.decode(r, inbound, pathParams)
		if err != nil {
			runtime.HTTPError(annotated, mux, outbound, w, r, err)
			return
		}

		var md runtime.ServerMetadata
		resp, err := rt.invoke(annotated, in, grpc.Header(&md.HeaderMD), grpc.Trailer(&md.TrailerMD))
		annotated = runtime.NewServerMetadataContext(annotated, md)
		if err != nil {
			if status.Code(err) == codes.Internal || status.Code(err) == codes.Unavailable {
				logger.WithContext(annotated, log).Error("gateway call failed",
					zap.String("method", rt.fullMethod),
					zap.Error(err),
				)
			}
			runtime.HTTPError(annotated, mux, outbound, w, r, err)
			return
		}

		opts := mux.GetForwardResponseOptions()
		if rt.status != http.StatusOK {
			opts = append(opts, writeStatus(rt.status))
		}
		runtime.ForwardResponseMessage(annotated, mux, outbound, w, r, resp, opts...)
	}
}

func decodeBody(r *http.Request, inbound runtime.Marshaler, _ map[string]string) (*structpb.Struct, error) {
	in := &structpb.Struct{}
	if err := inbound.NewDecoder(r.Body).Decode(in); err != nil && err != io.EOF {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request body: %v", err)
	}
	return in, nil
}

func decodeQuery(r *http.Request, _ runtime.Marshaler, _ map[string]string) (*structpb.Struct, error) {
	q := r.URL.Query()
	fields := make(map[string]*structpb.Value, 3)
	for _, key := range []string{"q", "page", "limit"} {
		if v := q.Get(key); v != "" {
			fields[key] = structpb.NewStringValue(v)
		}
	}
	return &structpb.Struct{Fields: fields}, nil
}

func decodePath(_ *http.Request, _ runtime.Marshaler, pathParams map[string]string) (*structpb.Struct, error) {
	id, ok := pathParams["id"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "missing parameter id")
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id": structpb.NewStringValue(id),
	}}, nil
}

// writeStatus replaces the default 200 on success.
func writeStatus(code int) func(context.Context, http.ResponseWriter, proto.Message) error {
	return func(_ context.Context, w http.ResponseWriter, _ proto.Message) error {
		w.WriteHeader(code)
		return nil
	}
}

func headerMatcher(key string) (string, bool) {
	if strings.EqualFold(key, logger.RequestIDHeader) {
		return logger.RequestIDHeader, true
	}
	return runtime.DefaultHeaderMatcher(key)
}

func outgoingHeaderMatcher(key string) (string, bool) {
	if key == logger.RequestIDHeader {
		return textproto.CanonicalMIMEHeaderKey(key), true
	}
	return fmt.Sprintf("%s%s", runtime.MetadataHeaderPrefix, key), true
}
