package grpc

import (
	"context"
	"errors"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	accountv1 "account-service/api/account/v1"
	"account-service/internal/usecase/user"
)

// AccountServiceServer implements the gRPC account service
type AccountServiceServer struct {
	accountv1.UnimplementedAccountServiceServer
	svc user.Service
}

// NewAccountServiceServer creates a new gRPC account service server
func NewAccountServiceServer(svc user.Service) *AccountServiceServer {
	return &AccountServiceServer{svc: svc}
}

// Register handles gRPC Register request
func (s *AccountServiceServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.Register(ctx, user.RegisterRequest{
		Username:          stringField(req, "username"),
		Email:             stringField(req, "email"),
		Password:          stringField(req, "password"),
		ConfirmedPassword: stringField(req, "confirmedpassword", "confirmed_password"),
	})
	if err != nil {
		return nil, contextStatus(err)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	return newStruct(map[string]any{
		"message": "Registration successful. Welcome, " + res.DisplayUsername + ".",
		"user":    profileValue(res.User),
	})
}

// Login handles gRPC Login request
func (s *AccountServiceServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.Login(ctx, user.LoginRequest{
		Username: stringField(req, "username"),
		Password: stringField(req, "password"),
	})
	if err != nil {
		return nil, contextStatus(err)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	return newStruct(map[string]any{
		"message": "Login successful.",
		"user":    profileValue(res.User),
	})
}

// GetUser handles gRPC GetUser request
func (s *AccountServiceServer) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.svc.GetUser(ctx, user.GetUserRequest{ID: stringField(req, "id")})
	if err != nil {
		return nil, err
	}

	return newStruct(map[string]any{"user": profileValue(p)})
}

// ListUsers handles gRPC ListUsers request
func (s *AccountServiceServer) ListUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	page, err := intField(req, "page")
	if err != nil {
		return nil, err
	}
	limit, err := intField(req, "limit")
	if err != nil {
		return nil, err
	}

	resp, err := s.svc.ListUsers(ctx, user.ListUsersRequest{
		Query: stringField(req, "q"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	users := make([]any, len(resp.Users))
	for i := range resp.Users {
		users[i] = profileValue(&resp.Users[i])
	}

	out := map[string]any{"users": users}
	if pg := resp.Pagination; pg != nil {
		out["pagination"] = map[string]any{
			"total":       pg.Total,
			"page":        pg.Page,
			"limit":       pg.Limit,
			"total_pages": pg.TotalPages,
		}
	}
	return newStruct(out)
}

// stringField returns the first non-empty string among names, or "" when
// none is set.
func stringField(s *structpb.Struct, names ...string) string {
	for _, name := range names {
		if v := s.GetFields()[name].GetStringValue(); v != "" {
			return v
		}
	}
	return ""
}

// contextStatus reports a cancelled or expired request as Canceled or
// DeadlineExceeded instead of the wrapping error's status.
func contextStatus(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return err
}

// intField accepts a JSON number or a numeric string, as the gateway passes
// query parameters through unchanged.
func intField(s *structpb.Struct, name string) (int64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if k.NumberValue != float64(int64(k.NumberValue)) {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
		}
		return int64(k.NumberValue), nil
	case *structpb.Value_StringValue:
		if k.StringValue == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(k.StringValue, 10, 64)
		if err != nil {
			return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
		}
		return n, nil
	case *structpb.Value_NullValue:
		return 0, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
}

func profileValue(p *user.Profile) map[string]any {
	return map[string]any{
		"id":         p.ID,
		"username":   p.Username,
		"email":      p.Email,
		"created_at": p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}
