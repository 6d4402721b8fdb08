// Package accountv1 defines the account.v1.AccountService gRPC service.
//
// Messages are google.protobuf.Struct values so that the REST gateway and gRPC
// clients share one JSON shape:
//
//	Register   {username, email, password, confirmedpassword} -> {message, user}
//	Login      {username, password}                           -> {message, user}
//	GetUser    {id}                                           -> {user}
//	ListUsers  {q, page, limit}                               -> {users, pagination}
//
// where user is {id, username, email, created_at}.
package accountv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "account.v1.AccountService"

const (
	AccountService_Register_FullMethodName  = "/account.v1.AccountService/Register"
	AccountService_Login_FullMethodName     = "/account.v1.AccountService/Login"
	AccountService_GetUser_FullMethodName   = "/account.v1.AccountService/GetUser"
	AccountService_ListUsers_FullMethodName = "/account.v1.AccountService/ListUsers"
)

// AccountServiceClient is the client API for AccountService.
type AccountServiceClient interface {
	Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type accountServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAccountServiceClient creates a client on cc.
func NewAccountServiceClient(cc grpc.ClientConnInterface) AccountServiceClient {
	return &accountServiceClient{cc}
}

func (c *accountServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *accountServiceClient) Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AccountService_Register_FullMethodName, in, opts...)
}

func (c *accountServiceClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AccountService_Login_FullMethodName, in, opts...)
}

func (c *accountServiceClient) GetUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AccountService_GetUser_FullMethodName, in, opts...)
}

func (c *accountServiceClient) ListUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AccountService_ListUsers_FullMethodName, in, opts...)
}

// AccountServiceServer is the server API for AccountService.
type AccountServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedAccountServiceServer can be embedded for forward compatibility.
type UnimplementedAccountServiceServer struct{}

func (UnimplementedAccountServiceServer) Register(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}

func (UnimplementedAccountServiceServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}

func (UnimplementedAccountServiceServer) GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetUser not implemented")
}

func (UnimplementedAccountServiceServer) ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListUsers not implemented")
}

// RegisterAccountServiceServer registers srv on s.
func RegisterAccountServiceServer(s grpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&AccountService_ServiceDesc, srv)
}

type unaryMethod func(AccountServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AccountServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AccountServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AccountService_ServiceDesc is the grpc.ServiceDesc for AccountService.
var AccountService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Register",
			Handler:    unaryHandler(AccountService_Register_FullMethodName, AccountServiceServer.Register),
		},
		{
			MethodName: "Login",
			Handler:    unaryHandler(AccountService_Login_FullMethodName, AccountServiceServer.Login),
		},
		{
			MethodName: "GetUser",
			Handler:    unaryHandler(AccountService_GetUser_FullMethodName, AccountServiceServer.GetUser),
		},
		{
			MethodName: "ListUsers",
			Handler:    unaryHandler(AccountService_ListUsers_FullMethodName, AccountServiceServer.ListUsers),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "account/v1/account.proto",
}
