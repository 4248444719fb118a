package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	AuthServiceName      = "fieldops.Auth"
	DocumentsServiceName = "fieldops.Documents"

	AuthSignInMethod         = "/fieldops.Auth/SignIn"
	AuthRefreshMethod        = "/fieldops.Auth/Refresh"
	AuthSignOutMethod        = "/fieldops.Auth/SignOut"
	DocumentsAddMethod       = "/fieldops.Documents/Add"
	DocumentsUpdateMethod    = "/fieldops.Documents/Update"
	DocumentsSubscribeMethod = "/fieldops.Documents/Subscribe"
)

// AuthServer is the server API for fieldops.Auth.
type AuthServer interface {
	SignIn(context.Context, *SignInRequest) (*Session, error)
	Refresh(context.Context, *RefreshRequest) (*Session, error)
	SignOut(context.Context, *SignOutRequest) (*emptypb.Empty, error)
}

// DocumentsServer is the server API for fieldops.Documents.
type DocumentsServer interface {
	Add(context.Context, *AddRequest) (*AddResponse, error)
	Update(context.Context, *UpdateRequest) (*emptypb.Empty, error)
	Subscribe(*SubscribeRequest, DocumentsSubscribeServer) error
}

// DocumentsSubscribeServer is the server side of a Subscribe stream.
type DocumentsSubscribeServer interface {
	Send(*Snapshot) error
	grpc.ServerStream
}

func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

func RegisterDocumentsServer(s grpc.ServiceRegistrar, srv DocumentsServer) {
	s.RegisterService(&DocumentsServiceDesc, srv)
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SignIn", Handler: authSignInHandler},
		{MethodName: "Refresh", Handler: authRefreshHandler},
		{MethodName: "SignOut", Handler: authSignOutHandler},
	},
	Metadata: "fieldops",
}

var DocumentsServiceDesc = grpc.ServiceDesc{
	ServiceName: DocumentsServiceName,
	HandlerType: (*DocumentsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Add", Handler: documentsAddHandler},
		{MethodName: "Update", Handler: documentsUpdateHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: documentsSubscribeHandler, ServerStreams: true},
	},
	Metadata: "fieldops",
}

func authSignInHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SignInRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServer).SignIn(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AuthSignInMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServer).SignIn(ctx, req.(*SignInRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func authRefreshHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RefreshRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServer).Refresh(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AuthRefreshMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServer).Refresh(ctx, req.(*RefreshRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func authSignOutHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SignOutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServer).SignOut(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AuthSignOutMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServer).SignOut(ctx, req.(*SignOutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func documentsAddHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AddRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentsServer).Add(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DocumentsAddMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentsServer).Add(ctx, req.(*AddRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func documentsUpdateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpdateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentsServer).Update(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DocumentsUpdateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentsServer).Update(ctx, req.(*UpdateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func documentsSubscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DocumentsServer).Subscribe(in, &documentsSubscribeServer{ServerStream: stream})
}

type documentsSubscribeServer struct {
	grpc.ServerStream
}

func (x *documentsSubscribeServer) Send(m *Snapshot) error {
	return x.ServerStream.SendMsg(m)
}

// StreamErrorFromStatus packs err, which should carry a gRPC status, into
// a Snapshot error.
func StreamErrorFromStatus(err error) *StreamError {
	st := status.Convert(err)
	return &StreamError{Code: uint32(st.Code()), Message: st.Message()}
}

// Err turns a StreamError back into a status error.
func (e *StreamError) Err() error {
	if e == nil {
		return nil
	}
	return status.Error(codes.Code(e.Code), e.Message)
}
