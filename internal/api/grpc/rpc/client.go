package rpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/dtroode/fieldops/internal/model"
)

// AuthClient is the client API for fieldops.Auth.
type AuthClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthClient(cc grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{cc: cc}
}

func (c *AuthClient) SignIn(ctx context.Context, in *SignInRequest, opts ...grpc.CallOption) (*Session, error) {
	out := new(Session)
	if err := c.cc.Invoke(ctx, AuthSignInMethod, in, out, append(opts, CallOption())...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*Session, error) {
	out := new(Session)
	if err := c.cc.Invoke(ctx, AuthRefreshMethod, in, out, append(opts, CallOption())...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthClient) SignOut(ctx context.Context, in *SignOutRequest, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, AuthSignOutMethod, in, new(emptypb.Empty), append(opts, CallOption())...)
}

// DocumentsClient is the client API for fieldops.Documents.
type DocumentsClient struct {
	cc grpc.ClientConnInterface
}

func NewDocumentsClient(cc grpc.ClientConnInterface) *DocumentsClient {
	return &DocumentsClient{cc: cc}
}

func (c *DocumentsClient) Add(ctx context.Context, in *AddRequest, opts ...grpc.CallOption) (*AddResponse, error) {
	out := new(AddResponse)
	if err := c.cc.Invoke(ctx, DocumentsAddMethod, in, out, append(opts, CallOption())...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DocumentsClient) Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, DocumentsUpdateMethod, in, new(emptypb.Empty), append(opts, CallOption())...)
}

// SnapshotStream is the client side of a Subscribe stream.
type SnapshotStream interface {
	Recv() (*Snapshot, error)
	grpc.ClientStream
}

func (c *DocumentsClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (SnapshotStream, error) {
	stream, err := c.cc.NewStream(ctx, &DocumentsServiceDesc.Streams[0], DocumentsSubscribeMethod, append(opts, CallOption())...)
	if err != nil {
		return nil, err
	}
	x := &snapshotStream{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type snapshotStream struct {
	grpc.ClientStream
}

func (x *snapshotStream) Recv() (*Snapshot, error) {
	m := new(Snapshot)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromStatus maps a gRPC status error to the model sentinel it stands for.
// Unauthenticated maps to unauthenticated, which differs per call.
func FromStatus(err error, unauthenticated error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", model.ErrUnavailable, err)
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%w: %s", model.ErrUnavailable, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", model.ErrNotFound, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", model.ErrPermissionDenied, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", model.ErrAlreadyExists, st.Message())
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", unauthenticated, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return err
	}
}
