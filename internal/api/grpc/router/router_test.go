package router

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	grpcctx "github.com/dtroode/fieldops/internal/api/grpc/context"
	"github.com/dtroode/fieldops/internal/api/grpc/middleware"
	"github.com/dtroode/fieldops/internal/api/grpc/rpc"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/repository/sqlite"
	"github.com/dtroode/fieldops/internal/service"
	"github.com/dtroode/fieldops/internal/store/memory"
	"github.com/dtroode/fieldops/internal/testutil"
	"github.com/dtroode/fieldops/internal/token"
)

const (
	apiKey    = "key"
	projectID = "proj"
)

func TestRequiresBearer(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{method: rpc.AuthSignInMethod, want: false},
		{method: rpc.AuthRefreshMethod, want: false},
		{method: rpc.DocumentsAddMethod, want: true},
		{method: rpc.DocumentsSubscribeMethod, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			meta := interceptors.NewServerCallMeta(tt.method, nil, nil)
			assert.Equal(t, tt.want, requiresBearer(context.Background(), meta))
		})
	}
}

type harness struct {
	auth  *rpc.AuthClient
	docs  *rpc.DocumentsClient
	store *memory.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	lg := testutil.MakeNoopLogger()

	db := sqlite.OpenMemory(t)
	authService := service.NewAuth(
		sqlite.NewUserRepository(db),
		sqlite.NewRefreshTokenRepository(db),
		token.NewJWT("secret", "fieldops", time.Minute),
		lg,
	)
	_, err := authService.EnsureUser(ctx, "admin@hq.com", "password")
	require.NoError(t, err)

	store := memory.New(lg)
	r := New(authService, authService, store, grpcctx.NewManager(), middleware.NewAPIKey(apiKey, projectID), lg)
	srv := r.Register()

	ln := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return ln.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{auth: rpc.NewAuthClient(conn), docs: rpc.NewDocumentsClient(conn), store: store}
}

func project(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, middleware.APIKeyHeader, apiKey, middleware.ProjectIDHeader, projectID)
}

func bearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(project(ctx), "authorization", "Bearer "+token)
}

func TestRouter_SignInAndWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.auth.SignIn(project(ctx), &rpc.SignInRequest{Email: "admin@hq.com", Password: "password"})
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)

	added, err := h.docs.Add(bearer(ctx, session.AccessToken), &rpc.AddRequest{
		Collection: model.TasksCollection,
		Fields:     model.NewTaskFields("Inspect valve", time.UnixMilli(1718000000123)),
	})
	require.NoError(t, err)

	err = h.docs.Update(bearer(ctx, session.AccessToken), &rpc.UpdateRequest{
		Collection: model.TasksCollection,
		ID:         added.ID,
		Fields:     map[string]any{model.FieldStatus: string(model.TaskStatusCompleted)},
	})
	require.NoError(t, err)

	refreshed, err := h.auth.Refresh(project(ctx), &rpc.RefreshRequest{RefreshToken: session.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, refreshed.RefreshToken)

	_, err = h.auth.Refresh(project(ctx), &rpc.RefreshRequest{RefreshToken: session.RefreshToken})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	require.NoError(t, h.auth.SignOut(project(ctx), &rpc.SignOutRequest{RefreshToken: refreshed.RefreshToken}))
}

func TestRouter_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auth.SignIn(ctx, &rpc.SignInRequest{Email: "admin@hq.com", Password: "password"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "missing api key")

	_, err = h.auth.SignIn(project(ctx), &rpc.SignInRequest{Email: "admin@hq.com", Password: "wrong"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "bad password")

	_, err = h.docs.Add(project(ctx), &rpc.AddRequest{Collection: "tasks"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "missing bearer")

	_, err = h.docs.Add(bearer(ctx, "forged"), &rpc.AddRequest{Collection: "tasks"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "forged bearer")
}

func TestRouter_Subscribe(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := h.auth.SignIn(project(ctx), &rpc.SignInRequest{Email: "admin@hq.com", Password: "password"})
	require.NoError(t, err)

	stream, err := h.docs.Subscribe(bearer(ctx, session.AccessToken), &rpc.SubscribeRequest{Query: model.TaskQuery()})
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Empty(t, first.Documents)

	_, err = h.store.AddDocument(ctx, model.TasksCollection, model.NewTaskFields("Replace fuse", time.UnixMilli(5)))
	require.NoError(t, err)

	second, err := stream.Recv()
	require.NoError(t, err)
	require.Len(t, second.Documents, 1)

	task, err := model.TaskFromDocument(second.Documents[0])
	require.NoError(t, err)
	assert.Equal(t, "Replace fuse", task.Title)
	assert.Equal(t, int64(5), task.CreatedAt.UnixMilli())

	h.store.Interrupt(model.TasksCollection, model.ErrPermissionDenied)
	third, err := stream.Recv()
	require.NoError(t, err)
	require.NotNil(t, third.Error)
	assert.Equal(t, codes.PermissionDenied, status.Code(third.Error.Err()))

	cancel()
	require.Eventually(t, func() bool { return h.store.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
