package remote

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	grpcctx "github.com/dtroode/fieldops/internal/api/grpc/context"
	"github.com/dtroode/fieldops/internal/api/grpc/middleware"
	"github.com/dtroode/fieldops/internal/api/grpc/router"
	"github.com/dtroode/fieldops/internal/api/grpc/rpc"
	"github.com/dtroode/fieldops/internal/config"
	"github.com/dtroode/fieldops/internal/model"
	"github.com/dtroode/fieldops/internal/repository/sqlite"
	"github.com/dtroode/fieldops/internal/service"
	"github.com/dtroode/fieldops/internal/store/memory"
	"github.com/dtroode/fieldops/internal/testutil"
	"github.com/dtroode/fieldops/internal/token"
)

const (
	testAPIKey    = "key"
	testProjectID = "proj"
	testEmail     = "tech@example.com"
	testPassword  = "password"
)

// backend is an in-process dispatch server reachable over bufconn. restart
// replaces the server while clients keep their connection object.
type backend struct {
	t      *testing.T
	router *router.Router
	store  *memory.Store
	tokens *sqlite.RefreshTokenRepository

	mu     sync.Mutex
	server *grpc.Server
	ln     atomic.Pointer[bufconn.Listener]
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	lg := testutil.MakeNoopLogger()

	db := sqlite.OpenMemory(t)
	tokens := sqlite.NewRefreshTokenRepository(db)
	authService := service.NewAuth(
		sqlite.NewUserRepository(db),
		tokens,
		token.NewJWT("secret", "fieldops", time.Minute),
		lg,
	)
	_, err := authService.EnsureUser(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	store := memory.New(lg)
	b := &backend{
		t:      t,
		router: router.New(authService, authService, store, grpcctx.NewManager(), middleware.NewAPIKey(testAPIKey, testProjectID), lg),
		store:  store,
		tokens: tokens,
	}
	b.start()
	t.Cleanup(b.stop)
	return b
}

func (b *backend) start() {
	ln := bufconn.Listen(1 << 20)
	srv := b.router.Register()
	go func() { _ = srv.Serve(ln) }()

	b.mu.Lock()
	b.server = srv
	b.mu.Unlock()
	b.ln.Store(ln)
}

func (b *backend) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.server != nil {
		b.server.Stop()
		b.server = nil
	}
}

func (b *backend) restart() {
	b.stop()
	b.start()
}

func (b *backend) dial(t *testing.T) *grpc.ClientConn {
	t.Helper()
	conn, err := Dial(
		config.Dispatch{APIKey: testAPIKey, ProjectID: testProjectID, Endpoint: "passthrough:///bufnet"},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return b.ln.Load().DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (b *backend) auth(t *testing.T, persistence model.SessionPersistence, opts ...AuthOption) *Auth {
	t.Helper()
	a := NewAuth(rpc.NewAuthClient(b.dial(t)), persistence, testutil.MakeNoopLogger(), opts...)
	t.Cleanup(a.Close)
	return a
}

// identityLog records identity emissions.
type identityLog struct {
	mu   sync.Mutex
	seen []*model.Identity
}

func (l *identityLog) record(identity *model.Identity) {
	l.mu.Lock()
	l.seen = append(l.seen, identity)
	l.mu.Unlock()
}

func (l *identityLog) all() []*model.Identity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*model.Identity(nil), l.seen...)
}

func (l *identityLog) last() *model.Identity {
	all := l.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// snapshotLog records store deliveries.
type snapshotLog struct {
	mu   sync.Mutex
	docs [][]model.Document
	errs []error
}

func (l *snapshotLog) record(docs []model.Document, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.errs = append(l.errs, err)
		return
	}
	l.docs = append(l.docs, docs)
}

func (l *snapshotLog) lastDocs() ([]model.Document, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.docs) == 0 {
		return nil, false
	}
	return l.docs[len(l.docs)-1], true
}

func (l *snapshotLog) errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

func (l *snapshotLog) deliveries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.docs)
}
