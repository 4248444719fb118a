package web

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/fieldops/internal/model"
)

type testFrame struct {
	Type    string       `json:"type"`
	Tasks   []model.Task `json:"tasks"`
	Reason  string       `json:"reason"`
	Message string       `json:"message"`
}

func dialFeed(t *testing.T, env *testEnv, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/tasks/feed"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readFrame(t *testing.T, conn *websocket.Conn) testFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f testFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestFeed_StreamsSnapshots(t *testing.T) {
	env := newTestEnv(t, time.Time{})

	conn, _, err := dialFeed(t, env, http.Header{"Authorization": {"Bearer " + validToken}})
	require.NoError(t, err)

	first := readFrame(t, conn)
	assert.Equal(t, "snapshot", first.Type)
	assert.Empty(t, first.Tasks)

	resp := env.do(t, http.MethodPost, "/api/tasks", createTaskRequest{Title: "Inspect pump"}, bearer(validToken))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	next := readFrame(t, conn)
	require.Equal(t, "snapshot", next.Type)
	require.Len(t, next.Tasks, 1)
	assert.Equal(t, "Inspect pump", next.Tasks[0].Title)
	assert.Equal(t, model.TaskStatusPending, next.Tasks[0].Status)

	env.store.Interrupt(model.TasksCollection, model.ErrUnavailable)

	errFrame := readFrame(t, conn)
	assert.Equal(t, "error", errFrame.Type)
	assert.Equal(t, string(model.SubscriptionReasonUnavailable), errFrame.Reason)

	recovered := readFrame(t, conn)
	assert.Equal(t, "snapshot", recovered.Type)
	assert.Len(t, recovered.Tasks, 1)
}

func TestFeed_ClosingConnectionUnsubscribes(t *testing.T) {
	env := newTestEnv(t, time.Time{})

	conn, _, err := dialFeed(t, env, http.Header{"Cookie": {accessCookie + "=" + validToken}})
	require.NoError(t, err)
	readFrame(t, conn)
	require.Equal(t, 1, env.store.Subscribers())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.store.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFeed_ClosesWhenAccessTokenExpires(t *testing.T) {
	env := newTestEnv(t, time.Now().Add(300*time.Millisecond))

	conn, _, err := dialFeed(t, env, http.Header{"Authorization": {"Bearer " + validToken}})
	require.NoError(t, err)

	assert.Equal(t, "snapshot", readFrame(t, conn).Type)

	expired := readFrame(t, conn)
	assert.Equal(t, "error", expired.Type)
	assert.Equal(t, string(model.AuthReasonSessionExpired), expired.Reason)

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	require.Eventually(t, func() bool { return env.store.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFeed_EndsOnSignOut(t *testing.T) {
	env := newTestEnv(t, time.Time{})
	env.auth.On("SignOut", mock.Anything, "refresh").Return(nil).Once()

	conn, _, err := dialFeed(t, env, http.Header{"Cookie": {accessCookie + "=" + validToken}})
	require.NoError(t, err)
	assert.Equal(t, "snapshot", readFrame(t, conn).Type)

	resp := env.do(t, http.MethodDelete, "/api/session", nil,
		withCookie(accessCookie, validToken), withCookie(refreshCookie, "refresh"))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	ended := readFrame(t, conn)
	assert.Equal(t, "error", ended.Type)
	assert.Equal(t, string(model.AuthReasonSessionExpired), ended.Reason)

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	require.Eventually(t, func() bool { return env.store.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFeedRegistry(t *testing.T) {
	r := newFeedRegistry()

	a, releaseA := r.add("token-a")
	b, _ := r.add("token-a")
	other, releaseOther := r.add("token-b")

	releaseA()
	assert.Equal(t, 1, r.revoke("token-a"))
	assert.Zero(t, r.revoke("token-a"))

	select {
	case <-b:
	default:
		t.Fatal("feed of revoked token still open")
	}
	select {
	case <-a:
		t.Fatal("released feed was signalled")
	case <-other:
		t.Fatal("feed of another token was signalled")
	default:
	}

	releaseOther()
	assert.Zero(t, r.revoke("token-b"))
}

func TestFeed_RequiresAuthentication(t *testing.T) {
	env := newTestEnv(t, time.Time{})

	_, resp, err := dialFeed(t, env, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	h := &Handler{opts: Options{AllowedOrigins: []string{"https://dispatch.example.com"}}}

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{name: "no origin", host: "api.example.com", want: true},
		{name: "allowed", origin: "https://dispatch.example.com", host: "api.example.com", want: true},
		{name: "same host", origin: "http://api.example.com", host: "api.example.com", want: true},
		{name: "foreign", origin: "https://evil.example.com", host: "api.example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodGet, "http://"+tt.host+"/api/tasks/feed", nil)
			require.NoError(t, err)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(r))
		})
	}
}
