package livepush_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/livepush"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestHub(t *testing.T, cfg livepush.Config) (*livepush.Hub, *httptest.Server) {
	t.Helper()
	hub := livepush.NewHub(cfg, livepush.WithLogger(slog.New(slog.DiscardHandler)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hub.Close(ctx)
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHub_DeliversToSession(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t, livepush.Config{})
	conn := dial(t, srv, "u1")

	hello := readFrame(t, conn)
	assert.Equal(t, livepush.TypeConnected, hello.Type)

	require.Eventually(t, func() bool { return len(hub.Sessions("u1")) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, hub.Sessions("u2"))
	sessionID := hub.Sessions("u1")[0]
	assert.Contains(t, string(hello.Data), sessionID)

	err := hub.SendInAppLive(context.Background(), sessionID, notifications.NotificationPayload(notifications.Notification{
		ID:     "n1",
		UserID: "u1",
		Title:  "hello",
	}))
	require.NoError(t, err)

	f := readFrame(t, conn)
	assert.Equal(t, livepush.TypeNotification, f.Type)
	var n notifications.Notification
	require.NoError(t, json.Unmarshal(f.Data, &n))
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, "hello", n.Title)
}

func TestHub_MultipleSessionsPerUser(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t, livepush.Config{})
	dial(t, srv, "u1")
	dial(t, srv, "u1")
	dial(t, srv, "u2")

	require.Eventually(t, func() bool { return hub.Count() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, hub.Sessions("u1"), 2)
	assert.Len(t, hub.Sessions("u2"), 1)
}

func TestHub_PingPong(t *testing.T) {
	t.Parallel()

	_, srv := newTestHub(t, livepush.Config{})
	conn := dial(t, srv, "u1")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, livepush.TypePong, readFrame(t, conn).Type)
}

func TestHub_SilentConnectionClosed(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t, livepush.Config{PongTimeout: 200 * time.Millisecond})
	conn := dial(t, srv, "u1")
	readFrame(t, conn)

	require.Eventually(t, func() bool { return len(hub.Sessions("u1")) == 0 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "server closed the connection")
}

func TestHub_ClientDisconnect(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t, livepush.Config{})
	conn := dial(t, srv, "u1")
	readFrame(t, conn)
	require.Eventually(t, func() bool { return len(hub.Sessions("u1")) == 1 }, 2*time.Second, 10*time.Millisecond)
	sessionID := hub.Sessions("u1")[0]

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return len(hub.Sessions("u1")) == 0 }, 2*time.Second, 10*time.Millisecond)

	err := hub.SendInAppLive(context.Background(), sessionID, notifications.NotificationPayload(notifications.Notification{ID: "n1"}))
	assert.ErrorIs(t, err, notifications.ErrSessionNotConnected)
}

func TestHub_UnknownSession(t *testing.T) {
	t.Parallel()

	hub := livepush.NewHub(livepush.DefaultConfig())
	err := hub.SendInAppLive(context.Background(), "missing", notifications.NotificationPayload(notifications.Notification{ID: "n1"}))
	assert.ErrorIs(t, err, notifications.ErrSessionNotConnected)

	err = hub.SendInAppLive(context.Background(), "missing", notifications.Payload{Kind: "other"})
	assert.ErrorIs(t, err, notifications.ErrPermanentDelivery)
}

func TestHub_MissingUser(t *testing.T) {
	t.Parallel()

	_, srv := newTestHub(t, livepush.Config{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_Close(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t, livepush.Config{})
	conn := dial(t, srv, "u1")
	readFrame(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, hub.Close(ctx))
	require.NoError(t, hub.Close(ctx), "second close is a no-op")
	assert.Zero(t, hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_OriginCheck(t *testing.T) {
	t.Parallel()

	_, srv := newTestHub(t, livepush.Config{AllowedOrigins: []string{"https://app.example.com"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=u1"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	if resp != nil {
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.example.com"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	_ = conn.Close()
}

func TestHub_ServeAfterClose(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t, livepush.Config{})
	require.NoError(t, hub.Close(context.Background()))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=u1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
