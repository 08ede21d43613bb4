package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestDialURL(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		token string
		want  string
	}{
		{"Default", "", "", DefaultURL},
		{"NoToken", "ws://gw:1234", "", "ws://gw:1234"},
		{"Token", "ws://gw:1234", "a b&c", "ws://gw:1234?token=a+b%26c"},
		{"ExistingQuery", "ws://gw/path?x=1", "t", "ws://gw/path?token=t&x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DialURL(tt.base, tt.token)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextMessage(t *testing.T, c *Client) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Message != nil {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for gateway message")
			return Event{}
		}
	}
}

func TestClient_ForwardsMessagesAndReconnects(t *testing.T) {
	var (
		upgrader    websocket.Upgrader
		connections atomic.Int32
		gotToken    atomic.Value
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connections.Add(1)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"agent:message","n":`+string(rune('0'+n))+`}`))
		// Drop the connection to force a reconnect.
		_ = conn.Close()
	}))
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), Token: "secret", ReconnectDelay: 20 * time.Millisecond})
	defer c.Close()

	first := nextMessage(t, c)
	require.JSONEq(t, `{"type":"agent:message","n":1}`, string(first.Message))
	require.Equal(t, "secret", gotToken.Load())

	second := nextMessage(t, c)
	require.JSONEq(t, `{"type":"agent:message","n":2}`, string(second.Message))
	require.GreaterOrEqual(t, connections.Load(), int32(2))
}

func TestClient_UnreachableGatewayKeepsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	c := New(Config{URL: url, ReconnectDelay: 10 * time.Millisecond})

	require.Eventually(t, func() bool { return c.Status() == StatusDisconnected }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return")
	}
}
