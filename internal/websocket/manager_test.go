package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/mist/internal/host/patch"
	"github.com/conneroisu/mist/internal/middleware"
)

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{HTTPHeader: header})
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestOriginValidation(t *testing.T) {
	m := NewManager(middleware.NewOriginValidator([]string{"https://example.com"}))
	defer m.Shutdown(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{name: "same host", origin: srv.URL, ok: true},
		{name: "listed", origin: "https://example.com", ok: true},
		{name: "foreign", origin: "https://evil.test"},
		{name: "missing", origin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := dial(t, srv, tt.origin)
			if !tt.ok {
				require.Error(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			conn.Close(websocket.StatusNormalClosure, "")
		})
	}
}

func TestConnectHookAndBroadcast(t *testing.T) {
	var m *Manager
	m = NewManager(middleware.NewOriginValidator(nil),
		WithConnectFunc(func(c *Client) error {
			m.Register(c)
			return c.Send(Message{Type: MessageReset, Tree: &patch.Tree{ID: 1, Selector: "#app"}})
		}))
	defer m.Shutdown(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	conn, _, err := dial(t, srv, srv.URL)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	reset := read(t, conn)
	assert.Equal(t, MessageReset, reset.Type)
	require.NotNil(t, reset.Tree)
	assert.Equal(t, "#app", reset.Tree.Selector)
	assert.Equal(t, 1, m.ClientCount())

	m.Broadcast(Message{Type: MessagePatch, Kind: "patch", Ops: []patch.Op{{Kind: patch.OpSetAttr, ID: 3, Name: "class", Value: "on"}}})
	msg := read(t, conn)
	assert.Equal(t, MessagePatch, msg.Type)
	require.Len(t, msg.Ops, 1)
	assert.Equal(t, patch.OpSetAttr, msg.Ops[0].Kind)
}

func TestIncomingMessages(t *testing.T) {
	received := make(chan Message, 4)
	m := NewManager(middleware.NewOriginValidator(nil),
		WithMessageFunc(func(c *Client, msg Message) { received <- msg }))
	defer m.Shutdown(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	conn, _, err := dial(t, srv, srv.URL)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := context.Background()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"event","id":7,"event":"click"}`)))
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`not json`)))

	select {
	case msg := <-received:
		assert.Equal(t, MessageEvent, msg.Type)
		assert.Equal(t, 7, msg.ID)
		assert.Equal(t, "click", msg.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	errMsg := read(t, conn)
	assert.Equal(t, MessageError, errMsg.Type)
	assert.Equal(t, "malformed message", errMsg.Error)
}

func TestDisconnectUnregisters(t *testing.T) {
	m := NewManager(middleware.NewOriginValidator(nil))
	defer m.Shutdown(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	conn, _, err := dial(t, srv, srv.URL)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return m.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestShutdown(t *testing.T) {
	m := NewManager(middleware.NewOriginValidator(nil))
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	conn, _, err := dial(t, srv, srv.URL)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, 0, m.ClientCount())

	_, resp, err := dial(t, srv, srv.URL)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClientSendAfterClose(t *testing.T) {
	c := &Client{send: make(chan []byte, 1)}
	require.NoError(t, c.Send(Message{Type: MessagePatch}))
	assert.Error(t, c.Send(Message{Type: MessagePatch}), "buffer full")
	assert.True(t, c.close())
	assert.False(t, c.close())
	assert.Error(t, c.Send(Message{Type: MessagePatch}))
}

func TestTokenBucket(t *testing.T) {
	tb := newTokenBucket(1, 2)
	assert.True(t, tb.allow())
	assert.True(t, tb.allow())
	assert.False(t, tb.allow())

	unlimited := newTokenBucket(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.allow())
	}
}

func TestRateLimitDisconnects(t *testing.T) {
	received := make(chan Message, 8)
	remotes := make(chan string, 1)
	var m *Manager
	m = NewManager(middleware.NewOriginValidator(nil),
		WithRateLimit(0.1, 2),
		WithConnectFunc(func(c *Client) error {
			remotes <- c.Remote()
			m.Register(c)
			return nil
		}),
		WithMessageFunc(func(c *Client, msg Message) { received <- msg }))
	defer m.Shutdown(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	conn, _, err := dial(t, srv, srv.URL)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	assert.True(t, strings.HasPrefix(<-remotes, "127.0.0.1:"))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"event","id":1,"event":"click"}`)))
	}

	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, _, err = conn.Read(readCtx)
	require.Error(t, err)
	assert.Len(t, received, 2)
	assert.Eventually(t, func() bool { return m.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
