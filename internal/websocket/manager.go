// Package websocket streams recorded patches to connected browsers and
// feeds their events back to the application.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/mist/internal/errors"
	"github.com/conneroisu/mist/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one connected browser.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *tokenBucket
	remote  string

	mu     sync.Mutex
	closed bool
}

// Send queues msg for the client. It fails when the client is gone or too
// slow to keep up.
func (c *Client) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "encoding websocket message", err)
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.NewIOError(errors.ErrCodeInternalError, "client closed", nil)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errors.NewIOError(errors.ErrCodeInternalError, "client send buffer full", nil)
	}
}

func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

// Remote returns the client's remote address.
func (c *Client) Remote() string { return c.remote }

// ConnectFunc is called for every accepted client before its pumps start.
// It must register the client and queue whatever the client needs first.
type ConnectFunc func(c *Client) error

// MessageFunc handles a decoded message from a client.
type MessageFunc func(c *Client, msg Message)

// Manager tracks connected clients and broadcasts messages to them.
type Manager struct {
	clients      map[*Client]struct{}
	clientsMutex sync.RWMutex

	origins   OriginValidator
	logger    logging.Logger
	onConnect ConnectFunc
	onMessage MessageFunc
	rate      float64
	burst     int

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithConnectFunc sets the connect hook.
func WithConnectFunc(fn ConnectFunc) Option { return func(m *Manager) { m.onConnect = fn } }

// WithMessageFunc sets the message handler.
func WithMessageFunc(fn MessageFunc) Option { return func(m *Manager) { m.onMessage = fn } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.logger = l.WithComponent("websocket") }
}

// WithRateLimit limits each client to rate messages per second with the
// given burst. Clients exceeding it are disconnected.
func WithRateLimit(rate float64, burst int) Option {
	return func(m *Manager) { m.rate, m.burst = rate, burst }
}

// NewManager creates a manager. Without a connect hook, clients are simply
// registered.
func NewManager(origins OriginValidator, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		clients: make(map[*Client]struct{}),
		origins: origins,
		logger:  logging.Nop(),
		rate:    20,
		burst:   40,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.onConnect == nil {
		m.onConnect = func(c *Client) error {
			m.Register(c)
			return nil
		}
	}
	return m
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if m.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if m.origins != nil && !m.origins.Allowed(origin, r.Host) {
		m.logger.Warn(r.Context(), nil, "Rejected websocket origin", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The origin was validated above, including same-host origins.
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		m.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: newTokenBucket(m.rate, m.burst),
		remote:  r.RemoteAddr,
	}

	if err := m.onConnect(client); err != nil {
		m.logger.Warn(r.Context(), err, "WebSocket connect hook failed", "remote", r.RemoteAddr)
		m.Unregister(client)
		_ = conn.Close(websocket.StatusInternalError, "connect failed")
		return
	}

	go m.writeToClient(client)
	m.readFromClient(client)
}

// Register adds c to the broadcast set.
func (m *Manager) Register(c *Client) {
	m.clientsMutex.Lock()
	m.clients[c] = struct{}{}
	total := len(m.clients)
	m.clientsMutex.Unlock()
	m.logger.Info(m.ctx, "WebSocket client connected", "remote", c.remote, "clients", total)
}

// Unregister removes c and closes its send queue.
func (m *Manager) Unregister(c *Client) {
	m.clientsMutex.Lock()
	_, ok := m.clients[c]
	delete(m.clients, c)
	total := len(m.clients)
	m.clientsMutex.Unlock()

	if c.close() && ok {
		m.logger.Info(m.ctx, "WebSocket client disconnected", "remote", c.remote, "clients", total)
	}
}

// Broadcast queues msg for every client. Clients that cannot keep up are
// dropped; they resynchronise with a reset on reconnect.
func (m *Manager) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error(m.ctx, err, "Encoding broadcast failed", "type", string(msg.Type))
		return
	}

	m.clientsMutex.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.clientsMutex.RUnlock()

	for _, c := range clients {
		if err := c.enqueue(data); err != nil {
			m.logger.Warn(m.ctx, err, "Dropping websocket client", "remote", c.remote)
			m.Unregister(c)
			_ = c.conn.Close(websocket.StatusPolicyViolation, "too slow")
		}
	}
}

func (m *Manager) readFromClient(c *Client) {
	defer func() {
		m.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		ctx, cancel := context.WithTimeout(m.ctx, pongWait)
		_, data, err := c.conn.Read(ctx)
		cancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && m.ctx.Err() == nil {
				m.logger.Debug(m.ctx, "WebSocket read ended", "remote", c.remote, "error", err.Error())
			}
			return
		}

		if !c.limiter.allow() {
			m.logger.Warn(m.ctx, nil, "WebSocket message rate exceeded", "remote", c.remote)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.Send(Message{Type: MessageError, Error: "malformed message"})
			continue
		}
		if m.onMessage != nil {
			m.onMessage(c, msg)
		}
	}
}

func (m *Manager) writeToClient(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(m.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				m.logger.Debug(m.ctx, "WebSocket write failed", "remote", c.remote, "error", err.Error())
				_ = c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-m.ctx.Done():
			return
		}
	}
}

// ClientCount returns the number of registered clients.
func (m *Manager) ClientCount() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}

// Shutdown closes every client connection. It is idempotent.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.cancel()

		m.clientsMutex.Lock()
		clients := m.clients
		m.clients = make(map[*Client]struct{})
		m.clientsMutex.Unlock()

		for c := range clients {
			c.close()
			_ = c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
		m.logger.Info(ctx, "WebSocket manager shut down", "clients", len(clients))
	})
	return nil
}

// tokenBucket limits incoming messages per client.
type tokenBucket struct {
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{rate: rate, capacity: float64(burst), tokens: float64(burst), last: time.Now()}
}

func (tb *tokenBucket) allow() bool {
	if tb.rate <= 0 {
		return true
	}
	now := time.Now()
	tb.tokens += now.Sub(tb.last).Seconds() * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.last = now
	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}
