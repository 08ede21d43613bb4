// Package gateway keeps a WebSocket connection to the agent gateway and
// forwards its messages.
package gateway

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/j-veylop/mission-control/internal/logger"
)

// Default connection settings.
const (
	DefaultURL            = "ws://127.0.0.1:63362"
	DefaultReconnectDelay = 5 * time.Second
	handshakeTimeout      = 10 * time.Second
)

// Status is the connection state of the client.
type Status string

// Connection states.
const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Event is either a decoded gateway message or a status change.
type Event struct {
	Message json.RawMessage
	Status  Status
}

// Config holds configuration for the gateway client.
type Config struct {
	URL            string
	Token          string
	ReconnectDelay time.Duration
}

// Client maintains the gateway connection in the background.
type Client struct {
	dialer    *websocket.Dialer
	eventChan chan Event
	cancel    context.CancelFunc
	doneChan  chan struct{}
	conn      *websocket.Conn
	status    Status
	config    Config
	mu        sync.Mutex
}

// DialURL returns the gateway URL with the token appended as a query
// parameter when one is configured.
func DialURL(base, token string) (string, error) {
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// New creates a client and starts connecting.
func New(config Config) *Client {
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultReconnectDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		dialer:    &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		eventChan: make(chan Event, 100),
		cancel:    cancel,
		doneChan:  make(chan struct{}),
		status:    StatusDisconnected,
		config:    config,
	}

	go c.run(ctx)

	return c
}

// Events returns the event channel.
func (c *Client) Events() <-chan Event {
	return c.eventChan
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	c.mu.Unlock()

	if changed {
		c.sendEvent(Event{Status: s})
	}
}

// run connects, reads until the connection drops, then waits and retries.
func (c *Client) run(ctx context.Context) {
	defer close(c.doneChan)

	target, err := DialURL(c.config.URL, c.config.Token)
	if err != nil {
		logger.Error("invalid gateway URL", "url", c.config.URL, "error", err)
		return
	}
	// Never log the token.
	display, _ := DialURL(c.config.URL, "")

	for {
		c.setStatus(StatusConnecting)
		logger.Info("connecting to gateway", "url", display)

		conn, _, err := c.dialer.DialContext(ctx, target, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("gateway connection failed", "error", err)
		} else {
			logger.Info("connected to gateway")
			c.setConn(conn)
			c.setStatus(StatusConnected)
			c.readLoop(conn)
			c.setConn(nil)
		}

		c.setStatus(StatusDisconnected)
		if ctx.Err() != nil {
			return
		}
		logger.Info("gateway disconnected, reconnecting", "delay", c.config.ReconnectDelay)

		select {
		case <-time.After(c.config.ReconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("gateway read ended", "error", err)
			}
			return
		}

		if !json.Valid(data) {
			logger.Warn("failed to parse gateway message", "bytes", len(data))
			continue
		}
		c.sendEvent(Event{Message: json.RawMessage(data)})
	}
}

// sendEvent sends an event non-blocking, dropping the oldest when full.
func (c *Client) sendEvent(event Event) {
	select {
	case c.eventChan <- event:
	default:
		select {
		case <-c.eventChan:
		default:
		}
		select {
		case c.eventChan <- event:
		default:
		}
	}
}

// Close stops the client and closes any open connection.
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	<-c.doneChan
	return nil
}
