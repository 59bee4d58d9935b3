// Package relay carries codec batches between a sender and its receivers
// over a websocket hub. Both roles share the handshake and reconnect logic.
package relay

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	ws "github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/simlink/relay/pkg/streaming"
)

var (
	// ErrAuthFailed is returned when the hub rejects the activation key.
	// It is fatal; the client does not reconnect.
	ErrAuthFailed = errors.New("relay authentication failed")
	// ErrMissingActivationKey is returned when no key is configured.
	ErrMissingActivationKey = errors.New("relay activation key missing")
	ErrClosed               = errors.New("relay closed")
	ErrNotConnected         = errors.New("relay not connected")
)

const writeWait = 10 * time.Second

// Config holds relay connection settings. Zero durations take defaults.
type Config struct {
	URL           string
	Session       string
	ActivationKey string
	SendInterval  time.Duration
	// MaxReconnect bounds consecutive failed attempts; 0 retries forever.
	MaxReconnect       int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	HandshakeTimeout   time.Duration
	InsecureSkipVerify bool
}

func (c Config) withDefaults() Config {
	if c.SendInterval <= 0 {
		c.SendInterval = 200 * time.Millisecond
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.Session == "" {
		c.Session = "default"
	}
	return c
}

// ControlHandler receives text messages that arrive after the handshake.
type ControlHandler func(streaming.Control)

// client is the connection core shared by Sender and Receiver.
type client struct {
	cfg    Config
	role   streaming.Role
	logger *slog.Logger
	attrs  metric.MeasurementOption

	mu      sync.Mutex
	conn    *ws.Conn
	closed  bool
	done    chan struct{}
	control ControlHandler

	writeMu  sync.Mutex
	sessions chan []streaming.SessionInfo
	batches  atomic.Uint64
}

func newClient(cfg Config, role streaming.Role, logger *slog.Logger) *client {
	if logger == nil {
		logger = slog.Default()
	}
	return &client{
		cfg:      cfg.withDefaults(),
		role:     role,
		logger:   logger.With("role", string(role)),
		attrs:    metric.WithAttributes(attribute.String("role", string(role))),
		done:     make(chan struct{}),
		sessions: make(chan []streaming.SessionInfo, 1),
	}
}

// OnControl registers a handler for control messages.
func (c *client) OnControl(h ControlHandler) {
	c.mu.Lock()
	c.control = h
	c.mu.Unlock()
}

// Connected reports whether a handshake has completed on a live connection.
func (c *client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Batches counts batches sent or received since creation.
func (c *client) Batches() uint64 { return c.batches.Load() }

func (c *client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// run connects, serves and reconnects until ctx ends, Close is called, the
// hub rejects the key or the reconnect budget is spent.
func (c *client) run(ctx context.Context, serve func(context.Context, *ws.Conn) error) error {
	if c.isClosed() {
		return ErrClosed
	}
	if c.cfg.ActivationKey == "" {
		c.logger.Error("Relay activation key missing, not connecting")
		return ErrMissingActivationKey
	}

	b := c.newBackOff()
	failures := 0
	for {
		conn, err := c.connect(ctx)
		if err == nil {
			b.Reset()
			failures = 0
			c.logger.Info("Relay connected", "url", c.cfg.URL, "session", c.cfg.Session)
			err = c.serve(ctx, conn, serve)
		}
		if errors.Is(err, ErrAuthFailed) {
			c.logger.Error("Relay authentication failed, giving up", "error", err)
			return err
		}
		if c.isClosed() || ctx.Err() != nil {
			return nil
		}

		failures++
		if c.cfg.MaxReconnect > 0 && failures > c.cfg.MaxReconnect {
			c.logger.Error("Relay reconnect failed after max attempts", "maxAttempts", c.cfg.MaxReconnect)
			return fmt.Errorf("relay gave up after %d attempts: %w", c.cfg.MaxReconnect, err)
		}

		wait := b.NextBackOff()
		reconnects.Add(ctx, 1, c.attrs)
		c.logger.Info("Reconnecting to relay", "attempt", failures, "backoff", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case <-time.After(wait):
		}
	}
}

// connect dials and completes the hello/welcome exchange.
func (c *client) connect(ctx context.Context) (*ws.Conn, error) {
	dialer := ws.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify}, //nolint:gosec // self-signed hubs on a LAN
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("relay dial failed: %w", err)
	}

	hello := streaming.Hello{Session: c.cfg.Session, Role: c.role, ActivationKey: c.cfg.ActivationKey}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("relay hello: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	var reply streaming.Control
	if err := conn.ReadJSON(&reply); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("relay handshake reply: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch reply.Type {
	case streaming.TypeWelcome:
		return conn, nil
	case streaming.TypeAuthError:
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrAuthFailed, reply.Reason)
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("relay handshake: unexpected reply %q", reply.Type)
	}
}

// serve publishes conn for Close and ListSessions and runs fn on it.
func (c *client) serve(ctx context.Context, conn *ws.Conn, fn func(context.Context, *ws.Conn) error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	// closing the connection unblocks a pending read
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
	}()
	return fn(ctx, conn)
}

func (c *client) write(conn *ws.Conn, messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

func (c *client) handleText(data []byte) {
	var msg streaming.Control
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug("Non-control message received", "raw", string(data))
		return
	}
	switch msg.Type {
	case streaming.TypeSessionList:
		select {
		case c.sessions <- msg.Sessions:
		default:
			c.logger.Debug("Session list not awaited, dropping")
		}
	case streaming.TypeError:
		c.logger.Warn("Relay reported an error", "reason", msg.Reason)
	}

	c.mu.Lock()
	h := c.control
	c.mu.Unlock()
	if h != nil {
		h(msg)
	}
}

// ListSessions asks the hub for its sessions over the live connection.
func (c *client) ListSessions(ctx context.Context) ([]streaming.SessionInfo, error) {
	c.mu.Lock()
	conn, closed := c.conn, c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if conn == nil {
		return nil, ErrNotConnected
	}

	select {
	case <-c.sessions:
	default:
	}
	req, err := json.Marshal(streaming.Control{Type: streaming.TypeListSessions})
	if err != nil {
		return nil, err
	}
	if err := c.write(conn, ws.TextMessage, req); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	select {
	case s := <-c.sessions:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Close stops Run and closes the connection, unblocking any pending read.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}
