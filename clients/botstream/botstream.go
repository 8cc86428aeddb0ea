// Package botstream maintains the resilient WebSocket connection to the
// trading bot's log/event stream. It owns exactly one transport handle at a
// time, detects silent failures with an application-level heartbeat, and
// recovers from unexpected closures with capped exponential backoff.
package botstream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"botwatch/config"
)

// Transport is the subset of *websocket.Conn the client drives. Tests
// substitute a scripted implementation.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// DialFunc opens a Transport to the given URL.
type DialFunc func(ctx context.Context, url string) (Transport, error)

func gorillaDial(ctx context.Context, rawURL string) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Client is the stream connection manager.
//
// All state transitions run under one mutex, and every timer or transport
// callback revalidates the connection generation before acting, so callbacks
// that fire after the handle they belong to was replaced or torn down no-op.
type Client struct {
	logger *zap.Logger
	cfg    config.StreamConfig
	url    string
	dial   DialFunc

	history *History

	mu         sync.Mutex
	state      State
	conn       Transport
	gen        uint64 // connection attempt generation
	attempt    int    // consecutive failed attempts since the last open
	attemptCtx context.Context
	lastPong   time.Time
	closeCode  int // set before a local force-close so the read loop learns the reason
	reconnect  *time.Timer
	retryIn    time.Duration
	hbStop     chan struct{}
	disposed   bool

	connectedAt time.Time

	onMessage func(Message)
	onState   func(Event)

	msgCount uint64 // atomic
}

// Stats is a point-in-time snapshot of the connection for the dashboard.
type Stats struct {
	State        string        `json:"state"`
	URL          string        `json:"url"`
	Attempt      int           `json:"attempt"`
	RetryIn      time.Duration `json:"retry_in"`
	LastPongAt   time.Time     `json:"last_pong_at"`
	ConnectedAt  time.Time     `json:"connected_at"`
	MessageCount uint64        `json:"message_count"`
	HistoryLen   int           `json:"history_len"`
}

// NewClient creates a stream client for the given bot base URL. The client
// stays idle until Connect or EnsureConnected is called.
func NewClient(logger *zap.Logger, cfg config.StreamConfig, baseURL string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	applyDefaults(&cfg)

	return &Client{
		logger:  logger,
		cfg:     cfg,
		url:     StreamURL(baseURL),
		dial:    gorillaDial,
		history: NewHistory(cfg.HistorySize),
		state:   StateIdle,
	}
}

func applyDefaults(cfg *config.StreamConfig) {
	def := config.Defaults().Stream
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = def.ReconnectBase
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = def.ReconnectMax
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
}

// OnMessage registers the observer for accepted inbound messages. Register
// before connecting.
func (c *Client) OnMessage(fn func(Message)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// OnStateChange registers the observer for connection state changes.
// Register before connecting.
func (c *Client) OnStateChange(fn func(Event)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// URL returns the derived stream endpoint.
func (c *Client) URL() string {
	return c.url
}

// History returns the retained messages, newest first.
func (c *Client) History() []Message {
	return c.history.Snapshot()
}

// Stats returns a snapshot of connection statistics.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	st := Stats{
		State:       c.state.String(),
		URL:         c.url,
		Attempt:     c.attempt,
		RetryIn:     c.retryIn,
		LastPongAt:  c.lastPong,
		ConnectedAt: c.connectedAt,
	}
	c.mu.Unlock()

	st.MessageCount = atomic.LoadUint64(&c.msgCount)
	st.HistoryLen = c.history.Len()
	return st
}

// EnsureConnected starts a connection attempt unless a handle is already
// open or connecting. This is the prober's gate: an online report connects
// an idle client and preempts a pending backoff timer, but never disturbs a
// live handle.
func (c *Client) EnsureConnected(ctx context.Context) {
	c.mu.Lock()
	if c.disposed || c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.Connect(ctx)
}

// Connect begins a new connection attempt. Any pending reconnect timer is
// cancelled and any live or connecting handle is closed with the superseded
// code before the new handle is created, so two handles never feed shared
// state at once.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.cancelReconnectLocked()
	c.stopHeartbeatLocked()
	c.closeConnLocked(CloseSuperseded)
	c.gen++
	gen := c.gen
	c.attemptCtx = ctx
	ev := c.setStateLocked(StateConnecting, 0, false, 0, nil)
	c.mu.Unlock()

	c.emit(ev)
	go c.runAttempt(ctx, gen)
}

// Close tears down the connection with the normal close code and disposes
// the client. No reconnection is scheduled once Close begins.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.cancelReconnectLocked()
	c.stopHeartbeatLocked()
	c.closeConnLocked(CloseNormal)
	c.gen++
	ev := c.setStateLocked(StateClosed, CloseNormal, false, 0, nil)
	c.mu.Unlock()

	c.logger.Info("stream client closed")
	c.emit(ev)
	return nil
}

// runAttempt dials and, on success, runs the read loop for one connection
// generation.
func (c *Client) runAttempt(ctx context.Context, gen uint64) {
	conn, err := c.dial(ctx, c.url)

	c.mu.Lock()
	if c.disposed || gen != c.gen {
		// The handle was replaced or torn down while the dial was in flight;
		// discard it with the code that says why.
		code := CloseSuperseded
		if c.disposed {
			code = CloseNormal
		}
		c.mu.Unlock()
		if err == nil {
			c.sendClose(conn, code)
		}
		return
	}

	if err != nil {
		// Failure to construct the transport is handled like an abnormal
		// close: schedule a backoff retry.
		ev, retryGen, delay := c.settleForRetryLocked(websocket.CloseAbnormalClosure, err)
		c.mu.Unlock()

		c.logger.Warn("stream dial failed",
			zap.String("url", c.url),
			zap.Duration("retry_in", ev.RetryIn),
			zap.Error(err))
		c.emit(ev)
		c.armReconnect(retryGen, delay)
		return
	}

	now := time.Now()
	c.conn = conn
	c.attempt = 0
	c.retryIn = 0
	c.closeCode = 0
	c.lastPong = now
	c.connectedAt = now
	stop := make(chan struct{})
	c.hbStop = stop
	ev := c.setStateLocked(StateOpen, 0, false, 0, nil)
	c.mu.Unlock()

	c.logger.Info("stream connected", zap.String("url", c.url))
	c.emit(ev)

	go c.heartbeatLoop(conn, gen, stop)
	c.readLoop(conn, gen)
}

func (c *Client) readLoop(conn Transport, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, err)
			return
		}
		c.handleFrame(gen, data)
	}
}

func (c *Client) handleFrame(gen uint64, data []byte) {
	msg := parseFrame(data, time.Now())

	c.mu.Lock()
	if c.disposed || gen != c.gen {
		c.mu.Unlock()
		return
	}

	if msg.Kind == KindPong || msg.Kind == KindConnection {
		// Liveness signals are terminal: stamp the heartbeat and drop.
		c.lastPong = msg.ReceivedAt
		c.mu.Unlock()
		return
	}

	c.history.Push(msg)
	atomic.AddUint64(&c.msgCount, 1)
	fn := c.onMessage
	c.mu.Unlock()

	if fn != nil {
		fn(msg)
	}
}

func (c *Client) handleReadError(gen uint64, err error) {
	c.mu.Lock()
	if c.disposed || gen != c.gen {
		// A local closer (supersede, shutdown) already settled this handle.
		c.mu.Unlock()
		return
	}

	code := closeCodeFromError(err)
	if c.closeCode != 0 {
		// A local force-close recorded the real reason (heartbeat timeout).
		code = c.closeCode
	}

	var (
		ev         Event
		retryGen   uint64
		retryDelay time.Duration
	)
	willRetry := shouldRetry(code)
	if willRetry {
		ev, retryGen, retryDelay = c.settleForRetryLocked(code, err)
	} else {
		c.stopHeartbeatLocked()
		c.conn = nil
		c.closeCode = 0
		c.retryIn = 0
		c.gen++
		ev = c.setStateLocked(StateClosed, code, false, 0, err)
	}
	c.mu.Unlock()

	c.logger.Warn("stream closed",
		zap.Int("code", code),
		zap.Bool("retry", ev.WillRetry),
		zap.Duration("retry_in", ev.RetryIn),
		zap.Error(err))
	c.emit(ev)
	if willRetry {
		c.armReconnect(retryGen, retryDelay)
	}
}

func closeCodeFromError(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}

func (c *Client) heartbeatLoop(conn Transport, gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.heartbeatTick(conn, gen) {
				return
			}
		}
	}
}

// heartbeatTick sends one application-level ping and force-closes the
// connection if no liveness signal arrived within the pong timeout. Returns
// false once this generation's connection is settled or being settled.
func (c *Client) heartbeatTick(conn Transport, gen uint64) bool {
	c.mu.Lock()
	if c.disposed || gen != c.gen || c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		return false
	}
	if c.closeCode != 0 {
		// A force-close is already in flight; the read loop settles it.
		c.mu.Unlock()
		return false
	}

	silence := time.Since(c.lastPong)
	if silence > c.cfg.PongTimeout {
		c.closeCode = CloseHeartbeatTimeout
		c.state = StateClosing
		c.mu.Unlock()

		c.logger.Warn("stream heartbeat timeout, forcing close",
			zap.Duration("silence", silence),
			zap.Duration("limit", c.cfg.PongTimeout))
		// Unblocks the read loop, which schedules the retry.
		c.sendClose(conn, CloseHeartbeatTimeout)
		return false
	}
	c.mu.Unlock()

	frame, _ := json.Marshal(pingFrame{Type: "ping", Timestamp: time.Now().UnixMilli()})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn("stream ping write failed", zap.Error(err))
	}
	return true
}

// settleForRetryLocked settles the current handle and computes the backoff
// for the next attempt without arming it. Caller holds c.mu, emits the
// returned event after unlocking, and then calls armReconnect, so observers
// always see the Closed event before the next attempt's Connecting.
func (c *Client) settleForRetryLocked(code int, cause error) (Event, uint64, time.Duration) {
	c.stopHeartbeatLocked()
	c.conn = nil
	c.closeCode = 0
	c.gen++

	delay := backoffDelay(c.attempt, c.cfg.ReconnectBase, c.cfg.ReconnectMax)
	c.attempt++
	c.retryIn = delay

	return c.setStateLocked(StateClosed, code, true, delay, cause), c.gen, delay
}

// armReconnect starts the backoff timer for the generation settled by
// settleForRetryLocked. A Connect or Close that slipped in between moved the
// generation on, in which case there is nothing to arm.
func (c *Client) armReconnect(gen uint64, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed || gen != c.gen {
		return
	}
	ctx := c.attemptCtx
	c.reconnect = time.AfterFunc(delay, func() { c.reconnectFire(ctx, gen) })
}

func (c *Client) reconnectFire(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if c.disposed || gen != c.gen || c.reconnect == nil {
		// Cancelled or superseded after this timer was armed.
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	c.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	c.Connect(ctx)
}

// closeConnLocked releases the current handle, if any, with the given close
// code, and bumps the generation so in-flight callbacks for it no-op.
func (c *Client) closeConnLocked(code int) {
	if c.conn == nil {
		return
	}
	conn := c.conn
	c.conn = nil
	c.closeCode = 0
	c.gen++
	// Off the lock: the close frame write may touch the network.
	go c.sendClose(conn, code)
}

// sendClose writes a close frame carrying code, then closes the transport so
// a blocked read returns.
func (c *Client) sendClose(conn Transport, code int) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	_ = conn.Close()
}

// cancelReconnectLocked stops a pending reconnect timer. Idempotent: a timer
// that already fired finds the slot empty or a newer generation and no-ops.
func (c *Client) cancelReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.retryIn = 0
}

func (c *Client) stopHeartbeatLocked() {
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
}

func (c *Client) setStateLocked(s State, code int, willRetry bool, retryIn time.Duration, err error) Event {
	c.state = s
	return Event{
		State:     s,
		Code:      code,
		Attempt:   c.attempt,
		WillRetry: willRetry,
		RetryIn:   retryIn,
		Err:       err,
	}
}

// emit invokes the state observer outside the client lock.
func (c *Client) emit(ev Event) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()

	if fn != nil {
		fn(ev)
	}
}
