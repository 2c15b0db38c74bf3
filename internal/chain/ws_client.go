package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/logging"
	"novatok-explorer/internal/observability"
)

// WSConfig tunes a LogSubscriber. Reconnect delays double from
// ReconnectDelay up to MaxReconnectDelay.
type WSConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration // reset on every frame
	WriteTimeout      time.Duration
	SubscribeTimeout  time.Duration // wait for the eth_subscribe reply
	BufferSize        int           // per-subscription channel capacity
}

// DefaultWSConfig returns the settings used when NewWSClient gets nil.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		BufferSize:        1024,
	}
}

type subscribeResult struct {
	id  string
	err error
}

// LogSubscriber is a WSClient over a single gorilla/websocket connection.
// Subscriptions survive reconnects: their filters are replayed and the
// consumer channel is re-keyed to the new subscription id.
type LogSubscriber struct {
	endpoint string
	config   WSConfig
	logger   *zap.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps node subscription id to the consumer channel
	subs   map[string]chan domain.Log
	subsMu sync.RWMutex

	// filters are replayed after a reconnect
	filters   map[string]LogFilter
	filtersMu sync.RWMutex

	// waiters receive the reply to an eth_subscribe request, by request id
	waiters   map[uint64]chan subscribeResult
	waitersMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

var _ WSClient = (*LogSubscriber)(nil)

// NewWSClient dials endpoint and starts the read and ping loops.
func NewWSClient(ctx context.Context, endpoint string, config *WSConfig, logger *zap.Logger) (*LogSubscriber, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultWSConfig().BufferSize
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = DefaultWSConfig().SubscribeTimeout
	}

	c := &LogSubscriber{
		endpoint: endpoint,
		config:   cfg,
		logger:   logging.OrNop(logger).With(zap.String("component", "ws")),
		subs:     make(map[string]chan domain.Log),
		filters:  make(map[string]LogFilter),
		waiters:  make(map[uint64]chan subscribeResult),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *LogSubscriber) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	if c.closed.Load() {
		conn.Close()
		return ErrClosed
	}

	c.conn = conn
	return nil
}

// SubscribeLogs subscribes to logs matching the filter.
func (c *LogSubscriber) SubscribeLogs(ctx context.Context, filter LogFilter) (<-chan domain.Log, error) {
	subID, err := c.subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	ch := make(chan domain.Log, c.config.BufferSize)
	c.subsMu.Lock()
	c.subs[subID] = ch
	c.subsMu.Unlock()

	c.filtersMu.Lock()
	c.filters[subID] = filter
	c.filtersMu.Unlock()

	c.logger.Info("subscribed to logs", zap.String("subscription", subID))
	return ch, nil
}

// subscribe sends eth_subscribe and waits for the subscription id.
func (c *LogSubscriber) subscribe(ctx context.Context, filter LogFilter) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}

	reqID := c.requestID.Add(1)
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "eth_subscribe",
		Params:  filter.params(),
	}

	confirmCh := make(chan subscribeResult, 1)
	c.waitersMu.Lock()
	c.waiters[reqID] = confirmCh
	c.waitersMu.Unlock()

	forget := func() {
		c.waitersMu.Lock()
		delete(c.waiters, reqID)
		c.waitersMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		forget()
		return "", errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		forget()
		return "", fmt.Errorf("write subscribe: %w", err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case res, ok := <-confirmCh:
		if !ok {
			return "", ErrClosed
		}
		return res.id, res.err
	case <-timer.C:
		forget()
		return "", fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return "", ErrClosed
	case <-ctx.Done():
		forget()
		return "", ctx.Err()
	}
}

// Close closes the WebSocket connection and all subscription channels.
func (c *LogSubscriber) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	// Readers must be gone before channels are closed.
	c.wg.Wait()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.waitersMu.Lock()
	for id, ch := range c.waiters {
		close(ch)
		delete(c.waiters, id)
	}
	c.waitersMu.Unlock()

	return nil
}

// readLoop reads messages and dispatches them to subscribers.
func (c *LogSubscriber) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				c.logger.Warn("websocket read failed, reconnecting", zap.Error(err))
				c.wg.Add(1)
				go c.reconnect(conn)
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		c.handleMessage(message)
	}
}

// reconnect replaces the broken connection and resubscribes. Dial attempts
// repeat with a doubling delay until one succeeds or the client is closed.
func (c *LogSubscriber) reconnect(broken *websocket.Conn) {
	defer c.wg.Done()
	defer c.reconnecting.Store(false)

	c.connMu.Lock()
	if c.conn == broken {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	delay := c.config.ReconnectDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		observability.RecordWSReconnect()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.connect(ctx)
		cancel()
		if err == nil {
			break
		}
		if errors.Is(err, ErrClosed) {
			return
		}

		delay = c.nextDelay(delay)
		c.logger.Warn("websocket reconnect failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))
	}
	c.logger.Info("websocket reconnected")

	// Subscribe replies arrive through readLoop, so resubscribe off this goroutine.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.resubscribeAll()
	}()
}

func (c *LogSubscriber) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d <= 0 {
		d = c.config.ReconnectDelay
	}
	if c.config.MaxReconnectDelay > 0 && d > c.config.MaxReconnectDelay {
		d = c.config.MaxReconnectDelay
	}
	return d
}

// resubscribeAll moves every active filter onto a new subscription id.
func (c *LogSubscriber) resubscribeAll() {
	c.filtersMu.RLock()
	filters := make(map[string]LogFilter, len(c.filters))
	for id, f := range c.filters {
		filters[id] = f
	}
	c.filtersMu.RUnlock()

	for oldID, filter := range filters {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.subscribe(ctx, filter)
		cancel()

		if err != nil {
			c.logger.Warn("resubscribe failed", zap.String("subscription", oldID), zap.Error(err))
			continue
		}

		c.subsMu.Lock()
		if ch, ok := c.subs[oldID]; ok {
			delete(c.subs, oldID)
			c.subs[newID] = ch
		}
		c.subsMu.Unlock()

		c.filtersMu.Lock()
		delete(c.filters, oldID)
		c.filters[newID] = filter
		c.filtersMu.Unlock()
	}
}

// handleMessage routes a frame: subscription reply, notification or error.
func (c *LogSubscriber) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("unparseable websocket frame", zap.Error(err))
		return
	}

	switch {
	case msg.Method == "eth_subscription" && msg.Params != nil:
		c.handleNotification(msg.Params)
	case msg.ID != nil && msg.Error != nil:
		c.resolvePending(*msg.ID, subscribeResult{err: msg.Error})
	case msg.ID != nil:
		var subID string
		if err := json.Unmarshal(msg.Result, &subID); err != nil || subID == "" {
			c.resolvePending(*msg.ID, subscribeResult{err: fmt.Errorf("invalid subscription id %s", string(msg.Result))})
			return
		}
		c.resolvePending(*msg.ID, subscribeResult{id: subID})
	}
}

func (c *LogSubscriber) resolvePending(reqID uint64, res subscribeResult) {
	c.waitersMu.Lock()
	ch, ok := c.waiters[reqID]
	if ok {
		delete(c.waiters, reqID)
	}
	c.waitersMu.Unlock()

	if !ok {
		return
	}
	select {
	case ch <- res:
	default:
	}
}

func (c *LogSubscriber) handleNotification(params *wsNotificationParams) {
	var l rpcLog
	if err := json.Unmarshal(params.Result, &l); err != nil {
		c.logger.Warn("decode log notification", zap.String("subscription", params.Subscription), zap.Error(err))
		return
	}
	if l.Removed {
		return
	}

	c.subsMu.RLock()
	ch, ok := c.subs[params.Subscription]
	c.subsMu.RUnlock()

	if !ok {
		return
	}
	// Block rather than drop; the buffer absorbs bursts.
	select {
	case ch <- l.toDomain():
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *LogSubscriber) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.logger.Debug("ping failed", zap.Error(err))
				}
			}
			c.connMu.Unlock()
		}
	}
}

type wsMessage struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      *uint64               `json:"id,omitempty"`
	Method  string                `json:"method,omitempty"`
	Result  json.RawMessage       `json:"result,omitempty"`
	Error   *RPCError             `json:"error,omitempty"`
	Params  *wsNotificationParams `json:"params,omitempty"`
}

type wsNotificationParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}
