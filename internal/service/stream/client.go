package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"FinFusion/internal/domain/models"
	drepo "FinFusion/internal/domain/repository"
	"FinFusion/pkg/logger"
)

const tickBuffer = 1024

// Client implements a MarketStream over a WebSocket feed of normalized ticks.
// A frame is either one tick object or an array of them.
type Client struct {
	url          string
	symbols      []string
	pingInterval time.Duration
	dialer       *websocket.Dialer
	log          *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool

	// Read output survives reconnects; each connection gets its own read loop.
	readCtx context.Context
	ticks   chan *models.MarketTick
	errs    chan error
}

var _ drepo.MarketStream = (*Client)(nil)

// New creates a WebSocket MarketStream.
func New(url string, symbols []string, pingInterval time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		url:          url,
		symbols:      symbols,
		pingInterval: pingInterval,
		dialer:       websocket.DefaultDialer,
		log:          log.With(logger.String("component", "market_stream")),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.Info("market stream connected", logger.String("url", c.url))
	return nil
}

type subscribeMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// Subscribe subscribes to configured symbols.
func (c *Client) Subscribe(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected.Load() {
		return fmt.Errorf("stream not connected")
	}
	for _, s := range c.symbols {
		if err := c.conn.WriteJSON(subscribeMessage{Type: "subscribe", Symbol: s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.log.Info("market stream subscribed", logger.Strings("symbols", c.symbols))
	return nil
}

// Read streams ticks and connection errors until ctx ends.
func (c *Client) Read(ctx context.Context) (<-chan *models.MarketTick, <-chan error) {
	c.mu.Lock()
	if c.ticks == nil {
		c.ticks = make(chan *models.MarketTick, tickBuffer)
		c.errs = make(chan error, 1)
	}
	c.readCtx = ctx
	conn := c.conn
	c.mu.Unlock()

	c.startLoops(ctx, conn)
	return c.ticks, c.errs
}

func (c *Client) startLoops(ctx context.Context, conn *websocket.Conn) {
	if conn == nil {
		c.sendErr(ctx, fmt.Errorf("stream conn nil"))
		return
	}
	connCtx, cancel := context.WithCancel(ctx)
	go c.pingLoop(connCtx, conn)
	go func() {
		defer cancel()
		c.readLoop(connCtx, conn)
	}()
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			// A connection replaced by Reconnect or Close is not an error.
			if ctx.Err() != nil || !c.current(conn) {
				return
			}
			c.connected.Store(false)
			c.sendErr(ctx, fmt.Errorf("stream read: %w", err))
			return
		}
		for _, t := range DecodeTicks(b) {
			select {
			case c.ticks <- t:
			case <-ctx.Done():
				return
			default:
				c.log.Warn("market stream backpressure, tick dropped", logger.String("symbol", t.Symbol))
			}
		}
	}
}

func (c *Client) current(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn
}

func (c *Client) sendErr(ctx context.Context, err error) {
	select {
	case c.errs <- err:
	case <-ctx.Done():
	}
}

// DecodeTicks parses one frame. Frames that are not ticks yield nothing.
func DecodeTicks(b []byte) []*models.MarketTick {
	var batch []*models.MarketTick
	if err := json.Unmarshal(b, &batch); err == nil {
		out := batch[:0]
		for _, t := range batch {
			if t != nil && t.Symbol != "" {
				out = append(out, t)
			}
		}
		return out
	}
	var one models.MarketTick
	if err := json.Unmarshal(b, &one); err != nil || one.Symbol == "" {
		return nil
	}
	return []*models.MarketTick{&one}
}

// Reconnect drops the current connection, dials again and resumes reading
// into the channels returned by Read.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	if err := c.Connect(ctx); err != nil {
		return err
	}
	if err := c.Subscribe(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	readCtx, conn := c.readCtx, c.conn
	c.mu.Unlock()
	if readCtx != nil {
		c.startLoops(readCtx, conn)
	}
	return nil
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool { return c.connected.Load() }
