package navsmoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Channel is the bidirectional message connection to a debug target. It is
// used by one caller at a time; frames are received in arrival order.
type Channel interface {
	Send(ctx context.Context, req Request) error
	Receive(ctx context.Context) (Inbound, error)
	Close() error
}

// WSChannel is a Channel over a websocket connection.
type WSChannel struct {
	url     string
	headers http.Header
	conn    *websocket.Conn
	frames  chan []byte
	closed  chan struct{}
	mu      sync.Mutex
	writeMu sync.Mutex
	readErr error

	// ReceiveTimeout bounds a single Receive when positive.
	ReceiveTimeout time.Duration
}

func NewWSChannel(url string, headers http.Header) *WSChannel {
	return &WSChannel{
		url:     url,
		headers: headers,
		frames:  make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

// DialChannel opens a websocket channel to url.
func DialChannel(ctx context.Context, url string, headers http.Header) (*WSChannel, error) {
	c := NewWSChannel(url, headers)
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *WSChannel) Start(ctx context.Context) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, c.url, c.headers)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDialFailed, c.url, err)
	}
	c.conn = conn
	go c.readLoop()
	return nil
}

func (c *WSChannel) Close() error {
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return nil
	default:
		close(c.closed)
	}
	c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *WSChannel) Send(ctx context.Context, req Request) error {
	if c.conn == nil {
		return fmt.Errorf("%w: channel not started", ErrChannelClosed)
	}
	select {
	case <-c.closed:
		return c.closedErr()
	default:
	}
	message, err := json.Marshal(req)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		_ = c.Close()
		return fmt.Errorf("%w: write %s: %v", ErrChannelClosed, req.Method, err)
	}
	return nil
}

func (c *WSChannel) Receive(ctx context.Context) (Inbound, error) {
	var timeout <-chan time.Time
	if c.ReceiveTimeout > 0 {
		timer := time.NewTimer(c.ReceiveTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case data := <-c.frames:
		return DecodeInbound(data)
	case <-c.closed:
		// frames read before the close are still delivered
		select {
		case data := <-c.frames:
			return DecodeInbound(data)
		default:
			return Inbound{}, c.closedErr()
		}
	case <-ctx.Done():
		return Inbound{}, ctx.Err()
	case <-timeout:
		return Inbound{}, fmt.Errorf("%w after %s", ErrReceiveTimeout, c.ReceiveTimeout)
	}
}

func (c *WSChannel) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			_ = c.Close()
			return
		}
		select {
		case c.frames <- data:
		case <-c.closed:
			return
		}
	}
}

func (c *WSChannel) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return fmt.Errorf("%w: %v", ErrChannelClosed, c.readErr)
	}
	return ErrChannelClosed
}

// Connect locates a page target on host:port and opens a channel to it. No
// channel is dialed when discovery fails.
func Connect(ctx context.Context, locator *Locator, host string, port int) (*WSChannel, error) {
	if locator == nil {
		locator = NewLocator()
	}
	wsURL, err := locator.Locate(ctx, host, port)
	if err != nil {
		return nil, err
	}
	return DialChannel(ctx, wsURL, nil)
}

func (c *WSChannel) URL() string {
	return c.url
}
