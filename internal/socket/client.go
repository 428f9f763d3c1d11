package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/ammar1510/gigchat/internal/logger"
)

var log = logger.New("socket")

var (
	// ErrNotConnected is returned by Emit while no connection is live.
	ErrNotConnected = errors.New("socket: not connected")
	// ErrSendBufferFull is returned by Emit when the outbound queue is full.
	ErrSendBufferFull = errors.New("socket: send buffer full")
	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("socket: closed")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024

	eventBufferSize = 256
	sendBufferSize  = 256
)

// Config holds configuration for Connect.
type Config struct {
	// URL is the socket endpoint, e.g. "ws://localhost:8080/socket".
	URL string
	// Token authenticates the connection. It is sent as the "token" query
	// parameter and as a bearer Authorization header.
	Token string
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// Reconnect re-dials after a failed dial or a dropped connection until
	// Close is called.
	Reconnect bool
	// ReconnectDelay is the first reconnect wait (default 1s), doubling up
	// to MaxReconnectDelay (default 5s).
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// Client is a chat socket connection. Inbound frames and lifecycle changes
// are delivered in order on Events; outbound frames go through Emit.
type Client struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	policy backoff.BackOff
	retry  bool

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	send   chan []byte
	done   chan struct{}

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	closeOnce sync.Once
}

// Connect validates the configuration and starts connecting in the
// background. The first event delivered is either connect or connect_error.
func Connect(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, errors.New("socket: URL is required")
	}
	endpoint, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("socket: invalid URL %q: %w", config.URL, err)
	}
	header := http.Header{}
	if config.Token != "" {
		query := endpoint.Query()
		query.Set("token", config.Token)
		endpoint.RawQuery = query.Encode()
		header.Set("Authorization", "Bearer "+config.Token)
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	initial := config.ReconnectDelay
	if initial <= 0 {
		initial = time.Second
	}
	maxDelay := config.MaxReconnectDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initial
	policy.MaxInterval = maxDelay
	policy.MaxElapsedTime = 0
	policy.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:    endpoint.String(),
		header: header,
		dialer: dialer,
		policy: policy,
		retry:  config.Reconnect,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, eventBufferSize),
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Events delivers inbound and lifecycle events. It is closed after Close.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Emit queues an event for the server.
func (c *Client) Emit(name string, payload any) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	event, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("socket: encoding %s frame: %w", name, err)
	}

	select {
	case c.send <- frame:
		log.Debug("Queued %s event", name)
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops reconnecting, closes the live connection and waits for the
// event stream to end. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			c.conn.Close()
		}
		c.mu.Unlock()
	})
	<-c.done
	return nil
}

func (c *Client) setState(state State, conn *websocket.Conn) {
	c.mu.Lock()
	c.state = state
	c.conn = conn
	c.mu.Unlock()
	log.With("state", state.String()).Debugw("Connection state changed")
}

// deliver hands an event to the consumer. Only the run goroutine calls it,
// so it may also close the channel.
func (c *Client) deliver(event Event) {
	select {
	case c.events <- event:
	case <-c.ctx.Done():
	}
}

func (c *Client) deliverReason(name string, err error) {
	data, _ := json.Marshal(err.Error())
	c.deliver(Event{Name: name, Data: data})
}

func (c *Client) run() {
	defer close(c.done)
	defer close(c.events)

	for {
		c.setState(StateConnecting, nil)
		conn, _, err := c.dialer.DialContext(c.ctx, c.url, c.header)
		if err != nil {
			if c.ctx.Err() != nil {
				c.setState(StateDisconnected, nil)
				return
			}
			log.Warn("Dial failed: %v", err)
			c.setState(StateDisconnected, nil)
			c.deliverReason(EventConnectError, err)
			if !c.wait() {
				return
			}
			continue
		}

		c.policy.Reset()
		c.setState(StateConnected, conn)
		if c.ctx.Err() != nil {
			// Close raced the dial; it could not see this connection.
			conn.Close()
			c.setState(StateDisconnected, nil)
			return
		}
		log.Info("Connected to %s", conn.RemoteAddr())
		c.deliver(Event{Name: EventConnect})

		reason := c.serve(conn)
		c.setState(StateDisconnected, nil)
		if c.ctx.Err() != nil {
			return
		}
		log.Info("Disconnected: %v", reason)
		c.deliverReason(EventDisconnect, reason)
		if !c.wait() {
			return
		}
	}
}

// wait sleeps for the next reconnect delay. It returns false when the
// client should stop instead.
func (c *Client) wait() bool {
	if !c.retry {
		return false
	}
	delay := c.policy.NextBackOff()
	if delay == backoff.Stop {
		return false
	}
	log.Debug("Reconnecting in %s", delay)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// serve runs the pumps for one connection and returns why it ended.
func (c *Client) serve(conn *websocket.Conn) error {
	stop := make(chan struct{})
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writePump(conn, stop)
	}()

	err := c.readPump(conn)
	close(stop)
	conn.Close()
	<-writeDone
	return err
}

// readPump decodes frames from the connection until it fails
func (c *Client) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("Error reading from server: %v", err)
			}
			return err
		}

		var event Event
		if err := json.Unmarshal(frame, &event); err != nil || event.Name == "" {
			log.Warn("Dropping malformed frame: %s", frame)
			continue
		}
		c.deliver(event)
	}
}

// writePump sends queued frames and keepalive pings
func (c *Client) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn("Write failed: %v", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-stop:
			return
		}
	}
}
