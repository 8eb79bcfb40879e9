// internal/stream/client.go
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	// Endpoint is the production stream endpoint.
	Endpoint = "wss://stream.lasersell.io/v1/ws"
	// LocalEndpoint is used when account.local is set.
	LocalEndpoint = "ws://localhost:8082/v1/ws"

	minReconnectDelay = 100 * time.Millisecond
	maxReconnectDelay = 2 * time.Second
	dialTimeout       = 10 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = 5 * time.Second
	queueSize         = 1024
)

// ErrorKind classifies stream transport and protocol failures.
type ErrorKind string

const (
	ErrorWebSocket       ErrorKind = "websocket"
	ErrorJSON            ErrorKind = "json"
	ErrorInvalidAPIKey   ErrorKind = "invalid_api_key"
	ErrorSendQueueClosed ErrorKind = "send_queue_closed"
	ErrorProtocol        ErrorKind = "protocol"
)

// ClientError is returned for transport and protocol failures.
type ClientError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	switch e.Kind {
	case ErrorSendQueueClosed:
		return "stream send queue is closed"
	case ErrorProtocol:
		return fmt.Sprintf("stream protocol error: %s", e.Message)
	default:
		if e.Err != nil {
			return fmt.Sprintf("stream %s error: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("stream %s error", e.Kind)
	}
}

func (e *ClientError) Unwrap() error { return e.Err }

// Client dials the stream server and keeps a connection alive.
type Client struct {
	endpoint string
	apiKey   string
	logger   *zap.Logger
}

// NewClient creates a stream client for the given endpoint.
func NewClient(endpoint, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		logger:   logger.Named("stream"),
	}
}

// Connect starts the connection worker and blocks until the first handshake
// completes or fails. Later disconnects are retried in the background.
func (c *Client) Connect(ctx context.Context, configure ConfigureMessage) (*Connection, error) {
	if c.apiKey == "" {
		return nil, &ClientError{Kind: ErrorInvalidAPIKey, Err: errors.New("empty api key")}
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	conn := &Connection{
		client:    c,
		configure: configure,
		ctx:       workerCtx,
		cancel:    cancel,
		outbound:  make(chan ClientMessage, queueSize),
		inbound:   make(chan ServerMessage, queueSize),
		status:    make(chan bool, 16),
		ready:     make(chan error, 1),
		done:      make(chan struct{}),
	}
	go conn.run()

	select {
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	case err := <-conn.ready:
		if err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// Connection is a live, self-reconnecting stream session.
type Connection struct {
	client    *Client
	configure ConfigureMessage

	ctx    context.Context
	cancel context.CancelFunc

	outbound chan ClientMessage
	inbound  chan ServerMessage
	status   chan bool

	ready     chan error
	readyOnce sync.Once
	done      chan struct{}
}

// Send queues a client message. Messages queued while disconnected are
// replayed after the next successful handshake.
func (c *Connection) Send(msg ClientMessage) error {
	if msg == nil {
		return &ClientError{Kind: ErrorProtocol, Message: "client message cannot be nil"}
	}
	if c.ctx.Err() != nil {
		return &ClientError{Kind: ErrorSendQueueClosed}
	}
	select {
	case <-c.ctx.Done():
		return &ClientError{Kind: ErrorSendQueueClosed}
	case c.outbound <- msg:
		return nil
	}
}

// Inbound delivers decoded server messages. Closed when the worker exits.
func (c *Connection) Inbound() <-chan ServerMessage { return c.inbound }

// Status delivers connection state transitions. Closed when the worker exits.
func (c *Connection) Status() <-chan bool { return c.status }

// Close stops the worker and waits for it to exit.
func (c *Connection) Close() {
	c.cancel()
	<-c.done
}

func (c *Connection) signalReady(err error) {
	c.readyOnce.Do(func() {
		c.ready <- err
	})
}

func (c *Connection) pushStatus(connected bool) {
	select {
	case c.status <- connected:
	default:
		c.client.logger.Debug("Status channel full, dropping transition", zap.Bool("connected", connected))
	}
}

func (c *Connection) run() {
	defer close(c.done)
	defer close(c.inbound)
	defer close(c.status)
	defer c.signalReady(&ClientError{Kind: ErrorSendQueueClosed})

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = minReconnectDelay
	policy.MaxInterval = maxReconnectDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	var pending []ClientMessage
	established := false

	for {
		if c.ctx.Err() != nil {
			return
		}

		connected, err := c.session(&pending, &established)
		if connected {
			c.pushStatus(false)
			policy.Reset()
		}
		if err != nil && !established {
			c.signalReady(err)
			return
		}
		if c.ctx.Err() != nil {
			return
		}

		delay := policy.NextBackOff()
		if err != nil {
			c.client.logger.Warn("Stream disconnected, reconnecting",
				zap.Duration("delay", delay),
				zap.Error(err))
		}
		if !c.waitQueueing(delay, &pending) {
			return
		}
	}
}

// waitQueueing sleeps for delay while buffering outbound messages.
func (c *Connection) waitQueueing(delay time.Duration, pending *[]ClientMessage) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return false
		case <-timer.C:
			return true
		case msg := <-c.outbound:
			*pending = append(*pending, msg)
		}
	}
}

// session runs one websocket connection. connected reports whether the
// handshake completed, so the caller can emit a disconnect transition.
func (c *Connection) session(pending *[]ClientMessage, established *bool) (connected bool, err error) {
	dialCtx, cancelDial := context.WithTimeout(c.ctx, dialTimeout)
	defer cancelDial()

	header := http.Header{}
	header.Set("x-api-key", c.client.apiKey)

	ws, _, err := websocket.Dial(dialCtx, c.client.endpoint, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if c.ctx.Err() != nil {
			return false, nil
		}
		return false, &ClientError{Kind: ErrorWebSocket, Err: err}
	}
	defer ws.CloseNow()
	ws.SetReadLimit(4 << 20)

	first, err := readMessage(c.ctx, ws)
	if err != nil {
		return false, err
	}
	if _, ok := first.(HelloOkMessage); !ok {
		return false, &ClientError{Kind: ErrorProtocol, Message: "expected first server message to be hello_ok"}
	}
	if !c.pushInbound(first) {
		return false, nil
	}

	configure := c.configure
	configure.WalletPubkeys = append([]string(nil), c.configure.WalletPubkeys...)
	if err := writeMessage(c.ctx, ws, configure); err != nil {
		return false, err
	}
	configured, err := readMessage(c.ctx, ws)
	if err != nil {
		return false, err
	}
	if !c.pushInbound(configured) {
		return false, nil
	}

	c.client.logger.Info("🔌 Stream connected", zap.String("endpoint", c.client.endpoint))
	c.pushStatus(true)
	if !*established {
		*established = true
		c.signalReady(nil)
	}

	for len(*pending) > 0 {
		if err := writeMessage(c.ctx, ws, (*pending)[0]); err != nil {
			return true, err
		}
		*pending = (*pending)[1:]
	}

	readCtx, stopReads := context.WithCancel(c.ctx)
	defer stopReads()
	reads := make(chan readResult, 8)
	go readLoop(readCtx, ws, reads)

	for {
		select {
		case <-c.ctx.Done():
			_ = ws.Close(websocket.StatusNormalClosure, "shutdown")
			return true, nil
		case msg := <-c.outbound:
			if err := writeMessage(c.ctx, ws, msg); err != nil {
				*pending = append([]ClientMessage{msg}, *pending...)
				return true, err
			}
		case res, ok := <-reads:
			if !ok {
				return true, nil
			}
			if res.err != nil {
				return true, res.err
			}
			if !c.pushInbound(res.msg) {
				return true, nil
			}
		}
	}
}

func (c *Connection) pushInbound(msg ServerMessage) bool {
	select {
	case <-c.ctx.Done():
		return false
	case c.inbound <- msg:
		return true
	}
}

type readResult struct {
	msg ServerMessage
	err error
}

func readLoop(ctx context.Context, ws *websocket.Conn, out chan<- readResult) {
	defer close(out)
	for {
		msg, err := readMessage(ctx, ws)
		select {
		case out <- readResult{msg: msg, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func readMessage(ctx context.Context, ws *websocket.Conn) (ServerMessage, error) {
	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	typ, payload, err := ws.Read(readCtx)
	if err != nil {
		return nil, &ClientError{Kind: ErrorWebSocket, Err: err}
	}
	if typ != websocket.MessageText {
		return nil, &ClientError{Kind: ErrorProtocol, Message: "received non-text websocket frame"}
	}
	msg, err := DecodeServerMessage(payload)
	if err != nil {
		return nil, &ClientError{Kind: ErrorJSON, Err: err}
	}
	return msg, nil
}

func writeMessage(ctx context.Context, ws *websocket.Conn, msg ClientMessage) error {
	payload, err := EncodeClientMessage(msg)
	if err != nil {
		return &ClientError{Kind: ErrorJSON, Err: err}
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, payload); err != nil {
		return &ClientError{Kind: ErrorWebSocket, Err: err}
	}
	return nil
}
