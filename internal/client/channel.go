// Package client is the participant side of the event channel: a websocket
// connection carrying protocol events to and from the room server.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sharetube/whiteboard/internal/protocol"
	"github.com/sharetube/whiteboard/pkg/wsutils"
)

var ErrClosed = errors.New("channel closed")

// ConnectionError reports a failed dial or an unexpected drop of an
// established channel.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type Handler func(protocol.Event)

type options struct {
	dialer *websocket.Dialer
	header http.Header
	logger *slog.Logger
}

type Option func(*options)

func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func WithHeader(h http.Header) Option {
	return func(o *options) { o.header = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Channel is a connected event channel. Handlers run on a single read
// goroutine, one message at a time, in arrival order.
type Channel struct {
	endpoint string
	conn     *wsutils.ThreadSafeWriter
	logger   *slog.Logger

	mu       sync.Mutex
	handlers map[protocol.Kind][]Handler
	closed   bool
	err      error

	// held for the duration of each dispatch
	dispatchMu sync.Mutex
	closeOnce  sync.Once
	done       chan struct{}
}

// Connect dials endpoint once. There is no retry.
func Connect(ctx context.Context, endpoint string, opts ...Option) (*Channel, error) {
	o := options{
		dialer: websocket.DefaultDialer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	conn, resp, err := o.dialer.DialContext(ctx, endpoint, o.header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}

	c := &Channel{
		endpoint: endpoint,
		conn:     wsutils.NewThreadSafeWriter(conn),
		logger:   o.logger.With("endpoint", endpoint),
		handlers: make(map[protocol.Kind][]Handler),
		done:     make(chan struct{}),
	}
	go c.readLoop()

	return c, nil
}

// On registers h for messages of kind. Handlers of one kind run in
// registration order.
func (c *Channel) On(kind protocol.Kind, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[kind] = append(c.handlers[kind], h)
}

// JoinRoom sends the join handshake. The assigned identity arrives later as
// a userCreated event.
func (c *Channel) JoinRoom(roomKey, name, contact, resumeParticipantID string) error {
	return c.Send(protocol.JoinRoom{
		RoomKey:             roomKey,
		ParticipantName:     name,
		ParticipantContact:  contact,
		ResumeParticipantID: resumeParticipantID,
	})
}

// Send writes ev without waiting for any reply. Safe for concurrent use.
func (c *Channel) Send(ev protocol.Event) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnectionError{Endpoint: c.endpoint, Err: err}
	}

	return nil
}

// Close releases the connection. It is idempotent and no handler runs after
// it returns. It must not be called from inside a handler.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		if werr := c.conn.WriteClose(websocket.CloseNormalClosure, ""); werr != nil {
			c.logger.Debug("failed to write close frame", "error", werr)
		}
		err = c.conn.Close()
	})

	// wait out a dispatch that started before closed was set
	c.dispatchMu.Lock()
	c.dispatchMu.Unlock()

	return err
}

// Done is closed once the read loop has stopped.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that stopped the channel: nil after Close, a
// *ConnectionError after an unexpected drop.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *Channel) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if !c.closed {
				c.err = &ConnectionError{Endpoint: c.endpoint, Err: err}
				c.logger.Warn("connection dropped", "error", err)
			}
			c.mu.Unlock()
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("dropping undecodable message", "error", err)
			continue
		}

		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev protocol.Event) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	handlers := slices.Clone(c.handlers[ev.Kind()])
	c.mu.Unlock()

	for _, h := range handlers {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		h(ev)
	}
}
