package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sharetube/whiteboard/pkg/wsutils"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidMessage     = errors.New("invalid message")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *wsutils.ThreadSafeWriter, input T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

type ErrorHandler func(ctx context.Context, conn *wsutils.ThreadSafeWriter, err error)

type route struct {
	decode func(json.RawMessage) (any, error)
	handle HandlerFunc[any]
}

type WSRouter struct {
	routes       map[string]route
	middlewares  []Middleware
	errorHandler ErrorHandler
	readLimit    int64
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]route),
		errorHandler: func(context.Context, *wsutils.ThreadSafeWriter, error) {},
	}
}

func (r *WSRouter) Use(middlewares ...Middleware) {
	r.middlewares = append(r.middlewares, middlewares...)
}

// OnError sets the handler called when a message cannot be routed or its
// handler fails. The connection keeps being served.
func (r *WSRouter) OnError(h ErrorHandler) {
	r.errorHandler = h
}

// SetReadLimit caps the size of a single incoming message.
func (r *WSRouter) SetReadLimit(limit int64) {
	r.readLimit = limit
}

// Handle registers handler for messageType. The payload is decoded into T
// before the middleware chain runs.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = route{
		decode: func(raw json.RawMessage) (any, error) {
			var input T
			if len(raw) == 0 {
				return input, nil
			}
			if err := json.Unmarshal(raw, &input); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
			}
			return input, nil
		},
		handle: func(ctx context.Context, conn *wsutils.ThreadSafeWriter, payload any) error {
			input, ok := payload.(T)
			if !ok {
				return fmt.Errorf("%w: unexpected payload %T", ErrInvalidMessage, payload)
			}
			return handler(ctx, conn, input)
		},
	}
}

func (r *WSRouter) chain(h HandlerFunc[any]) HandlerFunc[any] {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	return h
}

// ServeConn reads messages until the connection fails or is closed and
// dispatches them one at a time, in arrival order.
func (r *WSRouter) ServeConn(ctx context.Context, conn *wsutils.ThreadSafeWriter) error {
	if r.readLimit > 0 {
		conn.SetReadLimit(r.readLimit)
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.errorHandler(ctx, conn, fmt.Errorf("%w: %w", ErrInvalidMessage, err))
			continue
		}

		route, ok := r.routes[msg.Type]
		if !ok {
			r.errorHandler(ctx, conn, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type))
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		input, err := route.decode(msg.Payload)
		if err != nil {
			r.errorHandler(msgCtx, conn, err)
			continue
		}

		if err := r.chain(route.handle)(msgCtx, conn, input); err != nil {
			r.errorHandler(msgCtx, conn, err)
		}
	}
}
