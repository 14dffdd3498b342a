package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharetube/whiteboard/pkg/ctxlogger"
	"github.com/sharetube/whiteboard/pkg/wsrouter"
	"github.com/sharetube/whiteboard/pkg/wsutils"
)

func (c controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *wsutils.ThreadSafeWriter, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

// loggerWSMw logs message boundaries. Payloads are not logged, snapshot
// images are far too large.
func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *wsutils.ThreadSafeWriter, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
			c.logger.DebugContext(ctx, "websocket message received")

			start := time.Now()
			err := next(ctx, conn, payload)

			c.logger.DebugContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
				"failed", err != nil,
			)

			return err
		}
	}
}

func (c controller) metricsWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *wsutils.ThreadSafeWriter, payload any) error {
			messageType := wsrouter.GetMessageTypeFromCtx(ctx)
			start := time.Now()

			err := next(ctx, conn, payload)

			status := "ok"
			if err != nil {
				status = "error"
			}
			c.metrics.messagesTotal.WithLabelValues(messageType, status).Inc()
			c.metrics.messageDuration.WithLabelValues(messageType).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
