package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/koscakluka/ema-tutor/core/tutoring"
)

// queueCapacity bounds the messages waiting for the session worker of a
// single connection.
const queueCapacity = 16

// wsConn serializes writes to a websocket so the ping path and the session
// worker can share it.
type wsConn struct {
	mu           sync.Mutex
	ws           *websocket.Conn
	writeTimeout time.Duration
}

func (c *wsConn) Send(ctx context.Context, envelope tutoring.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(envelope)
}

func (c *wsConn) sendError(ctx context.Context, message string) error {
	return c.Send(ctx, tutoring.Envelope{
		Type:      tutoring.EnvelopeError,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// serveConn reads messages until the client goes away. Pings are answered
// from the read loop, everything else runs in order on a single worker.
// Leaving cancels whatever the worker is doing.
func (s *Server) serveConn(ctx context.Context, ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer ws.Close()
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	conn := &wsConn{ws: ws, writeTimeout: s.options.WriteTimeout}
	queue := make(chan tutoring.Message, queueCapacity)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer cancel()
		for msg := range queue {
			if err := s.handle(ctx, conn, msg); err != nil {
				logger.Warn("closing connection", "error", err, "session", msg.SessionID)
				return
			}
		}
	}()

	s.readLoop(ctx, conn, queue)
	cancel()
	close(queue)
	<-done
}

func (s *Server) readLoop(ctx context.Context, conn *wsConn, queue chan<- tutoring.Message) {
	limiter := rate.NewLimiter(rate.Limit(s.options.MessagesPerSecond), s.options.MessageBurst)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				logger.Debug("read failed", "error", err)
			}
			return
		}

		var msg tutoring.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := conn.sendError(ctx, "Invalid JSON format"); err != nil {
				return
			}
			continue
		}

		if msg.Type == tutoring.MessagePing {
			if err := s.handle(ctx, conn, msg); err != nil {
				return
			}
			continue
		}

		if !limiter.Allow() {
			s.options.Observer.RateLimited()
			logger.Info("rate limited", "type", msg.Type, "session", msg.SessionID)
			if err := conn.sendError(ctx, "Too many messages, slow down"); err != nil {
				return
			}
			continue
		}

		select {
		case queue <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// handle runs msg through the handler. A panicking handler is reported as an
// error, which closes only this connection.
func (s *Server) handle(ctx context.Context, conn *wsConn, msg tutoring.Message) (err error) {
	ctx, span := tracer.Start(ctx, "websocket message", trace.WithAttributes(
		attribute.String("message.type", string(msg.Type)),
	))
	defer span.End()
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("handler panicked", "type", msg.Type, "session", msg.SessionID, "panic", recovered)
			err = fmt.Errorf("%s handler panicked: %v", msg.Type, recovered)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			span.RecordError(err)
		}
	}()

	return s.handler.Handle(ctx, conn, msg)
}
