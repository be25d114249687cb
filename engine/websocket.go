package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// MEI pages with facsimile data are large, rendered SVG even larger.
	maxMessageSize = 64 << 20
)

// wsConn serializes writes to websocket connection, gorilla allows only one
// concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return c.conn.Close()
}

func (c *wsConn) keepReading() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (c *wsConn) pinger(quit <-chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.ping(); err != nil {
				log.Debug("Ping failed", zap.Error(err))
				return
			}
		case <-quit:
			return
		}
	}
}

func unexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure)
}

// WSTransport sends requests to engine worker on the other end of websocket
// connection. Every frame is a single JSON message.
type WSTransport struct {
	log       *zap.Logger
	conn      *wsConn
	responses chan Response

	once sync.Once
	quit chan struct{}
	done chan struct{}
}

// NewWSTransport takes ownership of connection.
func NewWSTransport(conn *websocket.Conn, log *zap.Logger) *WSTransport {
	t := &WSTransport{
		log:       log.Named("ws"),
		conn:      &wsConn{conn: conn},
		responses: make(chan Response, 64),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	t.conn.keepReading()
	go t.read()
	go t.conn.pinger(t.quit, t.log)
	return t
}

// DialWS connects to engine worker served by ServeWorker.
func DialWS(ctx context.Context, url string, log *zap.Logger) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to engine at %s: %w", url, err)
	}
	return NewWSTransport(conn, log), nil
}

func (t *WSTransport) read() {
	defer func() {
		close(t.responses)
		close(t.done)
	}()
	for {
		var resp Response
		if err := t.conn.conn.ReadJSON(&resp); err != nil {
			if unexpectedClose(err) {
				t.log.Warn("Engine connection lost", zap.Error(err))
			}
			return
		}
		t.responses <- resp
	}
}

// Done is closed when connection is gone.
func (t *WSTransport) Done() <-chan struct{} {
	return t.done
}

// Send implements Transport.
func (t *WSTransport) Send(ctx context.Context, req Request) error {
	select {
	case <-t.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return t.conn.writeJSON(req)
}

// Responses implements Transport.
func (t *WSTransport) Responses() <-chan Response {
	return t.responses
}

// Close implements Transport.
func (t *WSTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.quit)
		err = t.conn.close()
		<-t.done
	})
	if errors.Is(err, websocket.ErrCloseSent) {
		err = nil
	}
	return err
}

// ServeWorker runs engine worker on websocket connection until the peer
// goes away or context is canceled. Toolkit is created by init in the
// background, requests arriving earlier are answered once it is ready.
func ServeWorker(ctx context.Context, conn *websocket.Conn, init func() (Toolkit, error), log *zap.Logger) error {
	log = log.Named("ws")
	c := &wsConn{conn: conn}
	c.keepReading()

	quit := make(chan struct{})
	defer func() {
		close(quit)
		_ = c.close()
	}()
	go c.pinger(quit, log)

	worker := NewWorker(func(resp Response) {
		if err := c.writeJSON(resp); err != nil {
			log.Warn("Unable to send response", zap.String("id", resp.ID), zap.Error(err))
		}
	}, log)

	initErr := make(chan error, 1)
	go func() {
		tk, err := init()
		if err == nil {
			err = worker.Ready(tk)
		}
		initErr <- err
	}()

	reqs := make(chan Request)
	readErr := make(chan error, 1)
	go func() {
		defer close(reqs)
		for {
			var req Request
			if err := conn.ReadJSON(&req); err != nil {
				readErr <- err
				return
			}
			select {
			case reqs <- req:
			case <-quit:
				return
			}
		}
	}()

	for {
		select {
		case req, ok := <-reqs:
			if !ok {
				err := <-readErr
				if unexpectedClose(err) {
					return fmt.Errorf("engine peer connection: %w", err)
				}
				return nil
			}
			worker.Handle(req)
		case err := <-initErr:
			if err != nil {
				return fmt.Errorf("unable to initialize toolkit: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
