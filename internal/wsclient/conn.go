// Package wsclient is a thin websocket wrapper with serialized writes
// and keepalive, speaking rendezvous envelopes.
package wsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seawire/seawire/pkg/protocol"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

var dialer = websocket.Dialer{
	HandshakeTimeout: 5 * time.Second,
}

// Conn is a websocket connection to the rendezvous server. Writes are
// funneled through one goroutine because gorilla connections allow only
// a single concurrent writer.
type Conn struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	sends   chan protocol.Envelope
	done    chan struct{}
	writeMu sync.Mutex
}

// Dial connects to wsURL and starts the write loop.
func Dial(ctx context.Context, wsURL string, logger *slog.Logger) (*Conn, error) {
	conn, resp, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if len(body) > 0 {
				return nil, fmt.Errorf("websocket upgrade failed (%d): %s", resp.StatusCode, body)
			}
			return nil, fmt.Errorf("websocket upgrade failed (%d)", resp.StatusCode)
		}
		return nil, err
	}

	c := &Conn{
		conn:   conn,
		logger: logger,
		sends:  make(chan protocol.Envelope, 64),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c, nil
}

// ReadLoop delivers every inbound envelope to onEnv until the
// connection drops or ctx is cancelled. Non-text messages and malformed
// envelopes are skipped.
func (c *Conn) ReadLoop(ctx context.Context, onEnv func(env protocol.Envelope)) error {
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go c.pingLoop(ctx)
	go func() {
		<-ctx.Done()
		// Forces ReadMessage to unblock.
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("websocket read error", "error", err)
			}
			return err
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Warn("invalid envelope", "error", err)
			continue
		}
		onEnv(env)
	}
}

func (c *Conn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Send queues an envelope for transmission.
func (c *Conn) Send(env protocol.Envelope) error {
	select {
	case c.sends <- env:
		return nil
	case <-c.done:
		return fmt.Errorf("connection closed")
	}
}

func (c *Conn) writeLoop() {
	defer close(c.done)
	for env := range c.sends {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := c.conn.WriteJSON(env)
		c.writeMu.Unlock()
		if err != nil {
			c.logger.Error("websocket write error", "error", err)
			return
		}
	}
}

// Close flushes queued sends and closes the socket.
func (c *Conn) Close() error {
	close(c.sends)
	<-c.done
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Close()
}
