package notify

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WSConn adapts a gorilla websocket to Conn. Data frames are serialized by
// mu; control frames use WriteControl, which gorilla allows concurrently.
type WSConn struct {
	ws        *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws, closed: make(chan struct{})}
}

func (c *WSConn) Send(ctx context.Context, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// Serve registers c with hub, keeps it alive with pings and reads until the
// peer goes away. Inbound messages are handed to onMessage and otherwise
// ignored. The connection is unregistered and closed on return.
func (c *WSConn) Serve(hub *Hub, onMessage func([]byte)) {
	hub.Register(c)
	defer func() {
		hub.Unregister(c)
		_ = c.Close()
	}()

	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.keepalive()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if onMessage != nil {
			onMessage(data)
		}
	}
}

func (c *WSConn) keepalive() {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-t.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
