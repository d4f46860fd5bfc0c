package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	// eventBuffer bounds how far a slow dashboard may lag behind the event
	// stream before it starts missing events.
	eventBuffer = 16
	keepAlive   = 30 * time.Second
)

// Client is one connected dashboard. Dashboards are read-only consumers of
// the event stream; nothing they send is interpreted.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	events chan []byte
}

func newClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		events: make(chan []byte, eventBuffer),
	}
}

// run attaches the client to the hub and pumps events until the connection
// drops, then detaches. It blocks for the lifetime of the connection.
func (c *Client) run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.relay(ctx)
	c.drainReads(ctx)
}

// drainReads consumes and discards inbound frames so the connection's
// control-frame handling keeps running. Returns when the peer goes away.
func (c *Client) drainReads(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// relay writes queued events to the peer, pinging on idle so dead
// connections are noticed and reaped.
func (c *Client) relay(ctx context.Context) {
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.events:
			if !ok {
				// Hub detached us.
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
