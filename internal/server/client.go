// Package server manages individual WebSocket connections: each Client runs
// a read pump feeding the router and a write pump draining its send queue.
package server

import (
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = 54 * time.Second
	writeDeadline = 10 * time.Second

	// sendQueueSize bounds how far a slow reader can fall behind before the
	// hub drops the connection.
	sendQueueSize = 256
)

// Client is one live connection. The connection ID is assigned here, at the
// transport layer; the core never chooses identifiers. A nil conn is
// allowed for tests that exercise the hub without a socket.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	router *Router
	addr   string
	closed bool
}

// NewClient wraps an upgraded connection with a fresh connection ID and a
// buffered send queue.
func NewClient(conn *websocket.Conn, hub *Hub, router *Router, addr string) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		hub:    hub,
		router: router,
		addr:   addr,
	}
}

// ID returns the connection identifier the transport assigned.
func (c *Client) ID() string {
	return c.id
}

// SendQueue exposes the outbound queue for tests that read what the hub
// delivered.
func (c *Client) SendQueue() <-chan []byte {
	return c.send
}

// readPump reads frames off the socket and dispatches them to the router
// one at a time, so each event is processed to completion before the next
// one on this connection. On exit it unregisters from the hub and reports
// the disconnect so a joined session is cleaned up and the room told.
func (c *Client) readPump() {
	if c.conn == nil {
		return
	}

	defer func() {
		c.hub.Unregister(c)
		c.router.HandleEvent(c.id, Disconnect{})
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection %s in readPump: %v", c.id, err)
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting read deadline for %s: %v", c.id, err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.router.Dispatch(c.id, raw)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Frame from %s exceeded the read limit", c.addr)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Connection %s closed: %v", c.addr, err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Printf("Connection %s closed: %v", c.addr, err)
	default:
		log.Printf("Read error from %s: %v", c.addr, err)
	}
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with periodic pings. It exits when the hub closes the send channel
// or a write fails.
func (c *Client) writePump() {
	if c.conn == nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection %s in writePump: %v", c.id, err)
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				// Hub closed the queue; tell the peer we are done.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					log.Printf("Error writing close message to %s: %v", c.addr, err)
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing frame to %s: %v", c.addr, err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Printf("Error setting ping deadline for %s: %v", c.addr, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing ping to %s: %v", c.addr, err)
				}
				return
			}
		}
	}
}

// isExpectedCloseError reports errors that are routine during connection
// teardown and not worth surfacing.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
