// Package server coordinates connection registration, room broadcast, and
// targeted delivery through the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// frame is one marshaled envelope queued for delivery. An empty target
// means room broadcast; otherwise it names a single connection.
type frame struct {
	target  string
	payload []byte
}

// Hub owns the set of live connections and is the Broadcaster the router
// and presence publisher emit through. Registration, unregistration, and
// delivery all funnel through one Run loop, so frames go out in the order
// they were produced.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	frames     chan frame
	mu         sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a hub ready to manage connections. Run must be started in
// its own goroutine before clients are registered.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		frames:     make(chan frame, 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a new connection to the hub; the hub starts the client's
// pump goroutines.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a connection from the hub and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastToRoom queues an event for every live connection, joined or not.
// Delivery is best effort; the call never blocks on a slow client.
func (h *Hub) BroadcastToRoom(event string, payload any) {
	h.enqueue("", event, payload)
}

// DeliverTo queues an event for exactly one connection. If that connection
// is gone the frame is dropped without telling the caller.
func (h *Hub) DeliverTo(connID, event string, payload any) {
	h.enqueue(connID, event, payload)
}

func (h *Hub) enqueue(target, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Dropping %s frame: marshal payload: %v", event, err)
		return
	}
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		log.Printf("Dropping %s frame: marshal envelope: %v", event, err)
		return
	}

	select {
	case h.frames <- frame{target: target, payload: raw}:
	case <-h.ctx.Done():
	}
}

// Run is the hub's event loop. It must run in its own goroutine and exits
// only on Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Ignoring nil client registration")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.dropClient(client)

		case f := <-h.frames:
			if f.target == "" {
				h.broadcastFrame(f.payload)
			} else {
				h.deliverFrame(f.target, f.payload)
			}
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	client.closed = false
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("Connection %s registered from %s. Total connections: %d", client.id, client.addr, total)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	total := len(h.clients)
	h.mu.Unlock()

	// Close the send channel only after the map no longer references the
	// client, so in-flight sends see the closed flag first.
	close(client.send)
	log.Printf("Connection %s unregistered from %s. Total connections: %d", client.id, client.addr, total)
}

func (h *Hub) broadcastFrame(payload []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	var failed []*Client
	for _, client := range targets {
		if !h.trySend(client, payload) {
			failed = append(failed, client)
		}
	}
	h.dropFailed(failed)
}

func (h *Hub) deliverFrame(connID string, payload []byte) {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !h.trySend(client, payload) {
		h.dropFailed([]*Client{client})
	}
}

// trySend queues a payload on the client's send channel without blocking.
// The client may be unregistered concurrently by its own readPump, so the
// closed check and the send happen under the read lock, with a recover for
// the window where the channel closes anyway.
func (h *Hub) trySend(client *Client, payload []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from send on closed channel for %s: %v", client.id, r)
			ok = false
		}
	}()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, exists := h.clients[client.id]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

func (h *Hub) dropFailed(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	var toClose []chan []byte
	for _, client := range failed {
		if _, ok := h.clients[client.id]; ok {
			delete(h.clients, client.id)
			client.closed = true
			toClose = append(toClose, client.send)
			log.Printf("Connection %s from %s dropped: send buffer full", client.id, client.addr)
		}
	}
	h.mu.Unlock()

	for _, ch := range toClose {
		close(ch)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection %s: %v", client.id, err)
		}
	}
	log.Printf("Closed %d connections", len(clients))
}

// Shutdown stops the run loop, closes every connection, and waits up to
// timeout for the pump goroutines to finish.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Shutting down hub...")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Println("Hub shutdown complete")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timed out; some connection goroutines may still be running")
		return context.DeadlineExceeded
	}
}
