// Package server coordinates client registration, event delivery, and
// connection cleanup for the WebSocket transport via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub manages all WebSocket client connections, keyed by connection id, and
// delivers event envelopes to one client or to everyone. It satisfies the chat
// core's Sender contract, so the core never touches a socket directly.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	onConnect    func(connID string)
	onDisconnect func(connID string)
}

// NewHub creates and initializes a new Hub instance with all necessary
// channels and the client map. The returned Hub is ready to manage WebSocket
// connections once Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// OnConnect registers a callback invoked from the hub loop after a client is
// registered and can receive events. Must be set before Run.
func (h *Hub) OnConnect(fn func(connID string)) {
	h.onConnect = fn
}

// OnDisconnect registers a callback invoked from the hub loop after a client
// is unregistered. Must be set before Run.
func (h *Hub) OnDisconnect(fn func(connID string)) {
	h.onDisconnect = fn
}

// Send delivers one event to one connection. Unknown connection ids are
// dropped silently: the client may have disconnected between the state change
// and the fan-out.
func (h *Hub) Send(connID, event string, data any) {
	payload, err := json.Marshal(outEnvelope{Event: event, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s event for %s: %v", event, connID, err)
		return
	}

	h.mutex.RLock()
	client := h.clients[connID]
	h.mutex.RUnlock()
	if client == nil {
		return
	}

	if !h.safeSend(client, payload) {
		h.closeFailedClients([]*Client{client})
	}
}

// Broadcast delivers one event to every connected client.
func (h *Hub) Broadcast(event string, data any) {
	payload, err := json.Marshal(outEnvelope{Event: event, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s broadcast: %v", event, err)
		return
	}

	var clientsToRemove []*Client
	for _, client := range h.getClientSnapshot() {
		if !h.safeSend(client, payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	h.closeFailedClients(clientsToRemove)
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	// Check if client is still registered and not closed
	_, exists := h.clients[client.id]
	if !exists || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. This method should be called in a separate goroutine as it
// runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s registered from %s. Total clients: %d", client.id, client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

			if h.onConnect != nil {
				h.onConnect(client.id)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				log.Printf("Client %s unregistered from %s. Total clients: %d", client.id, client.addr, clientCount)
				if h.onDisconnect != nil {
					h.onDisconnect(client.id)
				}
			} else {
				h.mutex.Unlock()
			}
		}
	}
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// closeFailedClients force-closes connections that failed to receive events.
// The read pump notices the closed socket and drives the normal unregister
// path, so state cleanup happens exactly once and never on the caller's
// goroutine, which may be deep inside the chat core.
func (h *Hub) closeFailedClients(failed []*Client) {
	for _, client := range failed {
		log.Printf("Client %s dropped due to full send buffer", client.id)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing stalled client %s: %v", client.id, err)
			}
		}
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	clients := h.getClientSnapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
