package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// hubClient is one connected state-stream consumer. Snapshots are queued on
// send; the writer goroutine drains the queue so a slow client never blocks
// the dispatching goroutine.
type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans dashboard-state snapshots out to WebSocket clients. New clients
// receive the latest snapshot immediately on connect.
//
// All channel sends and the close happen under mu; sends are non-blocking
// (drop-oldest when a queue is full), so the lock is never held across IO.
type Hub struct {
	mu        sync.Mutex
	clients   map[*hubClient]struct{}
	latest    []byte
	writeWait time.Duration
	sendBuf   int
	logger    *slog.Logger
}

// NewHub creates an empty hub. Client queues need at least one slot: the
// drop-oldest send and the latest-snapshot send on connect both require a
// buffered channel.
func NewHub(writeWait time.Duration, sendBuf int, logger *slog.Logger) *Hub {
	if sendBuf < 1 {
		sendBuf = 1
	}
	return &Hub{
		clients:   make(map[*hubClient]struct{}),
		writeWait: writeWait,
		sendBuf:   sendBuf,
		logger:    logger,
	}
}

// queueLocked enqueues msg for c, dropping the oldest queued snapshot when
// the buffer is full. Clients only ever need the latest state.
func queueLocked(c *hubClient, msg []byte) {
	for {
		select {
		case c.send <- msg:
			return
		default:
			select {
			case <-c.send:
			default:
			}
		}
	}
}

// Broadcast queues a snapshot for every connected client.
func (h *Hub) Broadcast(snapshot []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = snapshot
	for c := range h.clients {
		queueLocked(c, snapshot)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[*hubClient]struct{})
}

// unregister removes c and closes its queue exactly once.
func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, present := h.clients[c]; present {
		delete(h.clients, c)
		close(c.send)
	}
}

// serve runs the connection until the client goes away. The reader goroutine
// exists only to observe close frames; clients never send data.
func (h *Hub) serve(conn *websocket.Conn) {
	c := &hubClient{conn: conn, send: make(chan []byte, h.sendBuf)}

	h.mu.Lock()
	if h.latest != nil {
		c.send <- h.latest
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unregister(c)
				return
			}
		}
	}()

	for msg := range c.send {
		conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("state stream write failed", "error", err)
			h.unregister(c)
			break
		}
	}
	conn.Close()
}
