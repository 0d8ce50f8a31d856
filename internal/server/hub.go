package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/telemetry"
)

const (
	// writeTimeout bounds every websocket write, including pings.
	writeTimeout = 10 * time.Second

	// pingInterval is the keepalive cadence; the read deadline allows one
	// missed ping before the connection is considered dead.
	pingInterval = 30 * time.Second

	// sendBufferSize is the per-client send queue. A client that falls
	// this far behind the feed is disconnected.
	sendBufferSize = 32

	// readLimit caps inbound message size. Clients only ever send small
	// keepalive payloads.
	readLimit = 512
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans ingested frames out to websocket clients. Every client owns a
// buffered send queue drained by its own writer goroutine; the broadcast
// never blocks on a client, it disconnects clients that cannot keep up.
type Hub struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
	hello   func() any
	onEmpty func()

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// HubOption configures optional hub behaviour.
type HubOption func(*Hub)

// WithHello sets a callback producing the status payload sent to every
// client right after it connects.
func WithHello(fn func() any) HubOption {
	return func(h *Hub) {
		h.hello = fn
	}
}

// WithOnEmpty sets a callback invoked whenever the last client leaves.
func WithOnEmpty(fn func()) HubOption {
	return func(h *Hub) {
		h.onEmpty = fn
	}
}

// NewHub creates a hub reporting into the given logger and metrics.
func NewHub(logger *slog.Logger, metrics *telemetry.Metrics, opts ...HubOption) *Hub {
	h := &Hub{
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is served to local dashboards and peers alike.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the feed until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return // the upgrader has already written the response
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	if h.hello != nil {
		if msg, err := encodeEnvelope(spectrum.MessageTypeStatus, h.hello()); err == nil {
			c.send <- msg
		}
	}

	h.register(c)
	h.logger.Info("client connected",
		slog.String("remote", conn.RemoteAddr().String()),
		slog.Int64("clients", h.metrics.Clients()))

	go h.writePump(c)
	h.readPump(c)

	h.unregister(c)
	h.logger.Info("client disconnected",
		slog.String("remote", conn.RemoteAddr().String()),
		slog.Int64("clients", h.metrics.Clients()))
}

// BroadcastFrame sends the frame to every connected client as a
// spectrum_data envelope. Encoding happens once per broadcast.
func (h *Hub) BroadcastFrame(frame *spectrum.Frame) {
	if frame == nil {
		return
	}

	msg, err := encodeEnvelope(spectrum.MessageTypeSpectrum, frame)
	if err != nil {
		h.logger.Warn("failed to encode frame", slog.String("error", err.Error()))
		return
	}
	h.broadcast(msg)
}

// BroadcastStatus sends a status envelope to every connected client.
func (h *Hub) BroadcastStatus(payload any) {
	msg, err := encodeEnvelope(spectrum.MessageTypeStatus, payload)
	if err != nil {
		h.logger.Warn("failed to encode status", slog.String("error", err.Error()))
		return
	}
	h.broadcast(msg)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

// broadcast queues the message on every client, dropping clients whose
// queue is full rather than stalling the ingestion path.
func (h *Hub) broadcast(msg []byte) {
	var dropped []*client

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		delete(h.clients, c)
		close(c.send)
	}
	empty := len(h.clients) == 0
	h.mu.Unlock()

	for _, c := range dropped {
		h.metrics.ClientDisconnected()
		h.logger.Warn("dropping slow client", slog.String("remote", c.conn.RemoteAddr().String()))
	}
	if len(dropped) > 0 && empty && h.onEmpty != nil {
		h.onEmpty()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ClientConnected()
}

// unregister removes the client unless the broadcast already dropped it.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	empty := len(h.clients) == 0
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.ClientDisconnected()
	if empty && h.onEmpty != nil {
		h.onEmpty()
	}
}

// readPump consumes client messages until the connection dies. Clients
// send nothing the server acts on; the read loop exists to detect
// disconnects and answer the keepalive.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(readLimit)
	deadline := 2 * pingInterval
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(deadline))
	}
}

// writePump drains the send queue onto the connection and keeps the
// client alive with pings. It owns all writes on the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Dropped by the broadcast or unregistered
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// encodeEnvelope wraps a payload in a typed feed envelope.
func encodeEnvelope(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", msgType, err)
	}
	return json.Marshal(spectrum.Envelope{Type: msgType, Data: data})
}
