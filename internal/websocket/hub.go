package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
)

// EventsChannel is the Redis channel every instance relays to its sockets.
const EventsChannel = "studybuddy:events"

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	outboundSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans app-wide events out to every connected client. With Redis the
// events go through pub/sub so every instance sees them; without it fan-out
// is local.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*peer
	redis   *redis.Client
	log     *logger.Logger
}

func NewHub(redisClient *redis.Client, log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*peer),
		redis:   redisClient,
		log:     log.With("component", "event_hub"),
	}
}

// Run starts relaying pub/sub messages until ctx is done. It is a no-op
// without Redis.
func (h *Hub) Run(ctx context.Context) error {
	if h.redis == nil {
		return nil
	}

	sub := h.redis.Subscribe(ctx, EventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", EventsChannel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h.broadcast([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

// Publish sends msg to every client. A failed Redis publish falls back to
// local delivery.
func (h *Hub) Publish(ctx context.Context, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal event", "type", msg.Type, "error", err)
		return
	}

	if h.redis != nil {
		err := h.redis.Publish(ctx, EventsChannel, data).Err()
		if err == nil {
			return
		}
		h.log.Warn("redis publish failed, delivering locally", "type", msg.Type, "error", err)
	}
	h.broadcast(data)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	p := newPeer(conn, h.log)
	h.register(p)

	go p.writePump()
	go func() {
		defer h.unregister(p)
		p.readLoop(func([]byte) {})
	}()
}

func (h *Hub) register(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[p.id] = p
	h.log.Debug("event socket connected", "conn_id", p.id, "total", len(h.clients))
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	delete(h.clients, p.id)
	h.mu.Unlock()

	p.close()
	h.log.Debug("event socket disconnected", "conn_id", p.id)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, p := range h.clients {
		if !p.enqueue(data) {
			h.log.Warn("dropping event, outbound buffer full", "conn_id", p.id)
		}
	}
}

// peer is one websocket connection with its own outbound queue. Only
// writePump writes to the connection.
type peer struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *logger.Logger
}

func newPeer(conn *websocket.Conn, log *logger.Logger) *peer {
	return &peer{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, outboundSize),
		done: make(chan struct{}),
		log:  log,
	}
}

// enqueue reports false when the message was dropped.
func (p *peer) enqueue(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

func (p *peer) enqueueJSON(msg models.WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("failed to marshal event", "type", msg.Type, "error", err)
		return false
	}
	return p.enqueue(data)
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.close()
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return
			}
		}
	}
}

// readLoop blocks until the connection closes, handing each text frame to
// onMessage.
func (p *peer) readLoop(onMessage func([]byte)) {
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		onMessage(data)
	}
}
