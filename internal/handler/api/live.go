package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	applogger "MarketSignal/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBuffer   = 8
)

// LiveHub fans dashboard snapshots out to WebSocket subscribers.
// Slow subscribers whose buffer is full are disconnected.
type LiveHub struct {
	mu       sync.Mutex
	clients  map[*liveClient]struct{}
	upgrader websocket.Upgrader
	log      *applogger.Logger
	// initial returns the message sent right after a client connects; may be nil.
	initial func(c echo.Context) (interface{}, error)
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *liveClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewLiveHub creates an empty hub.
func NewLiveHub(l *applogger.Logger) *LiveHub {
	return &LiveHub{
		clients: make(map[*liveClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: l,
	}
}

// OnConnect sets the snapshot producer for new subscribers.
func (h *LiveHub) OnConnect(fn func(c echo.Context) (interface{}, error)) {
	h.initial = fn
}

// Len returns the number of connected subscribers.
func (h *LiveHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends v as JSON to every subscriber.
func (h *LiveHub) Broadcast(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Error("live broadcast encode failed", applogger.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			delete(h.clients, c)
			c.close()
		}
	}
}

// Close disconnects every subscriber.
func (h *LiveHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// Serve upgrades the request and streams snapshots until the client leaves.
func (h *LiveHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote an error response
		h.log.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	client := &liveClient{conn: conn, send: make(chan []byte, sendBuffer)}

	if h.initial != nil {
		if v, err := h.initial(c); err != nil {
			h.log.Warn("live initial snapshot failed", applogger.Error(err))
		} else if b, err := json.Marshal(v); err == nil {
			client.send <- b
		}
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("live subscriber connected", applogger.String("remote", c.RealIP()))

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// readPump discards client messages and detects disconnects via pong deadlines.
func (h *LiveHub) readPump(c *liveClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			c.close()
		}
		h.mu.Unlock()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHub) writePump(c *liveClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
