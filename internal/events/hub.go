// Package events pushes wheel changes and spin results to websocket clients.
// Clients subscribe to one channel (a wheel id) with /ws?wheel=<id>.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"

	"github.com/MJE43/fortune-wheel-go/internal/lib/logger/sl"
)

const (
	EventSpin   = "spin"
	EventSlices = "slices"
	EventReset  = "history_reset"
	EventDelete = "wheel_deleted"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Emitter publishes an event to every subscriber of channel.
type Emitter interface {
	Emit(channel, event string, data any)
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(string, string, any) {}

// Message is the frame written to clients.
type Message struct {
	Channel string    `json:"channel"`
	Event   string    `json:"event"`
	Data    any       `json:"data"`
	Time    time.Time `json:"time"`
}

type client struct {
	conn    *websocket.Conn
	channel string
	send    chan []byte
}

// Hub fans messages out to subscribed connections. Run must be started
// before Emit or ServeWS are used.
type Hub struct {
	log       *slog.Logger
	upgrader  websocket.Upgrader
	broadcast chan Message
	register  chan *client
	remove    chan *client
	done      chan struct{}

	mu       sync.RWMutex
	channels map[string]map[*client]struct{}
}

// NewHub builds a hub. allowedOrigins restricts browser origins; "*" or an
// empty list allows any.
func NewHub(log *slog.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		log:       log,
		broadcast: make(chan Message, 64),
		register:  make(chan *client),
		remove:    make(chan *client),
		done:      make(chan struct{}),
		channels:  make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Run serves the hub until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, receivers := range h.channels {
				for c := range receivers {
					close(c.send)
				}
			}
			h.channels = make(map[string]map[*client]struct{})
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.channels[c.channel] == nil {
				h.channels[c.channel] = make(map[*client]struct{})
			}
			h.channels[c.channel][c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.remove:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	receivers, ok := h.channels[msg.Channel]
	if !ok {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", sl.Err(err))
		return
	}

	h.log.Debug("broadcasting message",
		sl.String("channel", msg.Channel),
		sl.String("event", msg.Event),
		sl.Int("receivers", len(receivers)),
	)

	for c := range receivers {
		select {
		case c.send <- data:
		default:
			h.log.Warn("dropping slow client", sl.String("channel", c.channel))
			h.drop(c)
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *client) {
	receivers, ok := h.channels[c.channel]
	if !ok {
		return
	}
	if _, ok := receivers[c]; !ok {
		return
	}
	delete(receivers, c)
	close(c.send)
	if len(receivers) == 0 {
		delete(h.channels, c.channel)
	}
}

// Emit queues an event. It never blocks once the hub has stopped.
func (h *Hub) Emit(channel, event string, data any) {
	msg := Message{Channel: channel, Event: event, Data: data, Time: time.Now().UTC()}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Subscribers returns the number of clients on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// ServeWS upgrades the request and subscribes it to the "wheel" query
// parameter. Client frames are read and discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("wheel")
	if channel == "" {
		http.Error(w, "missing wheel parameter", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("failed to upgrade connection", sl.Err(err))
		return
	}

	c := &client{conn: conn, channel: channel, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.remove <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read failed", sl.Err(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Error("failed to write message", sl.Err(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
