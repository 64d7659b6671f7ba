// Package live pushes report changes to connected map and dashboard clients
// over websockets.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/websocket"
	"p9e.in/zeladoria/metrics"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/pkg/reportquery"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

type EventType string

const (
	Created EventType = "created"
	Updated EventType = "updated"
	Deleted EventType = "deleted"
)

// Event is one report change as sent to clients.
type Event struct {
	Type      EventType       `json:"type"`
	Report    *models.Report  `json:"report,omitempty"`
	ID        int             `json:"id"`
	Timestamp models.JSONTime `json:"timestamp"`

	gabineteID string
}

// ReportEvent builds a created/updated event carrying the report.
func ReportEvent(t EventType, r models.Report, now time.Time) Event {
	c := r.Clone()
	return Event{Type: t, Report: &c, ID: r.ID, Timestamp: models.StampNow(now), gabineteID: r.GabineteID()}
}

// DeletedEvent builds a deletion event; gabineteID scopes who hears it.
func DeletedEvent(id int, gabineteID string, now time.Time) Event {
	return Event{Type: Deleted, ID: id, Timestamp: models.StampNow(now), gabineteID: gabineteID}
}

func (e Event) visibleTo(v reportquery.Viewer) bool {
	if v.Role == models.RoleAdmin {
		return true
	}
	return e.gabineteID != "" && e.gabineteID == v.GabineteID
}

// Publisher is what handlers depend on.
type Publisher interface {
	Publish(Event)
}

// Hub fans events out to every registered client that may see them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.LiveClients.Set(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.LiveClients.Set(float64(n))
			log.WithField("user", c.userID).Debug("live client registered")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.LiveClients.Set(float64(n))
			log.WithField("user", c.userID).Debug("live client unregistered")

		case e := <-h.broadcast:
			data, err := json.Marshal(e)
			if err != nil {
				log.WithError(err).Error("encode live event")
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				if !e.visibleTo(c.viewer) {
					continue
				}
				select {
				case c.send <- data:
				default:
					// too slow; drop the client rather than block the hub
					close(c.send)
					delete(h.clients, c)
				}
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.LiveClients.Set(float64(n))
		}
	}
}

// Publish queues e without blocking. Events are dropped when the queue is
// full.
func (h *Hub) Publish(e Event) {
	select {
	case h.broadcast <- e:
	default:
		log.WithField("type", e.Type).Warn("live queue full, event dropped")
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	viewer reportquery.Viewer
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve upgrades the request and attaches the connection to the hub.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string, v reportquery.Viewer) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
		viewer: v,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return nil
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump only watches for close and pong frames; clients never send data.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("user", c.userID).Warn("live read error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
