package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/airpiano/internal/keyboard"
	"github.com/ayusman/airpiano/internal/piano"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	clientBuffer = 16
	writeTimeout = time.Second
)

// Fire is one key trigger in a State message.
type Fire struct {
	Note    int    `json:"note"`
	Name    string `json:"name"`
	Played  bool   `json:"played"`
	Stopped int    `json:"stopped"`
	Error   string `json:"error,omitempty"`
}

// State is the per-frame message broadcast to websocket clients.
type State struct {
	Seq         uint64              `json:"seq"`
	Timestamp   int64               `json:"timestamp"`
	Points      []piano.FingerPoint `json:"points"`
	Highlighted []int               `json:"highlighted"`
	Fired       []Fire              `json:"fired,omitempty"`
	Playing     []int               `json:"playing"`
}

// NewState converts a processed frame into a State message.
func NewState(seq uint64, now time.Time, f piano.Frame, playing []int, baseOctave int) State {
	s := State{
		Seq:         seq,
		Timestamp:   now.UnixMilli(),
		Points:      f.Points,
		Highlighted: f.Highlighted,
		Playing:     playing,
	}
	if s.Points == nil {
		s.Points = []piano.FingerPoint{}
	}
	if s.Highlighted == nil {
		s.Highlighted = []int{}
	}
	if s.Playing == nil {
		s.Playing = []int{}
	}
	for _, o := range f.Fired {
		fire := Fire{
			Note:    o.Note,
			Name:    keyboard.NoteName(o.Note, baseOctave),
			Played:  o.Played,
			Stopped: o.Stopped,
		}
		if o.Err != nil {
			fire.Error = o.Err.Error()
		}
		s.Fired = append(s.Fired, fire)
	}
	return s
}

// Hub broadcasts key state to websocket clients. Each client has its own
// buffered queue; a client that falls behind loses messages rather than
// stalling the publisher.
type Hub struct {
	clients map[*client]bool
	last    []byte
	mu      sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// Publish sends s to every connected client.
func (h *Hub) Publish(s State) {
	msg, err := json.Marshal(s)
	if err != nil {
		log.Printf("Error encoding state: %v", err)
		return
	}

	h.mu.Lock()
	h.last = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams state messages until the
// client disconnects. The latest state is sent first.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.last != nil {
		c.send <- h.last
	}
	h.clients[c] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Keep connection alive by reading messages
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
