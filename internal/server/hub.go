package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"unitdeck/internal/monitor"
)

const (
	eventsBuffer       = 32
	eventsWriteTimeout = 5 * time.Second
)

// hub fans monitor events out to websocket subscribers. publish never
// blocks; a subscriber that falls behind loses events rather than
// stalling the rest.
type hub struct {
	mu   sync.RWMutex
	subs map[uint64]chan monitor.Event
	seq  atomic.Uint64
}

func newHub() *hub {
	return &hub{subs: map[uint64]chan monitor.Event{}}
}

func (h *hub) publish(ev monitor.Event) {
	// Snapshot subscribers so publish holds no lock while sending.
	h.mu.RLock()
	chs := make([]chan monitor.Event, 0, len(h.subs))
	for _, ch := range h.subs {
		chs = append(chs, ch)
	}
	h.mu.RUnlock()

	for _, ch := range chs {
		// A subscriber may unsubscribe concurrently, closing its
		// channel; recover absorbs the send panic in that window.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- ev:
			default:
			}
		}()
	}
}

func (h *hub) subscribe(buffer int) (<-chan monitor.Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan monitor.Event, buffer)
	id := h.seq.Add(1)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Broadcast fans monitor events out to connected websocket clients.
// It returns when events is closed.
func (s *Server) Broadcast(events <-chan monitor.Event) {
	for ev := range events {
		s.hub.publish(ev)
	}
}

var eventsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveEventsConnection(conn)
}

func (s *Server) serveEventsConnection(conn *websocket.Conn) {
	defer conn.Close()

	events, unsubscribe := s.hub.subscribe(eventsBuffer)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
