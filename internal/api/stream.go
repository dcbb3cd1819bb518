package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/fleetcore/internal/event"
	"github.com/Iron-Ham/fleetcore/internal/logging"
)

const (
	clientBuffer = 8
	writeWait    = time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// hub fans metrics snapshots out to websocket clients. Slow clients drop
// snapshots rather than stalling the dispatch tick that publishes them.
type hub struct {
	bus      *event.Bus
	subID    string
	interval time.Duration
	logger   *logging.Logger

	mu       sync.Mutex
	clients  map[chan map[string]float64]struct{}
	lastSent time.Time
	latest   map[string]float64
}

func newHub(bus *event.Bus, interval time.Duration, logger *logging.Logger) *hub {
	h := &hub{
		bus:      bus,
		interval: interval,
		logger:   logger,
		clients:  make(map[chan map[string]float64]struct{}),
	}
	h.subID = bus.Subscribe(event.TypeMetricsSnapshot, h.onSnapshot)
	return h
}

func (h *hub) onSnapshot(e event.Event) {
	snap, ok := e.(event.MetricsSnapshotEvent)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = snap.Values
	if time.Since(h.lastSent) < h.interval {
		return
	}
	h.lastSent = time.Now()
	for ch := range h.clients {
		select {
		case ch <- snap.Values:
		default:
		}
	}
}

func (h *hub) add() (chan map[string]float64, map[string]float64) {
	ch := make(chan map[string]float64, clientBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[ch] = struct{}{}
	return ch, h.latest
}

func (h *hub) remove(ch chan map[string]float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *hub) close() {
	h.bus.Unsubscribe(h.subID)
	h.closeAll()
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, latest := s.stream.add()
	defer s.stream.remove(ch)

	if latest == nil {
		latest = s.sched.Status().Metrics
	}
	if err := writeSnapshot(conn, latest); err != nil {
		return
	}

	// The read loop only watches for the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case snap, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap map[string]float64) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(map[string]any{"type": event.TypeMetricsSnapshot, "metrics": snap})
}
