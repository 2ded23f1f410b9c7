package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventsWriteWait = 10 * time.Second
	eventsPongWait  = 60 * time.Second
	eventsPingEvery = (eventsPongWait * 9) / 10
	eventsBuffer    = 8
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// hub fans session snapshots out to websocket clients. A slow client loses
// intermediate snapshots, never the latest one.
type hub struct {
	mu      sync.Mutex
	clients map[chan stateView]struct{}
	logger  *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{clients: make(map[chan stateView]struct{}), logger: logger}
}

func (h *hub) add() chan stateView {
	ch := make(chan stateView, eventsBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) remove(ch chan stateView) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *hub) publish(v stateView) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- v:
			continue
		default:
		}
		// Full: drop the oldest pending snapshot to make room.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
			h.logger.Warn("dropping state update for slow client")
		}
	}
}

// handleEvents streams a snapshot on connect and after every change.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer closeWithLog(conn, "websocket", s.logger)

	ch := s.hub.add()
	defer s.hub.remove(ch)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(eventsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})

	// Clients send nothing; reading surfaces the close frame.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(v)
	}

	if err := write(newStateView(s.service.Session().Snapshot())); err != nil {
		return
	}

	ticker := time.NewTicker(eventsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if err := write(v); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
