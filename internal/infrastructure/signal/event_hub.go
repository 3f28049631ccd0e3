package signal

import (
	"net/http"
	"sync"
	"time"

	"kalonconnect/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type HubConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	BufferSize     int
	AllowedOrigins []string
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		BufferSize:   32,
	}
}

type subscriber struct {
	sessionID domain.SessionID
	conn      *websocket.Conn
	send      chan domain.SessionEvent
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// EventHub fans session events out to websocket subscribers. Events for a
// session go to that session's subscribers; events without a session go
// to everyone.
type EventHub struct {
	config   HubConfig
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[domain.SessionID]map[*subscriber]struct{}

	logger *zap.SugaredLogger
}

func NewEventHub(config HubConfig, logger *zap.SugaredLogger) *EventHub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultHubConfig().BufferSize
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	h := &EventHub{
		config:      config,
		subscribers: make(map[domain.SessionID]map[*subscriber]struct{}),
		logger:      logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *EventHub) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Publish never blocks. A subscriber whose buffer is full misses the event.
func (h *EventHub) Publish(event domain.SessionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	deliver := func(subs map[*subscriber]struct{}) {
		for sub := range subs {
			select {
			case sub.send <- event:
			default:
				h.logger.Warnw("dropping event for slow subscriber",
					"session_id", sub.sessionID,
					"event", event.Type,
				)
			}
		}
	}

	if event.SessionID == "" {
		for _, subs := range h.subscribers {
			deliver(subs)
		}
		return
	}
	deliver(h.subscribers[event.SessionID])
}

// Subscribers returns the number of open subscriptions for sessionID.
func (h *EventHub) Subscribers(sessionID domain.SessionID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[sessionID])
}

// HandleWebSocket upgrades the request and streams sessionID's events to it
// until the client goes away.
func (h *EventHub) HandleWebSocket(w http.ResponseWriter, r *http.Request, sessionID domain.SessionID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	sub := &subscriber{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan domain.SessionEvent, h.config.BufferSize),
		done:      make(chan struct{}),
	}
	h.register(sub)
	h.logger.Infow("event subscriber connected", "session_id", sessionID)

	go h.readPump(sub)
	h.writePump(sub)

	h.unregister(sub)
	conn.Close()
	h.logger.Infow("event subscriber disconnected", "session_id", sessionID)
}

func (h *EventHub) register(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sub.sessionID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.subscribers[sub.sessionID] = subs
	}
	subs[sub] = struct{}{}
}

func (h *EventHub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subscribers[sub.sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscribers, sub.sessionID)
		}
	}
}

// readPump only exists to process pongs and notice the close frame.
func (h *EventHub) readPump(sub *subscriber) {
	defer sub.close()

	sub.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Infow("event subscriber read error", "session_id", sub.sessionID, "error", err)
			}
			return
		}
	}
}

func (h *EventHub) writePump(sub *subscriber) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := sub.conn.WriteJSON(event); err != nil {
				h.logger.Infow("error sending event", "session_id", sub.sessionID, "error", err)
				return
			}

		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Infow("error sending ping", "session_id", sub.sessionID, "error", err)
				return
			}

		case <-sub.done:
			return
		}
	}
}
