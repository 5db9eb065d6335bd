package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"survivor-arena/internal/config"
	"survivor-arena/internal/game"
	"survivor-arena/internal/metrics"
	"survivor-arena/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// SessionEngine is the part of the engine a session drives
type SessionEngine interface {
	Join(sessionID string) []game.Event
	SetName(sessionID, name string) []game.Event
	Move(sessionID string, x, y float64) []game.Event
	Shoot(sessionID string, x, y, angle float64) []game.Event
	ReportHit(sessionID, enemyID string, damage float64) []game.Event
	CollectPickup(sessionID, pickupID string) []game.Event
	ChooseUpgrade(sessionID string, upgrade game.UpgradeType) []game.Event
	Disconnect(sessionID string) []game.Event
}

// session is one connected client
type session struct {
	id      string
	ip      string
	conn    *websocket.Conn
	codec   protocol.Codec
	send    chan []byte
	limiter *rate.Limiter

	closed    chan struct{}
	closeOnce sync.Once
}

// enqueue never blocks: a slow reader loses frames rather than stalling the
// engine, which dispatches while holding its lock.
func (s *session) enqueue(frame []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}

	select {
	case s.send <- frame:
		return true
	default:
		metrics.RecordWSFrameDropped()
		return false
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	msgType := websocket.TextMessage
	if s.codec.Binary() {
		msgType = websocket.BinaryMessage
	}

	for {
		select {
		case <-s.closed:
			return
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(msgType, frame); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.close()
				return
			}
		}
	}
}

// Hub owns the WebSocket sessions. It is the engine's Dispatcher and turns
// inbound frames into engine calls through a Gateway.
type Hub struct {
	engine   SessionEngine
	gateway  *Gateway
	limits   config.ResourceLimits
	upgrader websocket.Upgrader
	conns    *ConnLimiter

	sessions map[string]*session
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewHub creates a hub. No goroutines run until a client connects.
func NewHub(engine SessionEngine, cfg config.AppConfig) *Hub {
	origins := NewOriginChecker(cfg.Server.AllowedOrigins)
	h := &Hub{
		engine:   engine,
		gateway:  NewGateway(engine, cfg),
		limits:   cfg.Limits,
		conns:    NewConnLimiter(cfg.Limits.MaxWSConnectionsPerIP),
		sessions: make(map[string]*session),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allow(origin) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			metrics.RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Dispatch implements game.Dispatcher. It runs under the engine lock, so it
// only encodes and enqueues. Each codec encodes an event at most once.
func (h *Hub) Dispatch(events []game.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.sessions) == 0 {
		return
	}

	for _, ev := range events {
		frames := make(map[string][]byte, 2)
		if !ev.Broadcast() {
			if s, ok := h.sessions[ev.Target]; ok {
				h.deliver(s, ev, frames)
			}
			continue
		}
		for id, s := range h.sessions {
			if ev.Deliver(id) {
				h.deliver(s, ev, frames)
			}
		}
	}
}

func (h *Hub) deliver(s *session, ev game.Event, frames map[string][]byte) {
	name := s.codec.Name()
	frame, cached := frames[name]
	if !cached {
		var err error
		frame, err = s.codec.Encode(ev.Type.String(), ev.Payload)
		if err != nil {
			log.Printf("⚠️ Failed to encode %s for %s: %v", ev.Type, name, err)
		}
		frames[name] = frame
	}
	if frame != nil && s.enqueue(frame) {
		metrics.RecordWSMessage("out")
	}
}

// SessionCount returns the number of connected sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// HandleWebSocket upgrades the request and serves the session until it closes.
// ?codec=msgpack selects binary MessagePack frames.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if n := h.SessionCount(); n >= h.limits.MaxWSConnections {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", n)
		metrics.RecordConnectionRejected("ws_limit")
		writeError(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	codec, ok := protocol.Lookup(r.URL.Query().Get("codec"))
	if !ok {
		writeError(w, "Unknown codec", http.StatusBadRequest)
		return
	}

	if !h.conns.Acquire(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		metrics.RecordConnectionRejected("ws_limit")
		writeError(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		metrics.RecordConnectionRejected("upgrade")
		h.conns.Release(ip)
		return
	}

	s := &session{
		id:      uuid.NewString(),
		ip:      ip,
		conn:    conn,
		codec:   codec,
		send:    make(chan []byte, sendBufferSize),
		limiter: rate.NewLimiter(rate.Limit(h.limits.SessionMessagesPerSecond), h.limits.SessionMessageBurst),
		closed:  make(chan struct{}),
	}

	h.wg.Add(1)
	defer h.wg.Done()
	h.serve(s)
}

// serve registers before joining so the joiner receives its own fullState.
// The hub lock is never held across an engine call.
func (h *Hub) serve(s *session) {
	h.register(s)
	go s.writePump()

	if events := h.engine.Join(s.id); len(events) == 0 {
		log.Printf("⚠️ Session %s rejected: server full", s.id)
		metrics.RecordConnectionRejected("server_full")
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server full")
		s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		h.unregister(s)
		return
	}

	h.readPump(s)
	h.unregister(s)
	h.engine.Disconnect(s.id)
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	count := len(h.sessions)
	h.mu.Unlock()

	log.Printf("📱 Session %s connected from %s (%s, %d total)", s.id, s.ip, s.codec.Name(), count)
	metrics.UpdateWSConnections(count)
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s.id]
	delete(h.sessions, s.id)
	count := len(h.sessions)
	h.mu.Unlock()

	s.close()
	if !ok {
		return
	}
	h.conns.Release(s.ip)
	log.Printf("📱 Session %s disconnected (%d remaining)", s.id, count)
	metrics.UpdateWSConnections(count)
}

func (h *Hub) readPump(s *session) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ Session %s read error: %v", s.id, err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		metrics.RecordWSMessage("in")

		err = h.handleFrame(s, frame)
		if errors.Is(err, errSessionLeft) {
			return
		}
		if err != nil {
			h.reject(s, err)
		}
	}
}

func (h *Hub) handleFrame(s *session, frame []byte) error {
	if !s.limiter.Allow() {
		return ErrRateLimited
	}
	in, err := s.codec.Decode(frame)
	if err != nil {
		return err
	}
	return h.gateway.Apply(s.id, in)
}

// reject counts the failure and tells the client, except for rate limiting
// where a reply would only add traffic.
func (h *Hub) reject(s *session, err error) {
	reason := rejectReason(err)
	metrics.RecordMessageRejected(reason)
	if reason == "rate_limit" {
		return
	}
	frame, encErr := s.codec.Encode(protocol.EventError, protocol.ErrorPayload{Message: err.Error(), Type: reason})
	if encErr == nil {
		s.enqueue(frame)
	}
}

// Shutdown closes every session with "going away" and waits for their
// handlers to finish disconnecting them from the engine.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	open := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, s := range open {
		s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		s.close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
