package livepush

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Hub tracks live WebSocket sessions per user and writes notifications to
// them. It implements notifications.SessionDirectory and
// notifications.LiveSender. All methods are safe for concurrent use.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
	byUser   map[string]map[string]struct{}
	closed   bool
	wg       sync.WaitGroup
}

var (
	_ notifications.SessionDirectory = (*Hub)(nil)
	_ notifications.LiveSender       = (*Hub)(nil)
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// NewHub creates a hub. Zero config values fall back to DefaultConfig.
func NewHub(cfg Config, opts ...Option) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:      cfg,
		log:      slog.Default(),
		sessions: make(map[string]*session),
		byUser:   make(map[string]map[string]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type session struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

// Sessions returns the ids of the live sessions userID has open.
func (h *Hub) Sessions(userID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.byUser[userID]))
	for id := range h.byUser[userID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Count returns the number of open sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// SendInAppLive queues payload for one session. An unknown session returns
// notifications.ErrSessionNotConnected. A session whose buffer is full is
// dropped, and the send reports it as not connected.
func (h *Hub) SendInAppLive(ctx context.Context, sessionID string, payload notifications.Payload) error {
	msg, err := encodePayload(payload)
	if err != nil {
		return errors.Join(notifications.ErrPermanentDelivery, err)
	}

	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return notifications.ErrSessionNotConnected
	}

	select {
	case <-s.done:
		return notifications.ErrSessionNotConnected
	case <-ctx.Done():
		return ctx.Err()
	case s.send <- msg:
		return nil
	default:
		h.log.LogAttrs(ctx, slog.LevelWarn, "dropping slow live session",
			logger.UserID(s.userID),
			slog.String("session_id", s.id),
		)
		h.remove(s)
		return errors.Join(notifications.ErrSessionNotConnected, ErrSlowConsumer)
	}
}

// ServeWS upgrades the request and registers a session for userID. It
// returns once the connection is handed to the session goroutines. Every
// failure has already been answered on w when it returns.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	if userID == "" {
		http.Error(w, ErrMissingUser.Error(), http.StatusUnauthorized)
		return ErrMissingUser
	}
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return ErrHubClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return err
	}

	s := &session{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, h.cfg.SendBuffer),
		done:   make(chan struct{}),
	}
	if !h.add(s) {
		_ = conn.Close()
		return ErrHubClosed
	}

	hello, _ := json.Marshal(Envelope{Type: TypeConnected, Data: connectedData{
		SessionID:    s.id,
		PingInterval: h.cfg.PingInterval.Milliseconds(),
	}})
	s.send <- hello

	h.log.LogAttrs(r.Context(), slog.LevelDebug, "live session opened",
		logger.UserID(userID),
		slog.String("session_id", s.id),
	)

	go h.writeLoop(s)
	go h.readLoop(s)
	return nil
}

// Close disconnects every session and waits for their goroutines, or for
// ctx to expire.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for _, s := range h.sessions {
		s.close()
	}
	h.mu.Unlock()

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

func (h *Hub) add(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s.id] = s
	if h.byUser[s.userID] == nil {
		h.byUser[s.userID] = make(map[string]struct{})
	}
	h.byUser[s.userID][s.id] = struct{}{}
	// Added under the lock Close takes before waiting.
	h.wg.Add(2)
	return true
}

func (h *Hub) remove(s *session) {
	s.close()
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.id]; !ok {
		return
	}
	delete(h.sessions, s.id)
	if ids := h.byUser[s.userID]; ids != nil {
		delete(ids, s.id)
		if len(ids) == 0 {
			delete(h.byUser, s.userID)
		}
	}
}

// readLoop owns reads. Any frame from the client extends the deadline;
// application pings are answered with a pong.
func (h *Hub) readLoop(s *session) {
	defer h.wg.Done()
	defer h.remove(s)

	s.conn.SetReadLimit(h.cfg.MaxMessageSize)
	extend := func() { _ = s.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout)) }
	extend()
	s.conn.SetPingHandler(func(data string) error {
		extend()
		return s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(h.cfg.WriteTimeout))
	})
	s.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	pong, _ := json.Marshal(Envelope{Type: TypePong})
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.LogAttrs(context.Background(), slog.LevelDebug, "live session read failed",
					logger.UserID(s.userID),
					slog.String("session_id", s.id),
					logger.Error(err),
				)
			}
			return
		}
		extend()

		var in Envelope
		if json.Unmarshal(raw, &in) != nil || in.Type != TypePing {
			continue
		}
		select {
		case s.send <- pong:
		case <-s.done:
			return
		default:
		}
	}
}

// writeLoop owns writes and closes the connection when the session ends.
func (h *Hub) writeLoop(s *session) {
	defer h.wg.Done()
	defer func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(h.cfg.WriteTimeout))
		_ = s.conn.Close()
		h.remove(s)
	}()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
