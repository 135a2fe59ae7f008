package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"
)

// HandlerFunc processes a client message. It receives the connection and the
// raw message. Handlers run on their own goroutine per message.
type HandlerFunc func(c *Conn, msg *ClientMessage)

// Server manages WebSocket connections and message dispatch.
type Server struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}

	handlers  map[string]HandlerFunc
	connectFn func(c *Conn)

	limit rate.Limit
	burst int
}

// NewServer creates a server whose connections each get a token bucket of
// the given rate and burst for rate-limited events.
func NewServer(limit rate.Limit, burst int) *Server {
	if burst < 1 {
		burst = 1
	}
	return &Server{
		conns:    make(map[*Conn]struct{}),
		handlers: make(map[string]HandlerFunc),
		limit:    limit,
		burst:    burst,
	}
}

// Handle registers a handler for a named event.
func (s *Server) Handle(event string, fn HandlerFunc) {
	s.handlers[event] = fn
}

// HandleConnect registers a callback that fires when a new connection is
// established, before the read pump starts.
func (s *Server) HandleConnect(fn func(c *Conn)) {
	s.connectFn = fn
}

// ServeHTTP upgrades the HTTP request to a WebSocket connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The dev server proxies from another origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("ws accept", "err", err)
		return
	}

	c := newConn(ws, s)
	s.add(c)

	slog.Debug("ws connected", "conn", c.id, "remote", r.RemoteAddr)

	if s.connectFn != nil {
		s.connectFn(c)
	}

	// Block on the read pump; this goroutine is owned by net/http.
	c.readPump(r.Context())
}

// Broadcast marshals the event once and sends it to every connection.
func Broadcast[T any](s *Server, event string, data T) {
	raw, err := json.Marshal(ServerMessage[T]{Event: event, Data: data})
	if err != nil {
		slog.Error("ws marshal broadcast", "event", event, "err", err)
		return
	}

	for _, c := range s.snapshot() {
		c.writeRaw(raw)
	}
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// CloseAll closes every connection. Used on shutdown.
func (s *Server) CloseAll() {
	for _, c := range s.snapshot() {
		c.Close()
	}
}

// snapshot copies the connection set so writes happen outside the lock.
func (s *Server) snapshot() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		all = append(all, c)
	}
	return all
}

func (s *Server) add(c *Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) remove(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	slog.Debug("ws disconnected", "conn", c.id, "remaining", s.ConnectionCount())
}

func (s *Server) dispatch(c *Conn, msg *ClientMessage) {
	// Slow handlers (tool runs on large documents) must not block the read pump.
	go s.Dispatch(c, msg)
}

// Dispatch looks up and invokes the handler for the given message event.
func (s *Server) Dispatch(c *Conn, msg *ClientMessage) {
	h, ok := s.handlers[msg.Event]
	if !ok {
		slog.Warn("ws unknown event", "event", msg.Event)
		if msg.ID != nil {
			SendAck(c, *msg.ID, ErrorResponse{Msg: "unknown event: " + msg.Event, Code: "unknown_event"})
		}
		return
	}
	h(c, msg)
}
