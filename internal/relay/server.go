package relay

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairlink/internal/domain"
)

// ServerConfig tunes connection keepalive.
type ServerConfig struct {
	PingInterval time.Duration
	ReadLimit    int64
}

// DefaultServerConfig returns the relay defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{PingInterval: 30 * time.Second, ReadLimit: 1 << 20}
}

// Server serves a Hub over WebSocket.
type Server struct {
	hub      *Hub
	cfg      ServerConfig
	log      *zap.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu     sync.Mutex
	peers  map[*wsPeer]struct{}
	closed bool
}

// NewServer returns an http.Handler exposing /ws and /healthz.
func NewServer(hub *Hub, cfg ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		hub: hub,
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Peers are not browsers; the relay holds no ambient credentials.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		mux:   http.NewServeMux(),
		peers: make(map[*wsPeer]struct{}),
	}
	s.mux.HandleFunc("/ws", s.serveWS)
	s.mux.HandleFunc("/healthz", s.serveHealth)
	return s
}

// ServeHTTP logs each request and routes it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.log.Info("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote", r.RemoteAddr),
		zap.Int("status", rec.status),
		zap.Int("bytes", rec.bytes),
		zap.Duration("duration", time.Since(start)))
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	channels, peers := s.hub.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status   string `json:"status"`
		Channels int    `json:"channels"`
		Peers    int    `json:"peers"`
	}{"ok", channels, peers})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}
	p := &wsPeer{conn: conn}
	log := s.log.With(zap.String("remote", r.RemoteAddr))
	if !s.track(p) {
		p.close(websocket.CloseGoingAway)
		return
	}
	done := make(chan struct{})
	defer func() {
		close(done)
		s.untrack(p)
		s.hub.Leave(p)
		_ = conn.Close()
	}()

	if s.cfg.ReadLimit > 0 {
		conn.SetReadLimit(s.cfg.ReadLimit)
	}
	if s.cfg.PingInterval > 0 {
		deadline := func() { _ = conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval)) }
		deadline()
		conn.SetPongHandler(func(string) error { deadline(); return nil })
		go p.keepalive(s.cfg.PingInterval, done)
	}

	for {
		var ev domain.RelayEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}
		if err := s.hub.Handle(p, ev); err != nil {
			log.Warn("bad frame", zap.String("event", ev.Name), zap.Error(err))
		}
	}
}

func (s *Server) track(p *wsPeer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.peers[p] = struct{}{}
	return true
}

func (s *Server) untrack(p *wsPeer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}

// Close sends a going-away close to every connected peer and refuses new
// ones. http.Server.Shutdown does not reach upgraded connections, so relays
// register this with RegisterOnShutdown.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	peers := make([]*wsPeer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.close(websocket.CloseGoingAway)
	}
	s.log.Info("relay closed", zap.Int("peers", len(peers)))
}

// wsPeer is the server side of one client connection.
type wsPeer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *wsPeer) Deliver(ev domain.RelayEvent) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(ev)
}

// close says goodbye and drops the connection; the read loop then exits.
func (p *wsPeer) close(code int) {
	p.writeMu.Lock()
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), time.Now().Add(writeWait))
	p.writeMu.Unlock()
	_ = p.conn.Close()
}

func (p *wsPeer) keepalive(every time.Duration, done <-chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			p.writeMu.Lock()
			err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			p.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
