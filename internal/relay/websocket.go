package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairlink/internal/domain"
)

const (
	clientBuffer = 256
	writeWait    = 10 * time.Second
)

// DefaultKeepalive is the client ping interval. The relay is declared dead
// after two intervals without any frame or pong.
const DefaultKeepalive = 30 * time.Second

// WebSocket is the client transport to a relay Server.
type WebSocket struct {
	url       string
	dialer    *websocket.Dialer
	header    http.Header
	log       *zap.Logger
	keepalive time.Duration

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	gen     uint64
	// done is closed when the current connection is superseded; its read
	// loop stops delivering.
	done   chan struct{}
	events chan domain.RelayEvent
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) WebSocketOption {
	return func(w *WebSocket) { w.dialer = d }
}

// WithHeader adds request headers to the upgrade request.
func WithHeader(h http.Header) WebSocketOption {
	return func(w *WebSocket) { w.header = h }
}

// WithKeepalive sets the ping interval. Zero disables pings and read
// deadlines.
func WithKeepalive(d time.Duration) WebSocketOption {
	return func(w *WebSocket) { w.keepalive = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) WebSocketOption {
	return func(w *WebSocket) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWebSocket returns a disconnected transport for the relay at url
// (ws:// or wss://).
func NewWebSocket(url string, opts ...WebSocketOption) *WebSocket {
	w := &WebSocket{
		url:       url,
		dialer:    websocket.DefaultDialer,
		log:       zap.NewNop(),
		keepalive: DefaultKeepalive,
		events:    make(chan domain.RelayEvent, clientBuffer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(zap.String("transport", "websocket"), zap.String("relay", url))
	return w
}

// Connect dials the relay. It is a no-op when already connected. The connect
// event is delivered by the new connection's read loop, ahead of its frames.
func (w *WebSocket) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		return nil
	}
	conn, resp, err := w.dialer.DialContext(ctx, w.url, w.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("relay dial %s: %s: %w", w.url, resp.Status, err)
		}
		return fmt.Errorf("relay dial %s: %w", w.url, err)
	}
	if w.done != nil {
		close(w.done)
	}
	w.gen++
	w.conn = conn
	w.done = make(chan struct{})
	go w.readLoop(conn, w.gen, w.done)
	w.log.Debug("connected", zap.Uint64("gen", w.gen))
	return nil
}

// Disconnect closes the connection. The read loop of the closed connection
// is fenced and reports nothing.
func (w *WebSocket) Disconnect() error {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.gen++
	if w.done != nil {
		close(w.done)
		w.done = nil
	}
	w.mu.Unlock()
	if conn == nil {
		return nil
	}
	w.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	w.writeMu.Unlock()
	return conn.Close()
}

// Emit writes one frame.
func (w *WebSocket) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(domain.RelayEvent{Name: event, Data: data}); err != nil {
		return fmt.Errorf("relay write %s: %w", event, err)
	}
	return nil
}

// Events returns the inbound event stream.
func (w *WebSocket) Events() <-chan domain.RelayEvent { return w.events }

func (w *WebSocket) readLoop(conn *websocket.Conn, gen uint64, done <-chan struct{}) {
	if !w.deliver(domain.RelayEvent{Name: domain.TransportConnect}, done) {
		return
	}
	if w.keepalive > 0 {
		wait := 2 * w.keepalive
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wait))
		})
		stop := make(chan struct{})
		defer close(stop)
		go w.ping(conn, stop)
	}

	for {
		var ev domain.RelayEvent
		err := conn.ReadJSON(&ev)

		w.mu.Lock()
		if w.gen != gen {
			w.mu.Unlock()
			return
		}
		if err != nil {
			// done stays open until Disconnect or the next Connect so the
			// loss report can still be fenced.
			w.conn = nil
			w.gen++
			w.mu.Unlock()
			_ = conn.Close()
			name := domain.TransportDisconnect
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				name = domain.TransportError
			}
			w.log.Info("relay connection lost", zap.String("event", name), zap.Error(err))
			w.deliver(domain.RelayEvent{Name: name}, done)
			return
		}
		w.mu.Unlock()

		// Blocking here stops reading, so a slow consumer pushes back on
		// the relay through TCP flow control instead of losing events.
		if !w.deliver(ev, done) {
			return
		}
		if w.keepalive > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(2 * w.keepalive))
		}
	}
}

// deliver hands ev to the consumer unless the connection is superseded
// first.
func (w *WebSocket) deliver(ev domain.RelayEvent, done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	default:
	}
	select {
	case w.events <- ev:
		return true
	case <-done:
		return false
	}
}

func (w *WebSocket) ping(conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(w.keepalive)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			w.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Compile-time assertion that WebSocket implements domain.Transport.
var _ domain.Transport = (*WebSocket)(nil)
