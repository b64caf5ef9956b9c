package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pairlink/internal/domain"
)

// ErrNotConnected is returned when emitting on a closed transport.
var ErrNotConnected = errors.New("relay transport not connected")

const memoryBuffer = 1024

// Memory is an in-process transport attached directly to a Hub.
type Memory struct {
	hub  *Hub
	name string
	log  *zap.Logger

	mu        sync.Mutex
	connected bool
	events    chan domain.RelayEvent
	sent      []domain.RelayEvent

	// backlog holds events that did not fit in events, in arrival order.
	// While flushing is set every new event queues behind it.
	backlog  []domain.RelayEvent
	flushing bool
	stop     chan struct{}
	flushed  chan struct{}
}

// NewMemory returns a disconnected transport for hub.
func NewMemory(hub *Hub, name string, log *zap.Logger) *Memory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{
		hub:    hub,
		name:   name,
		log:    log.With(zap.String("transport", "memory"), zap.String("peer", name)),
		events: make(chan domain.RelayEvent, memoryBuffer),
		stop:   make(chan struct{}),
	}
}

// Connect marks the transport connected and reports a connect event.
func (m *Memory) Connect(_ context.Context) error {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	m.connected = true
	m.mu.Unlock()
	m.push(domain.RelayEvent{Name: domain.TransportConnect})
	return nil
}

// Disconnect leaves the hub. Events already queued from this connection
// are discarded.
func (m *Memory) Disconnect() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.connected = false
	m.mu.Unlock()
	m.hub.Leave(m)
	m.drain()
	return nil
}

// Drop simulates an unexpected loss of the relay connection.
func (m *Memory) Drop() {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return
	}
	m.connected = false
	m.mu.Unlock()
	m.hub.Leave(m)
	m.push(domain.RelayEvent{Name: domain.TransportDisconnect})
}

// Emit sends a frame to the hub.
func (m *Memory) Emit(event string, payload any) error {
	m.mu.Lock()
	connected := m.connected
	m.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	ev := domain.RelayEvent{Name: event, Data: data}
	m.mu.Lock()
	m.sent = append(m.sent, ev)
	m.mu.Unlock()
	return m.hub.Handle(m, ev)
}

// Events returns the inbound event stream.
func (m *Memory) Events() <-chan domain.RelayEvent { return m.events }

// Deliver implements Peer.
func (m *Memory) Deliver(ev domain.RelayEvent) error {
	m.mu.Lock()
	connected := m.connected
	m.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	m.push(ev)
	return nil
}

// Connected reports the connection flag.
func (m *Memory) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Sent returns a copy of every frame emitted so far.
func (m *Memory) Sent() []domain.RelayEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RelayEvent(nil), m.sent...)
}

// push never drops and never blocks the sender: overflow is queued and
// flushed in order by a goroutine.
func (m *Memory) push(ev domain.RelayEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.flushing {
		select {
		case m.events <- ev:
			return
		default:
		}
		m.flushing = true
		m.flushed = make(chan struct{})
		go m.flush(m.stop, m.flushed)
		m.log.Debug("event buffer full; queueing", zap.String("event", ev.Name))
	}
	m.backlog = append(m.backlog, ev)
}

func (m *Memory) flush(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		m.mu.Lock()
		select {
		case <-stop:
			// drained; a newer flusher owns the backlog.
			m.mu.Unlock()
			return
		default:
		}
		if len(m.backlog) == 0 {
			m.flushing = false
			m.mu.Unlock()
			return
		}
		ev := m.backlog[0]
		m.backlog = m.backlog[1:]
		m.mu.Unlock()

		select {
		case m.events <- ev:
		case <-stop:
			return
		}
	}
}

// drain discards everything queued so far, including the backlog.
func (m *Memory) drain() {
	m.mu.Lock()
	close(m.stop)
	m.stop = make(chan struct{})
	m.backlog = nil
	m.flushing = false
	flushed := m.flushed
	m.flushed = nil
	m.mu.Unlock()
	if flushed != nil {
		<-flushed
	}
	for {
		select {
		case <-m.events:
		default:
			return
		}
	}
}

// Compile-time assertions.
var (
	_ domain.Transport = (*Memory)(nil)
	_ Peer             = (*Memory)(nil)
)
