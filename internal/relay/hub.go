package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pairlink/internal/domain"
)

var (
	// ErrChannelFull is relayed to a third peer joining a channel.
	ErrChannelFull = errors.New("channel is full")
	// ErrNotMember is relayed to a peer sending on a channel it has not joined.
	ErrNotMember = errors.New("not a member of channel")
	// ErrUnknownEvent is returned for inbound frames the hub does not handle.
	ErrUnknownEvent = errors.New("unknown relay event")
)

// Peer is one connected client as seen by the hub.
type Peer interface {
	Deliver(ev domain.RelayEvent) error
}

type room struct {
	members []Peer
}

func (r *room) has(p Peer) bool {
	for _, m := range r.members {
		if m == p {
			return true
		}
	}
	return false
}

type delivery struct {
	to Peer
	ev domain.RelayEvent
}

// Hub holds channel membership in memory. State is lost on process exit.
type Hub struct {
	mu       sync.Mutex
	rooms    map[domain.ChannelID]*room
	memberOf map[Peer]domain.ChannelID
	log      *zap.Logger
}

// NewHub returns an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[domain.ChannelID]*room),
		memberOf: make(map[Peer]domain.ChannelID),
		log:      log,
	}
}

// Handle dispatches one inbound frame from p.
func (h *Hub) Handle(p Peer, ev domain.RelayEvent) error {
	switch ev.Name {
	case domain.RelayJoinChannel:
		var id domain.ChannelID
		if err := json.Unmarshal(ev.Data, &id); err != nil {
			return fmt.Errorf("join_channel: %w", err)
		}
		if id == "" {
			return fmt.Errorf("join_channel: empty channel id")
		}
		h.Join(p, id)
		return nil
	case domain.RelayMessage:
		var env domain.Envelope
		if err := json.Unmarshal(ev.Data, &env); err != nil {
			return fmt.Errorf("message: %w", err)
		}
		h.Forward(p, env)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Name)
	}
}

// Join adds p to channel id, creating the channel if needed.
func (h *Hub) Join(p Peer, id domain.ChannelID) {
	h.mu.Lock()
	var out []delivery
	if cur, ok := h.memberOf[p]; ok {
		if cur == id {
			// Rejoin on the same connection: report presence again.
			out = h.presence(h.rooms[id], id)
			h.mu.Unlock()
			h.flush(out)
			return
		}
		out = h.leave(p)
	}

	r := h.rooms[id]
	switch {
	case r == nil:
		r = &room{members: []Peer{p}}
		h.rooms[id] = r
		h.memberOf[p] = id
		out = append(out,
			delivery{p, event(domain.RelayChannelCreated, id, id)},
			delivery{p, event(domain.RelayClientsWaitingToJoin, id, 1)},
		)
		h.log.Debug("channel created", zap.String("channel", id.String()))
	case len(r.members) >= 2:
		out = append(out, delivery{p, event(domain.RelayMessage, id, domain.Envelope{ID: id, Error: ErrChannelFull.Error()})})
		h.log.Info("join refused", zap.String("channel", id.String()), zap.Error(ErrChannelFull))
	default:
		r.members = append(r.members, p)
		h.memberOf[p] = id
		out = append(out, h.presence(r, id)...)
		h.log.Debug("clients connected", zap.String("channel", id.String()))
	}
	h.mu.Unlock()
	h.flush(out)
}

// Forward relays env from p to the other member of its channel.
func (h *Hub) Forward(p Peer, env domain.Envelope) {
	h.mu.Lock()
	var out []delivery
	r := h.rooms[env.ID]
	if r == nil || !r.has(p) {
		out = append(out, delivery{p, event(domain.RelayMessage, env.ID, domain.Envelope{ID: env.ID, Error: ErrNotMember.Error()})})
	} else {
		fwd := domain.Envelope{ID: env.ID, Message: env.Message}
		for _, m := range r.members {
			if m != p {
				out = append(out, delivery{m, event(domain.RelayMessage, env.ID, fwd)})
			}
		}
	}
	h.mu.Unlock()
	h.flush(out)
}

// Leave removes p from its channel and tells the remaining member.
func (h *Hub) Leave(p Peer) {
	h.mu.Lock()
	out := h.leave(p)
	h.mu.Unlock()
	h.flush(out)
}

// Stats returns the number of open channels and joined peers.
func (h *Hub) Stats() (channels, peers int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms), len(h.memberOf)
}

func (h *Hub) leave(p Peer) []delivery {
	id, ok := h.memberOf[p]
	if !ok {
		return nil
	}
	delete(h.memberOf, p)
	r := h.rooms[id]
	if r == nil {
		return nil
	}
	kept := r.members[:0]
	for _, m := range r.members {
		if m != p {
			kept = append(kept, m)
		}
	}
	r.members = kept
	if len(kept) == 0 {
		delete(h.rooms, id)
		return nil
	}
	var out []delivery
	for _, m := range kept {
		out = append(out, delivery{m, event(domain.RelayClientsDisconnected, id, nil)})
	}
	return out
}

func (h *Hub) presence(r *room, id domain.ChannelID) []delivery {
	if r == nil {
		return nil
	}
	var out []delivery
	if len(r.members) < 2 {
		for _, m := range r.members {
			out = append(out, delivery{m, event(domain.RelayClientsWaitingToJoin, id, len(r.members))})
		}
		return out
	}
	for _, m := range r.members {
		out = append(out, delivery{m, event(domain.RelayClientsConnected, id, id)})
	}
	return out
}

func (h *Hub) flush(out []delivery) {
	for _, d := range out {
		if err := d.to.Deliver(d.ev); err != nil {
			h.log.Debug("deliver failed", zap.String("event", d.ev.Name), zap.Error(err))
		}
	}
}

func event(base string, id domain.ChannelID, payload any) domain.RelayEvent {
	ev := domain.RelayEvent{Name: domain.ChannelEvent(base, id)}
	if payload != nil {
		// Payloads are hub-built values; marshalling cannot fail.
		ev.Data, _ = json.Marshal(payload)
	}
	return ev
}
