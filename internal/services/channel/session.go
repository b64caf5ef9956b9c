package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pairlink/internal/domain"
	"pairlink/internal/protocol/codec"
	"pairlink/internal/protocol/keyexchange"
)

// ErrUnencrypted rejects a plaintext application message received after the
// keys were exchanged.
var ErrUnencrypted = errors.New("unencrypted application message")

// Options configures a Session. The zero value is usable.
type Options struct {
	// Codec encodes application messages before sealing. Defaults to JSON.
	Codec domain.Codec
	// Observer receives session events. It is called with the session lock
	// held and must not call back into the session.
	Observer domain.Observer
	Logger   *zap.Logger

	// KeyExchange options, e.g. a persisted key pair or a pinned peer key.
	KeyExchange []keyexchange.Option

	// DirectMedia raises clients_ready again when a reconnect finds the keys
	// still exchanged.
	DirectMedia bool
	// HandshakeTimeout bounds the connected-but-unexchanged window. Zero
	// disables it.
	HandshakeTimeout time.Duration

	// NewChannelID generates ids for CreateChannel. Defaults to a UUIDv4.
	NewChannelID func() domain.ChannelID
}

// Session is one peer's view of a channel.
type Session struct {
	tr    domain.Transport
	kx    *keyexchange.KeyExchange
	codec domain.Codec
	obs   domain.Observer
	log   *zap.Logger
	newID func() domain.ChannelID

	directMedia bool
	hsTimeout   time.Duration

	mu        sync.Mutex
	id        domain.ChannelID
	role      domain.Role
	state     domain.State
	conn      domain.ConnectionState
	reconnect bool
	manual    bool
	disrupt   domain.DisruptionHandler
	timer     *time.Timer
	timerGen  uint64
}

// carrier is the key exchange's path onto the wire. It runs inside a
// transition, so it does not take the session lock.
type carrier struct{ s *Session }

func (c carrier) SendMessage(msg domain.Message) error { return c.s.send(msg) }

// New builds an idle session on tr.
func New(tr domain.Transport, opts Options) (*Session, error) {
	if tr == nil {
		return nil, errors.New("channel: nil transport")
	}
	s := &Session{
		tr:          tr,
		codec:       opts.Codec,
		obs:         opts.Observer,
		log:         opts.Logger,
		newID:       opts.NewChannelID,
		directMedia: opts.DirectMedia,
		hsTimeout:   opts.HandshakeTimeout,
	}
	if s.codec == nil {
		s.codec = codec.JSON()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.newID == nil {
		s.newID = func() domain.ChannelID { return domain.ChannelID(uuid.NewString()) }
	}
	kxOpts := append([]keyexchange.Option{
		keyexchange.WithLogger(s.log),
		keyexchange.WithOnExchanged(s.onKeysExchanged),
	}, opts.KeyExchange...)
	kx, err := keyexchange.New(carrier{s}, kxOpts...)
	if err != nil {
		return nil, fmt.Errorf("channel: %w", err)
	}
	s.kx = kx
	return s, nil
}

// SetDisruptionHandler registers who is told about unexpected transport loss.
func (s *Session) SetDisruptionHandler(h domain.DisruptionHandler) {
	s.mu.Lock()
	s.disrupt = h
	s.mu.Unlock()
}

// CreateChannel binds a fresh channel as Originator and joins it.
func (s *Session) CreateChannel(ctx context.Context) (domain.ChannelInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateIdle || s.role != domain.RoleUnset || s.id != "" {
		return domain.ChannelInfo{}, domain.ErrChannelBound
	}
	id := s.newID()
	if err := s.bind(ctx, id, domain.RoleOriginator); err != nil {
		return domain.ChannelInfo{}, err
	}
	return domain.ChannelInfo{ChannelID: id, PubKey: s.kx.PublicKey()}, nil
}

// ConnectToChannel binds id as Responder and joins it.
func (s *Session) ConnectToChannel(ctx context.Context, id domain.ChannelID) error {
	if id == "" {
		return fmt.Errorf("connect to channel: %w", domain.ErrNoChannel)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateIdle || s.id != "" {
		return domain.ErrChannelBound
	}
	return s.bind(ctx, id, domain.RoleResponder)
}

// RestoreChannel rebinds a channel this peer held before a restart. The
// shared key is not persisted, so the next clients_connected is treated as a
// resumption that renegotiates it.
func (s *Session) RestoreChannel(ctx context.Context, id domain.ChannelID, role domain.Role) error {
	if id == "" {
		return fmt.Errorf("restore channel: %w", domain.ErrNoChannel)
	}
	if role == domain.RoleUnset {
		return errors.New("restore channel: role unset")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateIdle || s.id != "" {
		return domain.ErrChannelBound
	}
	s.reconnect = true
	return s.bind(ctx, id, role)
}

func (s *Session) bind(ctx context.Context, id domain.ChannelID, role domain.Role) error {
	s.id, s.role = id, role
	s.kx.SetOriginator(role == domain.RoleOriginator)
	s.state = domain.StateJoining
	if err := s.join(ctx); err != nil {
		s.id, s.role = "", domain.RoleUnset
		s.state = domain.StateIdle
		return err
	}
	s.log.Info("joining channel",
		zap.String("channel", id.String()),
		zap.Stringer("role", role))
	return nil
}

func (s *Session) join(ctx context.Context) error {
	if err := s.tr.Connect(ctx); err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}
	if err := s.tr.Emit(domain.RelayJoinChannel, s.id); err != nil {
		return fmt.Errorf("join channel: %w", err)
	}
	return nil
}

// SendMessage sends msg to the peer. Application messages are encoded and
// sealed; only handshake messages may precede the key exchange.
func (s *Session) SendMessage(msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(msg)
}

func (s *Session) send(msg domain.Message) error {
	if s.id == "" {
		return domain.ErrNoChannel
	}
	if !s.kx.KeysExchanged() {
		if !msg.IsHandshake() {
			return domain.ErrKeysNotExchanged
		}
		raw, err := codec.JSON().Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode %s: %w", msg.Type, err)
		}
		return s.emit(raw)
	}
	plain, err := s.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	sealed, err := s.kx.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("seal %s: %w", msg.Type, err)
	}
	raw, err := codec.JSON().Marshal(sealed)
	if err != nil {
		return err
	}
	return s.emit(raw)
}

func (s *Session) emit(payload []byte) error {
	env := domain.Envelope{ID: s.id, Message: payload}
	if err := s.tr.Emit(domain.RelayMessage, env); err != nil {
		return fmt.Errorf("emit message: %w", err)
	}
	return nil
}

// Pause disconnects on purpose. A pause notice is sent first if the channel
// is secure.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual = true
	if s.kx.KeysExchanged() {
		if err := s.send(domain.Message{Type: domain.TypePause}); err != nil {
			s.log.Warn("pause notice not sent", zap.Error(err))
		}
	}
	s.stopTimer()
	s.conn.ClientsConnected = false
	s.state = domain.StatePaused
	if err := s.tr.Disconnect(); err != nil {
		return fmt.Errorf("disconnect relay: %w", err)
	}
	return nil
}

// Resume reconnects a paused session and rejoins its channel.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StatePaused {
		return domain.ErrNotPaused
	}
	s.manual = false
	if s.id == "" {
		s.state = domain.StateIdle
		return nil
	}
	if s.kx.KeysExchanged() {
		s.reconnect = true
	}
	s.state = domain.StateJoining
	return s.join(ctx)
}

// Rejoin forces a clean reconnect of the bound channel. It does nothing
// while the session is paused or unbound.
func (s *Session) Rejoin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manual || s.id == "" {
		return nil
	}
	s.reconnect = true
	if err := s.tr.Disconnect(); err != nil {
		s.log.Debug("disconnect before rejoin", zap.Error(err))
	}
	s.state = domain.StateJoining
	return s.join(ctx)
}

// Run consumes transport events until ctx is done or the event stream closes.
func (s *Session) Run(ctx context.Context) error {
	events := s.tr.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.HandleEvent(ev); err != nil {
				s.log.Warn("relay event rejected", zap.String("event", ev.Name), zap.Error(err))
				s.reportError(err)
			}
		}
	}
}

func (s *Session) reportError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify(domain.Event{Kind: domain.EventError, ChannelID: s.id, Err: err})
}

// Record returns what a peer needs to restore this channel after a restart.
func (s *Session) Record() domain.ChannelRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := domain.ChannelRecord{
		ChannelID:  s.id,
		Role:       s.role.String(),
		PrivateKey: s.kx.PrivateKey(),
		PublicKey:  s.kx.PublicKey(),
		CreatedUTC: time.Now().UTC().Unix(),
	}
	if peer, ok := s.kx.PeerPublicKey(); ok {
		rec.PeerPublicKey = peer
	}
	return rec
}

// State returns the lifecycle state.
func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Phase returns handshake progress.
func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kx.Phase()
}

// ChannelID returns the bound channel id, empty before binding.
func (s *Session) ChannelID() domain.ChannelID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Role returns Originator or Responder, RoleUnset before binding.
func (s *Session) Role() domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// ConnectionState reports whether the peer is present and whether the
// channel is secure.
func (s *Session) ConnectionState() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// KeysExchanged reports whether application messages can be sent.
func (s *Session) KeysExchanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kx.KeysExchanged()
}

// PublicKey returns this peer's channel public key.
func (s *Session) PublicKey() domain.X25519Public { return s.kx.PublicKey() }

func (s *Session) notify(ev domain.Event) {
	if s.obs != nil {
		s.obs.OnEvent(ev)
	}
}

// onKeysExchanged runs inside the key exchange, under the session lock.
func (s *Session) onKeysExchanged() {
	s.stopTimer()
	s.conn.ClientsReady = true
	s.log.Info("channel ready",
		zap.String("channel", s.id.String()),
		zap.Uint64("episode", s.kx.Episode()))
	s.notify(domain.Event{
		Kind:         domain.EventClientsReady,
		ChannelID:    s.id,
		IsOriginator: s.role == domain.RoleOriginator,
	})
}

func (s *Session) armTimer() {
	s.stopTimer()
	if s.hsTimeout <= 0 || s.kx.KeysExchanged() {
		return
	}
	gen := s.timerGen
	s.timer = time.AfterFunc(s.hsTimeout, func() { s.handshakeExpired(gen) })
}

func (s *Session) stopTimer() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) handshakeExpired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.timerGen || s.kx.KeysExchanged() {
		return
	}
	s.timer = nil
	s.log.Warn("handshake timed out",
		zap.String("channel", s.id.String()),
		zap.Duration("after", s.hsTimeout))
	s.notify(domain.Event{Kind: domain.EventError, ChannelID: s.id, Err: domain.ErrHandshakeTimeout})
}

var _ domain.Rejoiner = (*Session)(nil)
