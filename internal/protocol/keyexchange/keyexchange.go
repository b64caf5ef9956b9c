package keyexchange

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pairlink/internal/crypto"
	"pairlink/internal/domain"
	"pairlink/internal/util/memzero"
)

var (
	// ErrNotReady is returned by Encrypt before the keys are exchanged.
	ErrNotReady = errors.New("key exchange not complete")
	// ErrDecryption is returned when a cipher text cannot be opened.
	ErrDecryption = errors.New("decryption failed")
	// ErrBadPublicKey reports malformed peer key material.
	ErrBadPublicKey = errors.New("bad peer public key")
	// ErrPeerKeyMismatch reports a peer key other than the pinned one.
	ErrPeerKeyMismatch = errors.New("peer public key does not match pinned key")
	// ErrUnexpectedStep reports a handshake message out of sequence.
	ErrUnexpectedStep = errors.New("unexpected handshake step")
)

// Step is the last handshake message seen or sent in the current episode.
type Step int

const (
	StepNone Step = iota
	StepSyn
	StepSynAck
	StepAck
)

func (s Step) String() string {
	switch s {
	case StepSyn:
		return "syn"
	case StepSynAck:
		return "synack"
	case StepAck:
		return "ack"
	default:
		return "none"
	}
}

// KeyExchange owns the handshake state for one channel.
type KeyExchange struct {
	carrier domain.Carrier
	log     *zap.Logger

	myPriv domain.X25519Private
	myPub  domain.X25519Public

	pinned     domain.X25519Public
	otherPub   domain.X25519Public
	hasOther   bool
	key        []byte
	exchanged  bool
	notified   bool
	step       Step
	episode    uint64
	originator bool

	onExchanged func()
}

// Option configures a KeyExchange.
type Option func(*KeyExchange)

// WithKeyPair reuses an existing key pair instead of generating one.
func WithKeyPair(priv domain.X25519Private, pub domain.X25519Public) Option {
	return func(k *KeyExchange) {
		k.myPriv = priv
		k.myPub = pub
	}
}

// WithPeerPublicKey pins the key the peer must present.
func WithPeerPublicKey(pub domain.X25519Public) Option {
	return func(k *KeyExchange) { k.pinned = pub }
}

// WithOnExchanged registers the keys_exchanged notification.
func WithOnExchanged(fn func()) Option {
	return func(k *KeyExchange) { k.onExchanged = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(k *KeyExchange) {
		if l != nil {
			k.log = l
		}
	}
}

// New builds a KeyExchange that sends handshake messages through carrier.
func New(carrier domain.Carrier, opts ...Option) (*KeyExchange, error) {
	k := &KeyExchange{carrier: carrier, log: zap.NewNop()}
	for _, opt := range opts {
		opt(k)
	}
	if k.myPub.IsZero() {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return nil, fmt.Errorf("generate key pair: %w", err)
		}
		k.myPriv, k.myPub = priv, pub
	}
	return k, nil
}

// PublicKey returns our public key.
func (k *KeyExchange) PublicKey() domain.X25519Public { return k.myPub }

// PrivateKey returns our private key for persistence.
func (k *KeyExchange) PrivateKey() domain.X25519Private { return k.myPriv }

// PeerPublicKey returns the peer key of the current episode, if known.
func (k *KeyExchange) PeerPublicKey() (domain.X25519Public, bool) { return k.otherPub, k.hasOther }

// KeysExchanged reports whether Encrypt and Decrypt are usable.
func (k *KeyExchange) KeysExchanged() bool { return k.exchanged }

// Step returns the handshake step of the current episode.
func (k *KeyExchange) Step() Step { return k.step }

// Episode returns the current episode number; it grows with every new episode.
func (k *KeyExchange) Episode() uint64 { return k.episode }

// Phase maps the step onto the session's handshake phase.
func (k *KeyExchange) Phase() domain.Phase {
	switch {
	case k.exchanged:
		return domain.PhaseExchanged
	case k.step == StepNone:
		return domain.PhasePending
	default:
		return domain.PhaseInProgress
	}
}

// SetOriginator records which side of the channel we are. Only the
// originator answers key_handshake_start.
func (k *KeyExchange) SetOriginator(v bool) { k.originator = v }

// Start begins a new episode and sends our SYN.
func (k *KeyExchange) Start(isOriginator bool) error {
	k.originator = isOriginator
	k.newEpisode()
	k.log.Debug("handshake start",
		zap.Bool("originator", isOriginator),
		zap.Uint64("episode", k.episode))
	if err := k.send(domain.Message{Type: domain.TypeHandshakeSyn, PubKey: k.myPub.Hex()}); err != nil {
		return err
	}
	k.step = StepSyn
	return nil
}

// Reset drops the derived key without sending anything.
func (k *KeyExchange) Reset() { k.newEpisode() }

// HandleMessage advances the handshake with an inbound handshake message.
func (k *KeyExchange) HandleMessage(msg domain.Message) error {
	switch msg.Type {
	case domain.TypeHandshakeStart:
		if !k.originator {
			return nil
		}
		return k.Start(true)

	case domain.TypeHandshakeSyn:
		peer, err := k.acceptPeerKey(msg.PubKey)
		if err != nil {
			return err
		}
		k.newEpisode()
		if err := k.setPeer(peer); err != nil {
			return err
		}
		if err := k.send(domain.Message{Type: domain.TypeHandshakeSynAck, PubKey: k.myPub.Hex()}); err != nil {
			return err
		}
		k.step = StepSynAck
		return nil

	case domain.TypeHandshakeSynAck:
		if k.step != StepSyn {
			return fmt.Errorf("%w: %s at %s", ErrUnexpectedStep, msg.Type, k.step)
		}
		peer, err := k.acceptPeerKey(msg.PubKey)
		if err != nil {
			return err
		}
		if err := k.setPeer(peer); err != nil {
			return err
		}
		if err := k.send(domain.Message{Type: domain.TypeHandshakeAck}); err != nil {
			return err
		}
		k.complete()
		return nil

	case domain.TypeHandshakeAck:
		if k.step != StepSynAck || k.key == nil {
			return fmt.Errorf("%w: %s at %s", ErrUnexpectedStep, msg.Type, k.step)
		}
		k.complete()
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnexpectedStep, msg.Type)
	}
}

// Encrypt seals plaintext under the channel key and returns base64 text.
func (k *KeyExchange) Encrypt(plaintext []byte) (string, error) {
	if !k.exchanged {
		return "", ErrNotReady
	}
	box, err := crypto.Seal(k.key, plaintext, nil)
	if err != nil {
		return "", err
	}
	return crypto.B64(box), nil
}

// Decrypt opens base64 text produced by the peer's Encrypt.
func (k *KeyExchange) Decrypt(cipher string) ([]byte, error) {
	if !k.exchanged {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, ErrNotReady)
	}
	box, err := crypto.FromB64(cipher)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	pt, err := crypto.Open(k.key, box, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return pt, nil
}

func (k *KeyExchange) send(msg domain.Message) error {
	if k.carrier == nil {
		return errors.New("key exchange has no carrier")
	}
	if err := k.carrier.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

func (k *KeyExchange) acceptPeerKey(s string) (domain.X25519Public, error) {
	peer, err := domain.ParseX25519Public(s)
	if err != nil {
		return peer, fmt.Errorf("%w: %w", ErrBadPublicKey, err)
	}
	if !k.pinned.IsZero() && peer != k.pinned {
		return peer, ErrPeerKeyMismatch
	}
	return peer, nil
}

func (k *KeyExchange) setPeer(peer domain.X25519Public) error {
	shared, err := crypto.DH(k.myPriv, peer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadPublicKey, err)
	}
	defer memzero.Zero32(&shared)
	key, err := crypto.DeriveKey(shared, k.myPub, peer)
	if err != nil {
		return err
	}
	k.otherPub, k.hasOther = peer, true
	k.key = key
	return nil
}

func (k *KeyExchange) complete() {
	k.exchanged = true
	k.step = StepAck
	k.log.Debug("keys exchanged",
		zap.Uint64("episode", k.episode),
		zap.String("peer", string(crypto.Fingerprint(k.otherPub.Slice()))))
	if !k.notified {
		k.notified = true
		if k.onExchanged != nil {
			k.onExchanged()
		}
	}
}

func (k *KeyExchange) newEpisode() {
	memzero.Zero(k.key)
	k.key = nil
	k.otherPub, k.hasOther = domain.X25519Public{}, false
	k.exchanged = false
	k.notified = false
	k.step = StepNone
	k.episode++
}

// Compile-time assertion that KeyExchange implements domain.KeyExchanger.
var _ domain.KeyExchanger = (*KeyExchange)(nil)
