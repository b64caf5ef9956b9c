package interfaces

import (
	"context"

	domaintypes "pairlink/internal/domain/types"
)

// Carrier is how a key exchange emits handshake messages through its owning
// session.
type Carrier interface {
	SendMessage(msg domaintypes.Message) error
}

// KeyExchanger negotiates a shared secret and seals messages under it.
type KeyExchanger interface {
	Start(isOriginator bool) error
	SetOriginator(v bool)
	HandleMessage(msg domaintypes.Message) error
	Reset()
	KeysExchanged() bool
	Phase() domaintypes.Phase
	Episode() uint64
	PublicKey() domaintypes.X25519Public
	PeerPublicKey() (domaintypes.X25519Public, bool)
	Encrypt(plaintext []byte) (string, error)
	Decrypt(cipher string) ([]byte, error)
}

// Codec encodes application messages before they are sealed.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Observer receives session notifications. Implementations must not call
// back into the session synchronously.
type Observer interface {
	OnEvent(ev domaintypes.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev domaintypes.Event)

// OnEvent calls f(ev).
func (f ObserverFunc) OnEvent(ev domaintypes.Event) { f(ev) }

// DisruptionHandler is told about unexpected transport loss.
type DisruptionHandler interface {
	HandleDisruption()
}

// Rejoiner forces a clean reconnect and rejoin of the bound channel.
type Rejoiner interface {
	Rejoin(ctx context.Context) error
}
