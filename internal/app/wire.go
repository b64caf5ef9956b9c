package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"pairlink/internal/crypto"
	"pairlink/internal/domain"
	"pairlink/internal/protocol/codec"
	"pairlink/internal/protocol/keyexchange"
	"pairlink/internal/relay"
	"pairlink/internal/services/channel"
	"pairlink/internal/services/reconnect"
	"pairlink/internal/store"
)

// Wire bundles the shared dependencies the CLI builds sessions from.
type Wire struct {
	Config Config
	Log    *zap.Logger
	Store  *store.ChannelFileStore
	Codec  domain.Codec

	// NewTransport returns a fresh relay transport for each session.
	NewTransport func() domain.Transport
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config, log *zap.Logger) (*Wire, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c, err := codec.ByName(cfg.Session.Codec)
	if err != nil {
		return nil, err
	}
	w := &Wire{
		Config: cfg,
		Log:    log,
		Store:  store.NewChannelFileStore(cfg.Home, crypto.KDF(cfg.Store.KDF)),
		Codec:  c,
	}
	w.NewTransport = func() domain.Transport {
		return relay.NewWebSocket(cfg.Relay.URL,
			relay.WithKeepalive(time.Duration(cfg.Relay.PingIntervalMS)*time.Millisecond),
			relay.WithLogger(log))
	}
	return w, nil
}

// AppOptions selects how a new App starts.
type AppOptions struct {
	Observer domain.Observer
	// Focus defaults to AlwaysFocused.
	Focus reconnect.FocusSource
	// PeerKey pins the peer's channel key when non-zero.
	PeerKey domain.X25519Public
	// Record reuses a persisted key pair and pinned peer key.
	Record *domain.ChannelRecord
	// OnExhausted is told when the reconnector gives up. The session is
	// already paused by then, so Resume retries.
	OnExhausted func(error)
}

// NewApp builds a session, its transport and its reconnector.
func (w *Wire) NewApp(opts AppOptions) (*App, error) {
	var kx []keyexchange.Option
	peer := opts.PeerKey
	if rec := opts.Record; rec != nil {
		if rec.PrivateKey == (domain.X25519Private{}) {
			return nil, fmt.Errorf("channel %s: record has no key pair", rec.ChannelID)
		}
		kx = append(kx, keyexchange.WithKeyPair(rec.PrivateKey, rec.PublicKey))
		if peer.IsZero() {
			peer = rec.PeerPublicKey
		}
	}
	if !peer.IsZero() {
		kx = append(kx, keyexchange.WithPeerPublicKey(peer))
	}

	sess, err := channel.New(w.NewTransport(), channel.Options{
		Codec:            w.Codec,
		Observer:         opts.Observer,
		Logger:           w.Log.Named("session"),
		KeyExchange:      kx,
		DirectMedia:      w.Config.Session.DirectMedia,
		HandshakeTimeout: w.Config.HandshakeTimeout(),
	})
	if err != nil {
		return nil, err
	}
	log := w.Log.Named("reconnect")
	rc := reconnect.New(sess, opts.Focus, w.Config.Backoff(),
		reconnect.WithLogger(log),
		reconnect.WithOnExhausted(func(err error) {
			// Park the session so Resume can retry by hand.
			if perr := sess.Pause(); perr != nil {
				log.Debug("pause after giving up", zap.Error(perr))
			}
			if opts.OnExhausted != nil {
				opts.OnExhausted(err)
			}
		}))
	sess.SetDisruptionHandler(rc)

	return &App{
		Session:     sess,
		Reconnector: rc,
		Store:       w.Store,
		relayURL:    w.Config.Relay.URL,
		log:         w.Log,
	}, nil
}
