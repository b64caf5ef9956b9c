package channel_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pairlink/internal/domain"
	"pairlink/internal/protocol/codec"
	"pairlink/internal/protocol/keyexchange"
	"pairlink/internal/relay"
	"pairlink/internal/services/channel"
)

const testChannel = domain.ChannelID("chan-test")

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) OnEvent(ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count(kind domain.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) all(kind domain.EventKind) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type disruptions struct {
	mu sync.Mutex
	n  int
}

func (d *disruptions) HandleDisruption() {
	d.mu.Lock()
	d.n++
	d.mu.Unlock()
}

type peer struct {
	s    *channel.Session
	tr   *relay.Memory
	obs  *recorder
	errs []error
}

func newPeer(t *testing.T, hub *relay.Hub, name string, opts channel.Options) *peer {
	t.Helper()
	p := &peer{obs: &recorder{}, tr: relay.NewMemory(hub, name, nil)}
	opts.Observer = p.obs
	if opts.NewChannelID == nil {
		opts.NewChannelID = func() domain.ChannelID { return testChannel }
	}
	s, err := channel.New(p.tr, opts)
	if err != nil {
		t.Fatalf("channel.New: %v", err)
	}
	p.s = s
	return p
}

// pump delivers queued relay events to each peer, one at a time, until the
// relay goes quiet.
func pump(t *testing.T, peers ...*peer) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		progressed := false
		for _, p := range peers {
			select {
			case ev := <-p.tr.Events():
				progressed = true
				if err := p.s.HandleEvent(ev); err != nil {
					p.errs = append(p.errs, err)
				}
			default:
			}
		}
		if !progressed {
			return
		}
	}
	t.Fatal("relay traffic did not settle")
}

func noErrors(t *testing.T, peers ...*peer) {
	t.Helper()
	for _, p := range peers {
		if len(p.errs) > 0 {
			t.Fatalf("unexpected session errors: %v", p.errs)
		}
	}
}

// payloads returns the envelope messages a transport has emitted.
func payloads(t *testing.T, tr *relay.Memory) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, ev := range tr.Sent() {
		if ev.Name != domain.RelayMessage {
			continue
		}
		var env domain.Envelope
		if err := json.Unmarshal(ev.Data, &env); err != nil {
			t.Fatalf("decode sent envelope: %v", err)
		}
		out = append(out, env.Message)
	}
	return out
}

func isCipher(raw json.RawMessage) bool { return len(raw) > 0 && raw[0] == '"' }

func readyPair(t *testing.T, opts channel.Options) (*relay.Hub, *peer, *peer) {
	t.Helper()
	hub := relay.NewHub(nil)
	a := newPeer(t, hub, "originator", opts)
	b := newPeer(t, hub, "responder", opts)
	info, err := a.s.CreateChannel(t.Context())
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if err := b.s.ConnectToChannel(t.Context(), info.ChannelID); err != nil {
		t.Fatalf("ConnectToChannel: %v", err)
	}
	pump(t, a, b)
	noErrors(t, a, b)
	if !a.s.KeysExchanged() || !b.s.KeysExchanged() {
		t.Fatal("keys not exchanged")
	}
	return hub, a, b
}

func TestCreateJoin_BothSidesReadyOnce(t *testing.T) {
	hub := relay.NewHub(nil)
	a := newPeer(t, hub, "originator", channel.Options{})
	b := newPeer(t, hub, "responder", channel.Options{})

	info, err := a.s.CreateChannel(t.Context())
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if info.ChannelID != testChannel || info.PubKey != a.s.PublicKey() {
		t.Fatalf("unexpected channel info %+v", info)
	}
	if a.s.Role() != domain.RoleOriginator || a.s.State() != domain.StateJoining {
		t.Fatalf("originator role=%s state=%s", a.s.Role(), a.s.State())
	}
	pump(t, a)
	if a.obs.count(domain.EventChannelCreated) != 1 {
		t.Fatal("channel_created not observed")
	}
	if w := a.obs.all(domain.EventClientsWaitingToJoin); len(w) != 1 || w[0].Count != 1 {
		t.Fatalf("clients_waiting_to_join = %+v", w)
	}

	if err := b.s.ConnectToChannel(t.Context(), info.ChannelID); err != nil {
		t.Fatalf("ConnectToChannel: %v", err)
	}
	pump(t, a, b)
	noErrors(t, a, b)

	for _, p := range []*peer{a, b} {
		if p.s.State() != domain.StateConnected || p.s.Phase() != domain.PhaseExchanged {
			t.Fatalf("state=%s phase=%s", p.s.State(), p.s.Phase())
		}
		if cs := p.s.ConnectionState(); !cs.ClientsConnected || !cs.ClientsReady {
			t.Fatalf("connection state %+v", cs)
		}
	}
	ra, rb := a.obs.all(domain.EventClientsReady), b.obs.all(domain.EventClientsReady)
	if len(ra) != 1 || len(rb) != 1 {
		t.Fatalf("clients_ready fired a=%d b=%d, want 1 each", len(ra), len(rb))
	}
	if !ra[0].IsOriginator || rb[0].IsOriginator {
		t.Fatal("clients_ready carries the wrong role")
	}
	if b.obs.count(domain.EventKeyExchange) == 0 {
		t.Fatal("key_exchange not observed on responder")
	}
}

func TestSendBeforeHandshake_NeverReachesRelay(t *testing.T) {
	hub := relay.NewHub(nil)
	a := newPeer(t, hub, "originator", channel.Options{})
	b := newPeer(t, hub, "responder", channel.Options{})
	if _, err := a.s.CreateChannel(t.Context()); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if err := b.s.ConnectToChannel(t.Context(), testChannel); err != nil {
		t.Fatalf("ConnectToChannel: %v", err)
	}

	err := b.s.SendMessage(domain.Message{Type: domain.TypeChat, Text: "hi"})
	if !errors.Is(err, domain.ErrKeysNotExchanged) {
		t.Fatalf("want ErrKeysNotExchanged, got %v", err)
	}
	if got := payloads(t, b.tr); len(got) != 0 {
		t.Fatalf("message reached the relay: %s", got)
	}
}

func TestNoPlaintextApplicationContentOnTheWire(t *testing.T) {
	_, a, b := readyPair(t, channel.Options{})
	if err := a.s.SendMessage(domain.Message{Type: domain.TypeChat, Text: "secret"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := b.s.SendMessage(domain.Message{Type: domain.TypeChat, Text: "reply"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	pump(t, a, b)
	noErrors(t, a, b)

	for _, p := range []*peer{a, b} {
		for _, raw := range payloads(t, p.tr) {
			if isCipher(raw) {
				continue
			}
			var m domain.Message
			if err := json.Unmarshal(raw, &m); err != nil || !m.IsHandshake() {
				t.Fatalf("plaintext on the wire: %s", raw)
			}
		}
	}
	got := b.obs.all(domain.EventMessage)
	if len(got) != 1 || got[0].Message.Text != "secret" {
		t.Fatalf("responder messages %+v", got)
	}
	got = a.obs.all(domain.EventMessage)
	if len(got) != 1 || got[0].Message.Text != "reply" {
		t.Fatalf("originator messages %+v", got)
	}
}

func TestPauseResume_ResumesWithoutNewHandshake(t *testing.T) {
	_, a, b := readyPair(t, channel.Options{})

	if err := a.s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if a.s.State() != domain.StatePaused || a.tr.Connected() {
		t.Fatal("pause must disconnect the transport")
	}
	sent := payloads(t, a.tr)
	if last := sent[len(sent)-1]; !isCipher(last) {
		t.Fatalf("pause notice not sealed: %s", last)
	}
	pump(t, a, b)
	noErrors(t, a, b)
	if msgs := b.obs.all(domain.EventMessage); len(msgs) != 1 || msgs[0].Message.Type != domain.TypePause {
		t.Fatalf("responder did not see pause: %+v", msgs)
	}
	if b.s.ConnectionState().ClientsConnected {
		t.Fatal("responder should see the originator leave")
	}

	before := len(payloads(t, a.tr))
	if err := a.s.Resume(t.Context()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if a.s.State() != domain.StateJoining {
		t.Fatalf("state after resume = %s", a.s.State())
	}
	pump(t, a, b)
	noErrors(t, a, b)

	after := payloads(t, a.tr)[before:]
	if len(after) != 1 || !isCipher(after[0]) {
		t.Fatalf("resume should send exactly one sealed message, sent %s", after)
	}
	msgs := b.obs.all(domain.EventMessage)
	if last := msgs[len(msgs)-1]; last.Message.Type != domain.TypeReady {
		t.Fatalf("responder last message = %+v, want ready", last)
	}
	if a.s.Phase() != domain.PhaseExchanged || a.obs.count(domain.EventClientsReady) != 1 {
		t.Fatal("resume must not re-run the handshake")
	}
	if err := a.s.Resume(t.Context()); !errors.Is(err, domain.ErrNotPaused) {
		t.Fatalf("second Resume: want ErrNotPaused, got %v", err)
	}
}

func TestRelayErrorIsSurfacedBeforeParsing(t *testing.T) {
	hub := relay.NewHub(nil)
	a := newPeer(t, hub, "originator", channel.Options{})
	if _, err := a.s.CreateChannel(t.Context()); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	ev := domain.RelayEvent{
		Name: domain.ChannelEvent(domain.RelayMessage, testChannel),
		Data: json.RawMessage(`{"id":"someone-else","message":{"broken":`),
	}
	if err := a.s.HandleEvent(ev); err == nil {
		t.Fatal("malformed envelope accepted")
	}
	ev.Data = json.RawMessage(`{"id":"someone-else","message":"not-cipher","error":"boom"}`)
	var relayErr *domain.RelayError
	if err := a.s.HandleEvent(ev); !errors.As(err, &relayErr) || relayErr.Message != "boom" {
		t.Fatalf("want RelayError(boom), got %v", err)
	}
}

func TestSecondClientsConnectedDoesNotRestartHandshake(t *testing.T) {
	_, a, b := readyPair(t, channel.Options{})
	before := len(a.tr.Sent())
	err := a.s.HandleEvent(domain.RelayEvent{
		Name: domain.ChannelEvent(domain.RelayClientsConnected, testChannel),
		Data: json.RawMessage(`"` + testChannel + `"`),
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(a.tr.Sent()) != before {
		t.Fatal("repeated clients_connected emitted frames")
	}
	pump(t, a, b)
	if a.obs.count(domain.EventClientsReady) != 1 || b.obs.count(domain.EventClientsReady) != 1 {
		t.Fatal("handshake re-ran")
	}
}

func TestWrongChannelIsRejected(t *testing.T) {
	_, a, _ := readyPair(t, channel.Options{})
	before := a.s.ConnectionState()

	err := a.s.HandleEvent(domain.RelayEvent{
		Name: domain.ChannelEvent(domain.RelayMessage, testChannel),
		Data: json.RawMessage(`{"id":"other","message":"AAAA"}`),
	})
	if !errors.Is(err, domain.ErrWrongChannel) {
		t.Fatalf("want ErrWrongChannel, got %v", err)
	}
	err = a.s.HandleEvent(domain.RelayEvent{
		Name: domain.ChannelEvent(domain.RelayClientsConnected, testChannel),
		Data: json.RawMessage(`"other"`),
	})
	if !errors.Is(err, domain.ErrWrongChannel) {
		t.Fatalf("want ErrWrongChannel for clients_connected, got %v", err)
	}
	if a.s.ConnectionState() != before || !a.s.KeysExchanged() {
		t.Fatal("rejected envelope changed session state")
	}

	// Events namespaced to another channel are not ours to judge.
	err = a.s.HandleEvent(domain.RelayEvent{
		Name: domain.ChannelEvent(domain.RelayClientsDisconnected, "other"),
	})
	if err != nil || !a.s.ConnectionState().ClientsConnected {
		t.Fatalf("foreign channel event applied: %v", err)
	}
}

func TestPlaintextAfterExchangeIsRejected(t *testing.T) {
	_, a, _ := readyPair(t, channel.Options{})
	err := a.s.HandleEvent(domain.RelayEvent{
		Name: domain.ChannelEvent(domain.RelayMessage, testChannel),
		Data: json.RawMessage(`{"id":"` + testChannel + `","message":{"type":"chat","text":"hi"}}`),
	})
	if !errors.Is(err, channel.ErrUnencrypted) {
		t.Fatalf("want ErrUnencrypted, got %v", err)
	}
	if n := a.obs.count(domain.EventMessage); n != 0 {
		t.Fatalf("plaintext delivered %d messages", n)
	}
}

func TestUnencryptedBeforeExchangeIsRejected(t *testing.T) {
	hub := relay.NewHub(nil)
	b := newPeer(t, hub, "responder", channel.Options{})
	if err := b.s.ConnectToChannel(t.Context(), testChannel); err != nil {
		t.Fatalf("ConnectToChannel: %v", err)
	}
	for _, payload := range []string{`{"type":"chat","text":"hi"}`, `"AAAA"`} {
		err := b.s.HandleEvent(domain.RelayEvent{
			Name: domain.ChannelEvent(domain.RelayMessage, testChannel),
			Data: json.RawMessage(`{"id":"` + string(testChannel) + `","message":` + payload + `}`),
		})
		if !errors.Is(err, domain.ErrKeysNotExchanged) {
			t.Fatalf("%s: want ErrKeysNotExchanged, got %v", payload, err)
		}
	}
}

func TestDisconnectKeepsKeys(t *testing.T) {
	_, a, b := readyPair(t, channel.Options{})
	if err := b.s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	pump(t, a, b)
	if a.s.ConnectionState().ClientsConnected {
		t.Fatal("clients_disconnected not applied")
	}
	if !a.s.KeysExchanged() || a.s.State() != domain.StateConnected {
		t.Fatal("peer disconnect must not reset the handshake")
	}
	if a.obs.count(domain.EventClientsDisconnected) != 1 {
		t.Fatal("clients_disconnected not observed")
	}
}

func TestResponderRestart_RenegotiatesWithSameKeyPair(t *testing.T) {
	hub, a, b := readyPair(t, channel.Options{})
	rec := b.s.Record()
	if rec.ChannelID != testChannel || domain.ParseRole(rec.Role) != domain.RoleResponder {
		t.Fatalf("record %+v", rec)
	}
	if rec.PeerPublicKey != a.s.PublicKey() {
		t.Fatal("record lost the peer key")
	}

	b.tr.Drop()
	pump(t, a)

	b2 := newPeer(t, hub, "responder-2", channel.Options{
		KeyExchange: []keyexchange.Option{
			keyexchange.WithKeyPair(rec.PrivateKey, rec.PublicKey),
			keyexchange.WithPeerPublicKey(rec.PeerPublicKey),
		},
	})
	if err := b2.s.RestoreChannel(t.Context(), rec.ChannelID, domain.RoleResponder); err != nil {
		t.Fatalf("RestoreChannel: %v", err)
	}
	pump(t, a, b2)
	noErrors(t, a, b2)

	if !b2.s.KeysExchanged() || !a.s.KeysExchanged() {
		t.Fatal("restarted responder did not renegotiate")
	}
	if a.obs.count(domain.EventClientsReady) != 2 || b2.obs.count(domain.EventClientsReady) != 1 {
		t.Fatalf("clients_ready a=%d b2=%d", a.obs.count(domain.EventClientsReady), b2.obs.count(domain.EventClientsReady))
	}
	if err := a.s.SendMessage(domain.Message{Type: domain.TypeChat, Text: "welcome back"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	pump(t, a, b2)
	if msgs := b2.obs.all(domain.EventMessage); len(msgs) != 1 || msgs[0].Message.Text != "welcome back" {
		t.Fatalf("restarted responder messages %+v", msgs)
	}
}

func TestDecryptFailureRestartsEpisode(t *testing.T) {
	for _, tc := range []struct {
		name   string
		victim func(a, b *peer) *peer
	}{
		{"originator", func(a, _ *peer) *peer { return a }},
		{"responder", func(_, b *peer) *peer { return b }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, a, b := readyPair(t, channel.Options{})
			v := tc.victim(a, b)
			err := v.s.HandleEvent(domain.RelayEvent{
				Name: domain.ChannelEvent(domain.RelayMessage, testChannel),
				Data: json.RawMessage(`{"id":"` + testChannel + `","message":"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}`),
			})
			if !errors.Is(err, keyexchange.ErrDecryption) {
				t.Fatalf("want ErrDecryption, got %v", err)
			}
			pump(t, a, b)
			noErrors(t, a, b)
			if !a.s.KeysExchanged() || !b.s.KeysExchanged() {
				t.Fatal("episode was not renegotiated")
			}
			if a.obs.count(domain.EventClientsReady) != 2 || b.obs.count(domain.EventClientsReady) != 2 {
				t.Fatal("clients_ready should fire once per episode")
			}
		})
	}
}

func TestUnboundAndUnpausedErrors(t *testing.T) {
	hub := relay.NewHub(nil)
	a := newPeer(t, hub, "a", channel.Options{})
	if err := a.s.SendMessage(domain.Message{Type: domain.TypeChat}); !errors.Is(err, domain.ErrNoChannel) {
		t.Fatalf("want ErrNoChannel, got %v", err)
	}
	if err := a.s.Resume(t.Context()); !errors.Is(err, domain.ErrNotPaused) {
		t.Fatalf("want ErrNotPaused, got %v", err)
	}
	if err := a.s.Rejoin(t.Context()); err != nil {
		t.Fatalf("Rejoin on unbound session: %v", err)
	}
	if _, err := a.s.CreateChannel(t.Context()); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if _, err := a.s.CreateChannel(t.Context()); !errors.Is(err, domain.ErrChannelBound) {
		t.Fatalf("want ErrChannelBound, got %v", err)
	}
	if err := a.s.ConnectToChannel(t.Context(), "x"); !errors.Is(err, domain.ErrChannelBound) {
		t.Fatalf("want ErrChannelBound, got %v", err)
	}
}

func TestDisruptionAndRejoin(t *testing.T) {
	_, a, b := readyPair(t, channel.Options{DirectMedia: true})
	d := &disruptions{}
	a.s.SetDisruptionHandler(d)

	a.tr.Drop()
	pump(t, a, b)
	if d.n != 1 {
		t.Fatalf("disruptions = %d, want 1", d.n)
	}

	if err := a.s.Rejoin(t.Context()); err != nil {
		t.Fatalf("Rejoin: %v", err)
	}
	pump(t, a, b)
	noErrors(t, a, b)
	msgs := b.obs.all(domain.EventMessage)
	if len(msgs) != 1 || msgs[0].Message.Type != domain.TypeReady {
		t.Fatalf("responder messages after rejoin %+v", msgs)
	}
	// Direct media raises clients_ready again on a resumed secure channel.
	if a.obs.count(domain.EventClientsReady) != 2 {
		t.Fatalf("clients_ready = %d, want 2", a.obs.count(domain.EventClientsReady))
	}

	if err := a.s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := a.s.Rejoin(t.Context()); err != nil || a.tr.Connected() {
		t.Fatalf("Rejoin while paused must be ignored: %v", err)
	}
	if d.n != 1 {
		t.Fatal("manual disconnect reported as disruption")
	}
}

func TestHandshakeTimeout(t *testing.T) {
	hub := relay.NewHub(nil)
	a := newPeer(t, hub, "originator", channel.Options{HandshakeTimeout: 20 * time.Millisecond})
	if _, err := a.s.CreateChannel(t.Context()); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	pump(t, a)
	// A peer that joins and never answers the SYN.
	if err := a.s.HandleEvent(domain.RelayEvent{
		Name: domain.ChannelEvent(domain.RelayClientsConnected, testChannel),
		Data: json.RawMessage(`"` + testChannel + `"`),
	}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if a.s.Phase() != domain.PhaseInProgress {
		t.Fatalf("phase = %s", a.s.Phase())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range a.obs.all(domain.EventError) {
			if errors.Is(ev.Err, domain.ErrHandshakeTimeout) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("handshake timeout not reported")
}

func TestCBORCodecCarriesMessages(t *testing.T) {
	c, err := codec.CBOR()
	if err != nil {
		t.Fatalf("CBOR: %v", err)
	}
	_, a, b := readyPair(t, channel.Options{Codec: c})
	msg := domain.Message{Type: domain.TypeChat, Text: "over cbor", Data: json.RawMessage(`{"n":1}`)}
	if err := b.s.SendMessage(msg); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	pump(t, a, b)
	noErrors(t, a, b)
	got := a.obs.all(domain.EventMessage)
	if len(got) != 1 || got[0].Message.Text != "over cbor" || string(got[0].Message.Data) != `{"n":1}` {
		t.Fatalf("originator messages %+v", got)
	}
}

func TestRunReportsRejectedEvents(t *testing.T) {
	hub := relay.NewHub(nil)
	a := newPeer(t, hub, "originator", channel.Options{})
	if _, err := a.s.CreateChannel(t.Context()); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.s.Run(ctx) }()

	// A raw client that skips the handshake and talks in plaintext.
	rogue := relay.NewMemory(hub, "rogue", nil)
	if err := rogue.Connect(t.Context()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := rogue.Emit(domain.RelayJoinChannel, testChannel); err != nil {
		t.Fatalf("join: %v", err)
	}
	chat := domain.Envelope{ID: testChannel, Message: json.RawMessage(`{"type":"chat","text":"hi"}`)}
	if err := rogue.Emit(domain.RelayMessage, chat); err != nil {
		t.Fatalf("emit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var reported []domain.Event
	for time.Now().Before(deadline) {
		if reported = a.obs.all(domain.EventError); len(reported) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if len(reported) == 0 || !errors.Is(reported[0].Err, domain.ErrKeysNotExchanged) {
		t.Fatalf("reported errors %+v", reported)
	}
	if a.obs.count(domain.EventMessage) != 0 {
		t.Fatal("plaintext delivered to the observer")
	}
}

func TestBurstLargerThanTransportBufferIsDeliveredInOrder(t *testing.T) {
	_, a, b := readyPair(t, channel.Options{})
	const n = 1100
	for i := 0; i < n; i++ {
		if err := a.s.SendMessage(domain.Message{Type: domain.TypeChat, Text: fmt.Sprint(i)}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for b.obs.count(domain.EventMessage) < n {
		select {
		case ev := <-b.tr.Events():
			if err := b.s.HandleEvent(ev); err != nil {
				t.Fatalf("HandleEvent: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("delivered %d of %d", b.obs.count(domain.EventMessage), n)
		}
	}
	for i, ev := range b.obs.all(domain.EventMessage) {
		if ev.Message.Text != fmt.Sprint(i) {
			t.Fatalf("message %d arrived as %q", i, ev.Message.Text)
		}
	}
}
