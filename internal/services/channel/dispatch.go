package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pairlink/internal/domain"
)

// HandleEvent applies one relay event. Events for channels other than the
// bound one are ignored; an error means the event was rejected and session
// state is unchanged by it.
func (s *Session) HandleEvent(ev domain.RelayEvent) error {
	s.mu.Lock()
	disrupted, err := s.handle(ev)
	h := s.disrupt
	s.mu.Unlock()
	if disrupted && h != nil {
		h.HandleDisruption()
	}
	return err
}

func (s *Session) handle(ev domain.RelayEvent) (disrupted bool, err error) {
	switch ev.Name {
	case domain.TransportConnect:
		s.log.Debug("relay connected")
		return false, nil
	case domain.TransportDisconnect, domain.TransportError:
		if s.manual {
			return false, nil
		}
		s.log.Info("relay connection lost", zap.String("event", ev.Name), zap.ByteString("detail", ev.Data))
		return true, nil
	}

	base, id, ok := domain.SplitChannelEvent(ev.Name)
	if !ok {
		s.log.Debug("unknown relay event", zap.String("event", ev.Name))
		return false, nil
	}
	if s.id == "" || id != s.id {
		s.log.Debug("event for another channel", zap.String("event", ev.Name))
		return false, nil
	}

	switch base {
	case domain.RelayChannelCreated:
		s.notify(domain.Event{Kind: domain.EventChannelCreated, ChannelID: s.id})
		return false, nil
	case domain.RelayClientsConnected:
		return false, s.onClientsConnected(ev.Data)
	case domain.RelayClientsDisconnected:
		s.conn.ClientsConnected = false
		s.stopTimer()
		s.notify(domain.Event{Kind: domain.EventClientsDisconnected, ChannelID: s.id})
		return false, nil
	case domain.RelayClientsWaitingToJoin:
		var n int
		if len(ev.Data) > 0 {
			if err := json.Unmarshal(ev.Data, &n); err != nil {
				return false, fmt.Errorf("clients_waiting_to_join: %w", err)
			}
		}
		s.notify(domain.Event{Kind: domain.EventClientsWaitingToJoin, ChannelID: s.id, Count: n})
		return false, nil
	case domain.RelayMessage:
		return false, s.onMessage(ev.Data)
	}
	return false, nil
}

func (s *Session) onClientsConnected(data json.RawMessage) error {
	var id domain.ChannelID
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("clients_connected: %w", err)
	}
	if id != s.id {
		return fmt.Errorf("clients_connected %q: %w", id, domain.ErrWrongChannel)
	}
	s.conn.ClientsConnected = true
	s.state = domain.StateConnected
	s.notify(domain.Event{Kind: domain.EventClientsConnected, ChannelID: s.id})

	var firstErr error
	if s.role == domain.RoleOriginator && !s.kx.KeysExchanged() {
		if err := s.kx.Start(true); err != nil {
			firstErr = fmt.Errorf("start handshake: %w", err)
		}
	}
	if s.reconnect {
		if s.kx.KeysExchanged() {
			if err := s.send(domain.Message{Type: domain.TypeReady}); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("send ready: %w", err)
			}
			if s.directMedia {
				s.conn.ClientsReady = true
				s.notify(domain.Event{
					Kind:         domain.EventClientsReady,
					ChannelID:    s.id,
					IsOriginator: s.role == domain.RoleOriginator,
				})
			}
		} else if s.role == domain.RoleResponder {
			if err := s.send(domain.Message{Type: domain.TypeHandshakeStart}); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("request handshake: %w", err)
			}
		}
		s.reconnect = false
	}
	s.armTimer()
	return firstErr
}

func (s *Session) onMessage(data json.RawMessage) error {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Error != "" {
		return &domain.RelayError{Message: env.Error}
	}
	if env.ID != s.id {
		return fmt.Errorf("message for %q: %w", env.ID, domain.ErrWrongChannel)
	}

	sealed, msg, isCipher, err := decodePayload(env.Message)
	if err != nil {
		return err
	}

	if !isCipher && msg.IsHandshake() {
		// Covers the normal handshake, an originator asked to start over, and
		// a peer that lost its key and restarts with a new SYN.
		s.notify(domain.Event{Kind: domain.EventKeyExchange, ChannelID: s.id, Message: msg})
		wasExchanged := s.kx.KeysExchanged()
		if err := s.kx.HandleMessage(msg); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		if wasExchanged && !s.kx.KeysExchanged() {
			s.conn.ClientsReady = false
			s.armTimer()
		}
		return nil
	}
	if !s.kx.KeysExchanged() {
		return domain.ErrKeysNotExchanged
	}
	if !isCipher {
		return fmt.Errorf("%w: %q", ErrUnencrypted, msg.Type)
	}

	plain, err := s.kx.Decrypt(sealed)
	if err != nil {
		s.recoverEpisode()
		return err
	}
	var app domain.Message
	if err := s.codec.Unmarshal(plain, &app); err != nil {
		return fmt.Errorf("decode application message: %w", err)
	}
	switch app.Type {
	case domain.TypePause:
		s.conn.ClientsReady = false
	case domain.TypeReady:
		s.conn.ClientsReady = true
	}
	s.notify(domain.Event{Kind: domain.EventMessage, ChannelID: s.id, Message: app})
	return nil
}

// recoverEpisode abandons a key the peer no longer shares. The originator
// starts over; the responder asks it to.
func (s *Session) recoverEpisode() {
	s.conn.ClientsReady = false
	var err error
	if s.role == domain.RoleOriginator {
		err = s.kx.Start(true)
	} else {
		s.kx.Reset()
		err = s.send(domain.Message{Type: domain.TypeHandshakeStart})
	}
	if err != nil {
		s.log.Warn("handshake restart failed", zap.Error(err))
	}
	s.armTimer()
}

// decodePayload splits the envelope message into cipher text (a JSON string)
// or a handshake message (a JSON object).
func decodePayload(raw json.RawMessage) (sealed string, msg domain.Message, isCipher bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", msg, false, errors.New("empty message payload")
	}
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &sealed); err != nil {
			return "", msg, false, fmt.Errorf("decode cipher text: %w", err)
		}
		return sealed, msg, true, nil
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", msg, false, fmt.Errorf("decode message: %w", err)
	}
	return "", msg, false, nil
}
