package domain

import (
	interfaces "pairlink/internal/domain/interfaces"
	types "pairlink/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	ChannelID       = types.ChannelID
	Fingerprint     = types.Fingerprint
	Role            = types.Role
	Message         = types.Message
	Envelope        = types.Envelope
	ChannelInfo     = types.ChannelInfo
	ChannelRecord   = types.ChannelRecord
	RelayEvent      = types.RelayEvent
	Event           = types.Event
	EventKind       = types.EventKind
	ConnectionState = types.ConnectionState
	State           = types.State
	Phase           = types.Phase
	RelayError      = types.RelayError
	X25519Public    = types.X25519Public
	X25519Private   = types.X25519Private
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	Transport         = interfaces.Transport
	Carrier           = interfaces.Carrier
	KeyExchanger      = interfaces.KeyExchanger
	Codec             = interfaces.Codec
	Observer          = interfaces.Observer
	ObserverFunc      = interfaces.ObserverFunc
	DisruptionHandler = interfaces.DisruptionHandler
	Rejoiner          = interfaces.Rejoiner
	ChannelStore      = interfaces.ChannelStore
)

// Constants and sentinels re-exported for callers that import only domain.
const (
	RoleUnset      = types.RoleUnset
	RoleOriginator = types.RoleOriginator
	RoleResponder  = types.RoleResponder

	StateIdle      = types.StateIdle
	StateJoining   = types.StateJoining
	StateConnected = types.StateConnected
	StatePaused    = types.StatePaused

	PhasePending    = types.PhasePending
	PhaseInProgress = types.PhaseInProgress
	PhaseExchanged  = types.PhaseExchanged

	EventChannelCreated       = types.EventChannelCreated
	EventClientsConnected     = types.EventClientsConnected
	EventClientsDisconnected  = types.EventClientsDisconnected
	EventClientsWaitingToJoin = types.EventClientsWaitingToJoin
	EventClientsReady         = types.EventClientsReady
	EventMessage              = types.EventMessage
	EventKeyExchange          = types.EventKeyExchange
	EventError                = types.EventError
)

var (
	ErrWrongChannel     = types.ErrWrongChannel
	ErrKeysNotExchanged = types.ErrKeysNotExchanged
	ErrNoChannel        = types.ErrNoChannel
	ErrChannelBound     = types.ErrChannelBound
	ErrNotPaused        = types.ErrNotPaused
	ErrHandshakeTimeout = types.ErrHandshakeTimeout
)

// Message types and relay event names.
const (
	HandshakePrefix     = types.HandshakePrefix
	TypeHandshakeStart  = types.TypeHandshakeStart
	TypeHandshakeSyn    = types.TypeHandshakeSyn
	TypeHandshakeSynAck = types.TypeHandshakeSynAck
	TypeHandshakeAck    = types.TypeHandshakeAck
	TypeReady           = types.TypeReady
	TypePause           = types.TypePause
	TypeChat            = types.TypeChat

	RelayJoinChannel          = types.RelayJoinChannel
	RelayMessage              = types.RelayMessage
	RelayChannelCreated       = types.RelayChannelCreated
	RelayClientsConnected     = types.RelayClientsConnected
	RelayClientsDisconnected  = types.RelayClientsDisconnected
	RelayClientsWaitingToJoin = types.RelayClientsWaitingToJoin
	TransportConnect          = types.TransportConnect
	TransportDisconnect       = types.TransportDisconnect
	TransportError            = types.TransportError
)

// Helpers re-exported from the types subpackage.
var (
	ParseX25519Public = types.ParseX25519Public
	ParseRole         = types.ParseRole
	ChannelEvent      = types.ChannelEvent
	SplitChannelEvent = types.SplitChannelEvent
)
