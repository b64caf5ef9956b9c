package interfaces

import domaintypes "pairlink/internal/domain/types"

// ChannelStore persists channel records encrypted under a passphrase.
type ChannelStore interface {
	SaveChannel(passphrase string, record domaintypes.ChannelRecord) error
	LoadChannel(passphrase string, id domaintypes.ChannelID) (domaintypes.ChannelRecord, bool, error)
	ListChannels() ([]domaintypes.ChannelID, error)
	DeleteChannel(id domaintypes.ChannelID) error
}
