package types

// ChannelID identifies a pairing channel on the relay. It is created once by
// the originator and shared with the responder out of band.
type ChannelID string

// String returns the string form of the channel id.
func (id ChannelID) String() string { return string(id) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// Role is the fixed position a peer holds in a channel.
type Role int

const (
	RoleUnset Role = iota
	RoleOriginator
	RoleResponder
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleOriginator:
		return "originator"
	case RoleResponder:
		return "responder"
	default:
		return "unset"
	}
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) Role {
	switch s {
	case "originator":
		return RoleOriginator
	case "responder":
		return RoleResponder
	default:
		return RoleUnset
	}
}
