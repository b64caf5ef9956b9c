package reconnect

import "sync"

// FocusSource reports whether the host currently has user focus.
type FocusSource interface {
	Focused() bool
	// Regained is signalled when focus returns. It may be nil when focus is
	// never lost.
	Regained() <-chan struct{}
}

// AlwaysFocused is the focus source for hosts without a notion of focus,
// such as a terminal or a daemon.
type AlwaysFocused struct{}

// Focused is always true.
func (AlwaysFocused) Focused() bool { return true }

// Regained is nil; focus is never lost.
func (AlwaysFocused) Regained() <-chan struct{} { return nil }

// Manual is a focus source driven by the host through SetFocused.
type Manual struct {
	mu       sync.Mutex
	focused  bool
	regained chan struct{}
}

// NewManual returns a Manual source in the given initial state.
func NewManual(focused bool) *Manual {
	return &Manual{focused: focused, regained: make(chan struct{}, 1)}
}

// SetFocused records a focus change. A false to true edge signals Regained.
func (m *Manual) SetFocused(v bool) {
	m.mu.Lock()
	was := m.focused
	m.focused = v
	m.mu.Unlock()
	if v && !was {
		select {
		case m.regained <- struct{}{}:
		default:
		}
	}
}

// Focused reports the last value passed to SetFocused.
func (m *Manual) Focused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// Regained receives one signal per unfocused to focused edge; edges that
// arrive before the last one was consumed are merged.
func (m *Manual) Regained() <-chan struct{} { return m.regained }

var (
	_ FocusSource = AlwaysFocused{}
	_ FocusSource = (*Manual)(nil)
)
