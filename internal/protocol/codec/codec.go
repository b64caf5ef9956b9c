// Package codec encodes application messages before they are sealed.
// Both peers must use the same codec; JSON is the default.
package codec

import (
	"fmt"
	"strings"

	"pairlink/internal/domain"
)

// Registry maps names and content types to codecs.
type Registry struct{ byName map[string]domain.Codec }

// NewRegistry returns a registry preloaded with JSON and CBOR.
func NewRegistry() (*Registry, error) {
	r := &Registry{byName: make(map[string]domain.Codec)}
	r.Register("json", JSON())
	c, err := CBOR()
	if err != nil {
		return nil, err
	}
	r.Register("cbor", c)
	return r, nil
}

// Register adds a codec under name and under its content type.
func (r *Registry) Register(name string, c domain.Codec) {
	r.byName[strings.ToLower(name)] = c
	r.byName[c.ContentType()] = c
}

// Get returns a codec by name or content type.
func (r *Registry) Get(name string) (domain.Codec, error) {
	if c, ok := r.byName[strings.ToLower(name)]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("codec: unknown codec %q", name)
}

// ByName is a convenience for one-off lookups.
func ByName(name string) (domain.Codec, error) {
	r, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	return r.Get(name)
}
