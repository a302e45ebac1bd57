package p13n

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKey is returned when a key is not known to a control's metadata.
	ErrUnknownKey = errors.New("unknown personalization key")

	// ErrInvalidCondition is returned for a filter condition without a value.
	ErrInvalidCondition = errors.New("invalid filter condition")

	// ErrNotRegistered is returned for operations on a control the engine does not know.
	ErrNotRegistered = errors.New("control not registered")

	// ErrAlreadyRegistered is returned when a control registers twice.
	ErrAlreadyRegistered = errors.New("control already registered")

	// ErrInvalidRegistration is returned when a registration lacks a helper or controllers.
	ErrInvalidRegistration = errors.New("invalid registration")
)

// Property describes one personalizable key of a control.
type Property struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
	Path  string `json:"path" yaml:"path"`
}

// MetadataHelper resolves keys to their properties and binding paths.
type MetadataHelper struct {
	props []Property
	index map[string]int
}

// NewMetadataHelper creates a helper over props. Order is preserved.
func NewMetadataHelper(props []Property) *MetadataHelper {
	h := &MetadataHelper{
		props: make([]Property, len(props)),
		index: make(map[string]int, len(props)),
	}
	copy(h.props, props)
	for i, p := range h.props {
		h.index[p.Key] = i
	}
	return h
}

// Properties returns all properties in their natural order.
func (h *MetadataHelper) Properties() []Property {
	out := make([]Property, len(h.props))
	copy(out, h.props)
	return out
}

// Property returns the property for key.
func (h *MetadataHelper) Property(key string) (Property, bool) {
	i, ok := h.index[key]
	if !ok {
		return Property{}, false
	}
	return h.props[i], true
}

// Path returns the binding path for key.
func (h *MetadataHelper) Path(key string) (string, error) {
	p, ok := h.Property(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if p.Path == "" {
		return "", fmt.Errorf("%w: %q has no binding path", ErrUnknownKey, key)
	}
	return p.Path, nil
}
