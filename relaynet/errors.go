package relaynet

import "errors"

var (
	// ErrBadMagic is returned when a relay header's magic bytes don't
	// match params.RelayMagic.
	ErrBadMagic = errors.New("relay header had unexpected magic bytes")

	// ErrUnsupportedType is returned when a relay header's type field
	// isn't one this transport knows how to dispatch (only
	// params.BlockRelayType is handled here; tx-relay types are out
	// of scope per spec.md §1).
	ErrUnsupportedType = errors.New("relay header had unsupported type")
)
