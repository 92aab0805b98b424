package mudproto

import "errors"

// Sentinel error kinds. ErrInvariantViolation and ErrDecompression propagate
// out of OnDataReceived and are treated as fatal, unlike framing anomalies
// and negotiation misuse, which are only logged; the others are returned at
// API boundaries (constructors, Charset.NegotiateCharset, Manager methods).
var (
	// ErrInvariantViolation is returned when an option's (enabled, negotiating)
	// perspective reaches a state the Q-method treats as a programming bug
	// (e.g. both true simultaneously, or a policy refusing an already-committed
	// enable).
	ErrInvariantViolation = errors.New("mudproto: option state invariant violated")

	// ErrDecompression is returned when the MCCP handler's zlib stream fails
	// to decode (corrupt or truncated compressed data).
	ErrDecompression = errors.New("mudproto: mccp decompression failed")

	// ErrConfiguration marks a configuration failure. No constructor in this
	// package returns it: NewMPI takes no editor/pager configuration and
	// substitutes NopLauncher for a nil Launcher.
	ErrConfiguration = errors.New("mudproto: configuration error")

	// ErrInvalidOption is returned at API boundaries for a value outside its
	// domain (NAWS dimensions outside 0-65535, an unresolvable charset name).
	ErrInvalidOption = errors.New("mudproto: invalid option value")

	// ErrHandlerExists is returned by Manager.Register when a handler of the
	// same concrete type is already registered.
	ErrHandlerExists = errors.New("mudproto: handler already registered")

	// ErrHandlerNotFound is returned by Manager.Unregister when the given
	// handler instance is not part of the chain.
	ErrHandlerNotFound = errors.New("mudproto: handler not registered")
)
