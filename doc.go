// Package mudproto implements the protocol stack used to mediate a
// byte-oriented session between a MUD client and server: Telnet option
// negotiation (RFC 854), charset negotiation (RFC 2066), window-size
// notification (RFC 1073), MCCP stream compression, GMCP, and the
// MUME-specific MPI remote-editing and XML tagging protocols.
//
// Protocol features are modeled as Handler implementations composed into a
// linear chain by a Manager. Bytes received from the peer flow through the
// chain leaf to root, each handler consuming what it understands and
// forwarding the remainder; bytes written by any handler flow back out
// through the Manager to the transport the caller owns.
package mudproto

import (
	"log"
	"os"
)

// Logger receives warning-level diagnostics for protocol anomalies that are
// recovered from locally (see the package-level error kinds described in
// DESIGN.md). Callers may replace it; it defaults to stderr with standard
// flags, the same shape debug logging takes in comparable MUD clients.
var Logger = log.New(os.Stderr, "mudproto: ", log.LstdFlags)

// debugEnabled gates the small number of verbose trace lines this package
// emits outside of Logger's warning-level output (MUDPROTO_DEBUG=1).
func debugEnabled() bool {
	return os.Getenv("MUDPROTO_DEBUG") == "1"
}

func debugf(format string, args ...any) {
	if debugEnabled() {
		Logger.Printf(format, args...)
	}
}
