package mudproto

import (
	"bytes"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/encoding/ianaindex"
)

var codecNameCache, _ = lru.New[string, string](128)

// canonicalCodecName resolves a charset name to the canonical name Go's IANA
// encoding index uses for it, mirroring Python's codecs.lookup(name).name.
// The second return value is false when the name is not a known codec.
func canonicalCodecName(name string) (string, bool) {
	if cached, ok := codecNameCache.Get(name); ok {
		return cached, cached != ""
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		codecNameCache.Add(name, "")
		return "", false
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		codecNameCache.Add(name, "")
		return "", false
	}
	codecNameCache.Add(name, canonical)
	return canonical, true
}

// Charset implements the CHARSET option (RFC 2066): negotiating a character
// set with the peer, and tracking the one currently agreed on. It registers
// itself into a Telnet instance's Q-method via OptionHooks rather than
// participating in the Telnet state machine directly.
type Charset struct {
	telnet   *Telnet
	charsets [][]byte
	current  []byte
}

// NewCharset constructs a Charset companion and registers its hooks with t.
func NewCharset(t *Telnet) *Charset {
	c := &Charset{
		telnet:   t,
		charsets: [][]byte{[]byte("US-ASCII")},
	}
	c.current = c.charsets[0]
	t.RegisterOption(OptCharset, OptionHooks{
		OnEnableLocal: func() bool {
			debugf("Charset negotiation enabled.")
			return true
		},
		OnDisableLocal: func() {
			debugf("Charset negotiation disabled.")
		},
		Subnegotiation: c.onCharset,
	})
	return c
}

// Charset returns the name of the currently agreed-on character set.
func (c *Charset) Charset() string {
	return string(c.current)
}

// NegotiateCharset asks the peer to switch to name, provided name resolves
// to the same codec as one of the charsets the peer previously advertised
// as supported. It returns ErrInvalidOption if name is not a known codec.
func (c *Charset) NegotiateCharset(name string) error {
	target, ok := canonicalCodecName(name)
	if !ok {
		Logger.Printf("charset: %q not a valid codec", name)
		return fmt.Errorf("%w: %q not a valid codec", ErrInvalidOption, name)
	}
	for _, item := range c.charsets {
		itemCanonical, ok := canonicalCodecName(string(item))
		if ok && itemCanonical == target {
			debugf("Tell peer we would like to use the %q charset.", item)
			payload := append([]byte{charsetRequest}, ';')
			payload = append(payload, item...)
			c.telnet.RequestNegotiation(OptCharset, payload)
			return nil
		}
	}
	Logger.Printf("charset: could not find any charsets which target %q", target)
	return nil
}

// ParseSupportedCharsets splits response on its leading separator byte into
// the charsets the peer supports, removing duplicate aliases (keeping the
// first occurrence of each distinct codec).
func ParseSupportedCharsets(response []byte) [][]byte {
	if len(response) == 0 {
		return nil
	}
	separator, rest := response[0], response[1:]
	var charsets [][]byte
	seen := make(map[string]bool)
	for _, item := range bytes.Split(rest, []byte{separator}) {
		name, ok := canonicalCodecName(string(item))
		if !ok || seen[name] {
			continue
		}
		charsets = append(charsets, item)
		seen[name] = true
	}
	return charsets
}

func (c *Charset) onCharset(data []byte) {
	if len(data) == 0 {
		Logger.Printf("charset: unknown charset negotiation response from peer: %q", data)
		c.telnet.Wont(OptCharset)
		return
	}
	status, response := data[0], data[1:]
	switch status {
	case charsetRequest:
		c.charsets = ParseSupportedCharsets(response)
		debugf("Peer responds: Supported charsets: %q.", c.charsets)
		_ = c.NegotiateCharset(string(c.current))
	case charsetAccepted:
		debugf("Peer responds: Charset %q accepted.", response)
		c.current = response
	case charsetRejected:
		Logger.Printf("charset: peer responds: Charset rejected.")
	default:
		Logger.Printf("charset: unknown charset negotiation response from peer: %q", data)
		c.telnet.Wont(OptCharset)
	}
}
