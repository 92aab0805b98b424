package mudproto

import (
	"fmt"
)

const uint16Max = 0xffff
const nawsSequenceLength = 4

// Dimensions holds a negotiated window size. Width and height are each
// constrained to the 16-bit range NAWS encodes them in.
type Dimensions struct {
	Width  int
	Height int
}

// NewDimensions validates width and height and returns a Dimensions, or
// ErrInvalidOption if either is outside 0-65535.
func NewDimensions(width, height int) (Dimensions, error) {
	if width < 0 || width > uint16Max || height < 0 || height > uint16Max {
		return Dimensions{}, fmt.Errorf("%w: width=%d height=%d must be in range 0-%d", ErrInvalidOption, width, height, uint16Max)
	}
	return Dimensions{Width: width, Height: height}, nil
}

// dimensionsFromBytes decodes a 4-byte big-endian NAWS payload.
func dimensionsFromBytes(data []byte) (Dimensions, error) {
	if len(data) != nawsSequenceLength {
		return Dimensions{}, fmt.Errorf("%w: invalid NAWS sequence %q", ErrInvalidOption, data)
	}
	width := int(data[0])<<8 | int(data[1])
	height := int(data[2])<<8 | int(data[3])
	return NewDimensions(width, height)
}

// toBytes encodes d as a 4-byte big-endian NAWS payload.
func (d Dimensions) toBytes() []byte {
	return []byte{
		byte(d.Width >> 8), byte(d.Width),
		byte(d.Height >> 8), byte(d.Height),
	}
}

// NAWS implements the Negotiate About Window Size option (RFC 1073). On the
// client side it announces the local terminal's dimensions; on the server
// side it records what the peer reports and requests the option be enabled
// as soon as the connection is made.
type NAWS struct {
	telnet     *Telnet
	dimensions Dimensions
}

// NewNAWS constructs a NAWS companion and registers its hooks with t.
func NewNAWS(t *Telnet) *NAWS {
	n := &NAWS{telnet: t}
	t.RegisterOption(OptNAWS, OptionHooks{
		OnEnableLocal: func() bool {
			if t.IsClient() {
				debugf("We enable NAWS.")
				return true
			}
			return false
		},
		OnDisableLocal: func() {
			if t.IsClient() {
				debugf("We disable NAWS.")
			}
		},
		OnEnableRemote: func() bool {
			if t.IsServer() {
				debugf("Peer enables NAWS.")
				return true
			}
			return false
		},
		OnDisableRemote: func() {
			if t.IsServer() {
				debugf("Peer disables NAWS.")
			}
		},
		Subnegotiation: n.onNAWS,
	})
	t.OnConnect(func() {
		if t.IsServer() {
			debugf("We ask peer to enable NAWS.")
			t.Do(OptNAWS)
		}
	})
	return n
}

// Dimensions returns the last-known window dimensions.
func (n *NAWS) Dimensions() Dimensions {
	return n.dimensions
}

// SetDimensions updates the local window dimensions. In client mode this
// also sends the new size to the peer.
func (n *NAWS) SetDimensions(d Dimensions) {
	n.dimensions = d
	if n.telnet.IsClient() {
		payload := d.toBytes()
		debugf("Sending NAWS payload: %q.", payload)
		n.telnet.RequestNegotiation(OptNAWS, payload)
	}
}

func (n *NAWS) onNAWS(data []byte) {
	if n.telnet.IsClient() {
		Logger.Printf("naws: received NAWS subnegotiation while running in client mode")
		return
	}
	dimensions, err := dimensionsFromBytes(data)
	if err != nil {
		Logger.Printf("naws: %v", err)
		return
	}
	debugf("Received window size from peer: width = %d, height = %d.", dimensions.Width, dimensions.Height)
	n.dimensions = dimensions
}
