package mudproto

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

var mccpEnabledResponses = [][]byte{
	{cmdIAC, cmdSB, OptMCCP1, cmdWILL, cmdSE},
	{cmdIAC, cmdSB, OptMCCP2, cmdIAC, cmdSE},
}

// MCCP implements the MUD Client Compression Protocol. It is positioned
// before Telnet in the handler chain: it inspects raw incoming bytes
// looking only for the MCCP1/MCCP2 compression-enabled sentinels, forwards
// everything else untouched, and once compression is enabled transparently
// decompresses the zlib stream before forwarding.
//
// compress/zlib cannot pause and resume a partially-fed deflate stream the
// way Python's zlib.decompressobj can, so instead of keeping a live
// decompressor across calls this re-runs decompression from the start of
// the accumulated compressed buffer on every call. Using a bytes.Reader
// (which satisfies io.ByteReader) as the source keeps flate from reading
// past the end of the deflate stream, so the reader's remaining length
// after a clean EOF is exactly the server's unused_data.
type MCCP struct {
	conn

	telnet *Telnet

	rawBuffer []byte

	version       int // 0 = none, 1 or 2
	compressed    bool
	compressedBuf []byte
	totalEmitted  int
}

// NewMCCP constructs an MCCP handler sitting before t in the chain and
// registers its Q-method hooks with t.
func NewMCCP(writer Writer, receiver Receiver, isClient bool, t *Telnet) *MCCP {
	m := &MCCP{conn: newConn(writer, receiver, isClient), telnet: t}
	onDisable := func() {
		debugf("MCCP negotiation disabled.")
		m.disable()
	}
	t.RegisterOption(OptMCCP1, OptionHooks{
		OnEnableRemote:  func() bool { return m.onEnableRemote(1) },
		OnDisableRemote: onDisable,
	})
	t.RegisterOption(OptMCCP2, OptionHooks{
		OnEnableRemote:  func() bool { return m.onEnableRemote(2) },
		OnDisableRemote: onDisable,
	})
	return m
}

// onEnableRemote allows MCCP1 only if MCCP2 was not previously negotiated,
// and vice versa.
func (m *MCCP) onEnableRemote(version int) bool {
	if m.version != 0 {
		return false
	}
	debugf("MCCP%d negotiation enabled.", version)
	m.version = version
	return true
}

// Disable turns off compression; this is the MCCP1/2 equivalent of
// disable_mccp in the original implementation, exposed so callers can force
// a reset.
func (m *MCCP) Disable() {
	m.disable()
}

func (m *MCCP) disable() {
	m.version = 0
	m.compressed = false
	m.compressedBuf = nil
	m.totalEmitted = 0
}

// optionByte returns the Telnet option byte for whichever MCCP version is
// currently active.
func (m *MCCP) optionByte() byte {
	if m.version == 1 {
		return OptMCCP1
	}
	return OptMCCP2
}

func (m *MCCP) OnConnectionMade() {}
func (m *MCCP) OnConnectionLost() {}

// OnDataReceived implements Handler. It is the entry point for all bytes
// coming from the transport, before Telnet ever sees them.
func (m *MCCP) OnDataReceived(data []byte) error {
	m.rawBuffer = append(m.rawBuffer, data...)
	for len(m.rawBuffer) > 0 {
		if m.compressed {
			done, err := m.decompressStep()
			if err != nil {
				return err
			}
			if done {
				continue
			}
			return nil
		}
		if !m.scanStep() {
			return nil
		}
	}
	return nil
}

// scanStep looks for the MCCP enable sentinel in the uncompressed portion
// of the buffer, forwarding everything it does not need to inspect further.
// It returns false when the buffer has been fully drained or only contains
// a sequence it must wait for more bytes to complete.
func (m *MCCP) scanStep() bool {
	buf := m.rawBuffer
	iacIndex := bytes.IndexByte(buf, cmdIAC)
	if m.version == 0 || iacIndex == -1 {
		m.forward(buf)
		m.rawBuffer = nil
		return false
	}
	if iacIndex > 0 {
		m.forward(buf[:iacIndex])
		m.rawBuffer = buf[iacIndex:]
		return true
	}
	if len(buf) == 1 {
		// Partial IAC sequence; wait for more.
		return false
	}
	if buf[1] == cmdSB {
		seIndex := bytes.IndexByte(buf, cmdSE)
		if seIndex == -1 {
			// Partial subnegotiation; wait for more.
			return false
		}
		if matchesAny(buf, mccpEnabledResponses) {
			m.enableCompression()
		} else {
			m.forward(buf[:seIndex+1])
		}
		m.rawBuffer = buf[seIndex+1:]
		return true
	}
	if len(buf) < 2 {
		return false
	}
	m.forward(buf[:2])
	m.rawBuffer = buf[2:]
	return true
}

func matchesAny(buf []byte, prefixes [][]byte) bool {
	for _, p := range prefixes {
		if bytes.HasPrefix(buf, p) {
			return true
		}
	}
	return false
}

func (m *MCCP) enableCompression() {
	m.compressed = true
	m.compressedBuf = nil
	m.totalEmitted = 0
	debugf("Peer notifies us that subsequent data will be compressed.")
}

// decompressStep moves whatever compressed bytes are pending in rawBuffer
// into compressedBuf and attempts a full re-decompression. It returns
// done=true when the stream ended and any unused tail should be reprocessed
// as uncompressed data in a further loop iteration.
func (m *MCCP) decompressStep() (bool, error) {
	m.compressedBuf = append(m.compressedBuf, m.rawBuffer...)
	m.rawBuffer = nil

	reader := bytes.NewReader(m.compressedBuf)
	zr, err := zlib.NewReader(reader)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	output, readErr := io.ReadAll(zr)
	if len(output) > m.totalEmitted {
		m.forward(output[m.totalEmitted:])
		m.totalEmitted = len(output)
	}
	switch {
	case readErr == nil:
		unusedTail := m.compressedBuf[len(m.compressedBuf)-reader.Len():]
		debugf("received uncompressed data while compression enabled. Disabling compression.")
		state := m.telnet.GetOptionState(m.optionByte())
		state.Him.Enabled = false
		state.Him.Negotiating = false
		m.disable()
		m.rawBuffer = unusedTail
		return true, nil
	case readErr == io.ErrUnexpectedEOF || readErr == io.EOF:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrDecompression, readErr)
	}
}

func (m *MCCP) forward(data []byte) {
	if len(data) == 0 {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.receiver(cp)
}
