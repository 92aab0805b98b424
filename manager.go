package mudproto

import (
	"bytes"
	"fmt"
	"reflect"
)

// HandlerConstructor builds a Handler given the writer/receiver callbacks
// and client/server role the Manager assigns it. Manager.Register accepts
// one of these instead of a class+kwargs pair (there being no Go analogue
// of Python's reflective instantiation), so callers that need the
// constructed instance back (to wire it into a companion type, or to keep
// a typed reference) get it as Register's return value.
type HandlerConstructor func(writer Writer, receiver Receiver, isClient bool) Handler

// Manager owns the linear chain of protocol Handlers a session is built
// from, splicing each newly registered handler onto the end of the chain
// and rewiring receivers so each handler's output feeds the next.
type Manager struct {
	writer           Writer
	receiver         Receiver
	isClient         bool
	promptTerminator []byte

	readBuffer  []byte
	writeBuffer []byte
	handlers    []Handler
	isConnected bool
}

// NewManager constructs a Manager. writer sends bytes to the transport;
// receiver is called with fully-processed bytes the last handler in the
// chain produced. promptTerminator, if nil, defaults to IAC GA; otherwise
// it is normalized so a terminator spelled with ordinary "\r\n" ends up
// byte-identical to what the wire format expects.
func NewManager(writer Writer, receiver Receiver, isClient bool, promptTerminator []byte) *Manager {
	m := &Manager{writer: writer, receiver: receiver, isClient: isClient}
	if promptTerminator == nil {
		m.promptTerminator = []byte{cmdIAC, cmdGA}
	} else {
		m.promptTerminator = normalizeTerminator(promptTerminator)
	}
	return m
}

// normalizeTerminator maps a terminator spelled with ordinary line endings
// onto the wire format: CRLF -> LF, CR NUL -> CR, (remaining) CR -> CR NUL,
// (remaining) LF -> CR LF. It is only used to accept a caller-supplied
// promptTerminator in whatever spelling is convenient; Write's escape path
// uses escapeLineEndings instead, which has no such normalization step.
func normalizeTerminator(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte{charCR, charLF}, []byte{charLF})
	data = bytes.ReplaceAll(data, []byte{charCR, charNUL}, []byte{charCR})
	data = bytes.ReplaceAll(data, []byte{charCR}, []byte{charCR, charNUL})
	data = bytes.ReplaceAll(data, []byte{charLF}, []byte{charCR, charLF})
	return data
}

// escapeLineEndings applies the two replacements spec.md's escape flag
// calls for: bare CR becomes CR NUL, bare LF becomes CR LF. Unlike
// normalizeTerminator, it does not first collapse existing CRLF/CRNUL
// pairs, so a literal "\r\n" in data becomes CR NUL CR LF, not a no-op.
func escapeLineEndings(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte{charCR}, []byte{charCR, charNUL})
	data = bytes.ReplaceAll(data, []byte{charLF}, []byte{charCR, charLF})
	return data
}

// IsClient reports whether this session is acting as a client.
func (m *Manager) IsClient() bool { return m.isClient }

// IsServer reports whether this session is acting as a server.
func (m *Manager) IsServer() bool { return !m.isClient }

// IsConnected reports whether Connect has been called without a matching
// Disconnect.
func (m *Manager) IsConnected() bool { return m.isConnected }

// Connect signals that the peer is connected: it flushes any data that
// arrived or was queued to write before the first handler existed.
func (m *Manager) Connect() {
	if m.isConnected {
		return
	}
	m.isConnected = true
	if len(m.readBuffer) > 0 {
		data := m.readBuffer
		m.readBuffer = nil
		m.Parse(data)
	}
	if len(m.writeBuffer) > 0 {
		data := m.writeBuffer
		m.writeBuffer = nil
		m.Write(data, false, false)
	}
}

// Disconnect signals that the peer has disconnected, unregistering every
// handler in the chain (innermost first) along the way.
func (m *Manager) Disconnect() {
	if !m.isConnected {
		return
	}
	for len(m.handlers) > 0 {
		_ = m.Unregister(m.handlers[0])
	}
	m.isConnected = false
}

// Parse feeds data from the peer into the first handler in the chain. If
// the Manager isn't connected yet, or has no handlers, data is buffered
// until Connect is called or a handler is registered.
func (m *Manager) Parse(data []byte) {
	if !m.isConnected || len(m.handlers) == 0 {
		m.readBuffer = append(m.readBuffer, data...)
		return
	}
	if len(m.readBuffer) > 0 {
		data = append(m.readBuffer, data...)
		m.readBuffer = nil
	}
	if len(data) > 0 {
		if err := m.handlers[0].OnDataReceived(data); err != nil {
			Logger.Printf("manager: fatal error from handler chain: %v", err)
		}
	}
}

// Write sends data toward the peer. If escape is true, IAC bytes are
// doubled and bare CR/LF are escaped to CR NUL/CR LF. If prompt is true,
// the Manager's prompt terminator is appended after that.
func (m *Manager) Write(data []byte, escape, prompt bool) {
	if escape {
		data = escapeLineEndings(escapeIAC(data))
	}
	if prompt {
		data = append(data, m.promptTerminator...)
	}
	if !m.isConnected || len(m.handlers) == 0 {
		m.writeBuffer = append(m.writeBuffer, data...)
		return
	}
	if len(m.writeBuffer) > 0 {
		data = append(m.writeBuffer, data...)
		m.writeBuffer = nil
	}
	if len(data) > 0 {
		m.writer(data)
	}
}

// Register constructs a handler via ctor, appends it to the end of the
// chain, and rewires the previous tail's receiver to feed it. The
// constructed Handler is returned so the caller can retain a typed
// reference (to pass into a companion type's constructor, for instance).
func (m *Manager) Register(ctor HandlerConstructor) (Handler, error) {
	writer := func(data []byte) { m.Write(data, false, false) }
	instance := ctor(writer, m.receiver, m.isClient)
	instanceType := reflect.TypeOf(instance)
	for _, h := range m.handlers {
		if reflect.TypeOf(h) == instanceType {
			return nil, fmt.Errorf("%w: %s", ErrHandlerExists, instanceType)
		}
	}
	if len(m.handlers) > 0 {
		if settable, ok := m.handlers[len(m.handlers)-1].(receiverSetter); ok {
			settable.setReceiver(instance.OnDataReceived)
		}
	}
	m.handlers = append(m.handlers, instance)
	instance.OnConnectionMade()
	return instance, nil
}

// receiverSetter is implemented by handlers built on the conn base type,
// letting Manager rewire a handler's downstream receiver without knowing
// its concrete type.
type receiverSetter interface {
	setReceiver(r Receiver)
}

// Unregister removes instance from the chain, rewiring its predecessor's
// receiver (if any) to whatever instance was forwarding to, and calls
// OnConnectionLost. It returns ErrHandlerNotFound if instance is not part
// of the chain.
func (m *Manager) Unregister(instance Handler) error {
	index := -1
	for i, h := range m.handlers {
		if h == instance {
			index = i
			break
		}
	}
	if index == -1 {
		return fmt.Errorf("%w", ErrHandlerNotFound)
	}
	m.handlers = append(m.handlers[:index], m.handlers[index+1:]...)
	if index > 0 {
		if settable, ok := m.handlers[index-1].(receiverSetter); ok {
			if getter, ok := instance.(receiverGetter); ok {
				settable.setReceiver(getter.getReceiver())
			}
		}
	}
	instance.OnConnectionLost()
	return nil
}

// receiverGetter exposes a handler's current downstream receiver, needed
// by Unregister to splice the chain back together.
type receiverGetter interface {
	getReceiver() Receiver
}
