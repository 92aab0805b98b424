package mudproto

// Writer is called by a handler (or the Manager) to push bytes toward the
// peer. It is always, ultimately, manager.Write.
type Writer func(data []byte)

// Receiver is called by a handler with bytes it has decoded; it is wired to
// the next handler's OnDataReceived, or to the application's terminal
// callback for the last handler in the chain.
type Receiver func(data []byte)

// Handler is the contract every protocol layer in the chain implements. It
// mirrors the original ConnectionInterface: a handler owns no transport of
// its own, only the writer/receiver callbacks given to it at construction.
type Handler interface {
	// OnConnectionMade is invoked once, when Manager.Register adds this
	// handler to the chain (whether or not Connect has been called yet).
	OnConnectionMade()

	// OnConnectionLost is invoked once, when the handler is unregistered or
	// the Manager disconnects. Implementations release any resources here
	// (join worker goroutines, free decompressor state).
	OnConnectionLost()

	// OnDataReceived is invoked with bytes from the previous layer (or the
	// transport, for the first handler in the chain). A non-nil error is
	// fatal for the session (see the error-handling design in DESIGN.md);
	// recoverable anomalies are logged internally and do not return an
	// error.
	OnDataReceived(data []byte) error
}

// conn is the embeddable base every Handler implementation uses to satisfy
// the "holds a writer and a receiver callback plus a client/server role
// flag" part of the contract. it is analogous to connection.py's
// ConnectionInterface.__init__.
type conn struct {
	writer   Writer
	receiver Receiver
	isClient bool
}

func newConn(writer Writer, receiver Receiver, isClient bool) conn {
	return conn{writer: writer, receiver: receiver, isClient: isClient}
}

// IsClient reports whether this handler is operating in client role.
func (c *conn) IsClient() bool { return c.isClient }

// IsServer reports whether this handler is operating in server role.
func (c *conn) IsServer() bool { return !c.isClient }

// write pushes data toward the peer via the writer this handler was
// constructed with.
func (c *conn) write(data []byte) {
	c.writer(data)
}

// setReceiver rewires this handler's downstream receiver; used by Manager
// when splicing a new handler into or out of the chain.
func (c *conn) setReceiver(r Receiver) {
	c.receiver = r
}

// getReceiver returns this handler's current downstream receiver; used by
// Manager when unregistering a handler from the middle of the chain.
func (c *conn) getReceiver() Receiver {
	return c.receiver
}
