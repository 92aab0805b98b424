package mudproto

// OptionPerspective tracks the negotiation state of a Telnet option on one
// side of the connection. The invariant enabled && negotiating is never
// reachable through the Q-method below; if it is ever observed it indicates
// a bug in the state machine, not caller misuse.
type OptionPerspective struct {
	Enabled     bool
	Negotiating bool
}

// OptionState is the pair of perspectives (ours, the peer's) for a single
// Telnet option byte, created lazily on first reference.
type OptionState struct {
	Us  OptionPerspective
	Him OptionPerspective
}

type telnetState int

const (
	stateData telnetState = iota
	stateCommand
	stateNegotiation
	stateNewline
	stateSubnegotiation
	stateSubnegotiationEscaped
)

// OptionHooks lets a feature handler (Charset, NAWS, GMCP, MCCP, ...)
// participate in Telnet's Q-method and subnegotiation dispatch for one
// option byte, without that handler needing to be part of the Telnet
// state machine itself. This is the Go composition-over-inheritance
// replacement for the Python mix-ins sharing one `self`.
type OptionHooks struct {
	// OnEnableLocal decides whether to accept the peer's request that we
	// (DO) manage this option. Defaults to reject when nil.
	OnEnableLocal func() bool
	// OnDisableLocal runs when a locally-enabled option is turned off.
	OnDisableLocal func()
	// OnEnableRemote decides whether to accept the peer's offer (WILL) to
	// manage this option. Defaults to reject when nil.
	OnEnableRemote func() bool
	// OnDisableRemote runs when a remotely-enabled option is turned off.
	OnDisableRemote func()
	// OnOptionEnabled runs after the option finishes enabling, in either
	// direction.
	OnOptionEnabled func()
	// Subnegotiation handles the payload of IAC SB <option> ... IAC SE.
	Subnegotiation func(data []byte)
}

// Telnet implements the RFC 854 framing and option-negotiation state
// machine described in spec.md §4.1: IAC escaping, CR/LF canonicalization,
// the WILL/WONT/DO/DONT Q-method, and subnegotiation dispatch.
type Telnet struct {
	conn

	state                  telnetState
	appDataBuffer          []byte
	receivedCommandByte    byte
	receivedSubnegotiation []byte
	options                [256]*OptionState
	hooks                  [256]*OptionHooks
	connectHooks           []func()
	lostHooks              []func()
}

// NewTelnet constructs a Telnet handler. It satisfies the constructor
// signature Manager.Register expects.
func NewTelnet(writer Writer, receiver Receiver, isClient bool) *Telnet {
	return &Telnet{conn: newConn(writer, receiver, isClient)}
}

// OnConnect registers f to run when this Telnet's OnConnectionMade fires.
// Companion option handlers (NAWS, GMCP) use this instead of being part of
// the chain themselves, since they have no bytes of their own to process.
func (t *Telnet) OnConnect(f func()) {
	t.connectHooks = append(t.connectHooks, f)
}

// OnDisconnect registers f to run when this Telnet's OnConnectionLost fires.
func (t *Telnet) OnDisconnect(f func()) {
	t.lostHooks = append(t.lostHooks, f)
}

func (t *Telnet) OnConnectionMade() {
	for _, f := range t.connectHooks {
		f()
	}
}

func (t *Telnet) OnConnectionLost() {
	for _, f := range t.lostHooks {
		f()
	}
}

// GetOptionState returns (creating if necessary) the OptionState for an
// option byte. The returned pointer is live: mutating it (only done by the
// Q-method below) is visible to subsequent calls.
func (t *Telnet) GetOptionState(option byte) *OptionState {
	if t.options[option] == nil {
		t.options[option] = &OptionState{}
	}
	return t.options[option]
}

// RegisterOption installs hooks for an option byte. Feature handlers
// (Charset, NAWS, GMCP, MCCP) call this at construction time.
func (t *Telnet) RegisterOption(option byte, hooks OptionHooks) {
	t.hooks[option] = &hooks
}

func (t *Telnet) hooksFor(option byte) *OptionHooks {
	if h := t.hooks[option]; h != nil {
		return h
	}
	return &OptionHooks{}
}

// RequestNegotiation sends IAC SB option escapeIAC(data) IAC SE.
func (t *Telnet) RequestNegotiation(option byte, data []byte) {
	out := make([]byte, 0, len(data)+5)
	out = append(out, cmdIAC, cmdSB, option)
	out = append(out, escapeIAC(data)...)
	out = append(out, cmdIAC, cmdSE)
	t.write(out)
}

func (t *Telnet) sendWill(option byte) { t.write([]byte{cmdIAC, cmdWILL, option}) }
func (t *Telnet) sendWont(option byte) { t.write([]byte{cmdIAC, cmdWONT, option}) }
func (t *Telnet) sendDo(option byte)   { t.write([]byte{cmdIAC, cmdDO, option}) }
func (t *Telnet) sendDont(option byte) { t.write([]byte{cmdIAC, cmdDONT, option}) }

// Will offers to enable a locally-managed option.
func (t *Telnet) Will(option byte) {
	state := t.GetOptionState(option)
	switch {
	case state.Us.Negotiating || state.Him.Negotiating:
		debugf("offering to enable option %s, but it is already being negotiated", describeOption(option))
	case state.Us.Enabled:
		debugf("attempting to enable an already enabled option %s", describeOption(option))
	default:
		state.Us.Negotiating = true
		t.sendWill(option)
	}
}

// Wont offers to disable a locally-managed option.
func (t *Telnet) Wont(option byte) {
	state := t.GetOptionState(option)
	switch {
	case state.Us.Negotiating || state.Him.Negotiating:
		debugf("refusing option %s, but it is already being negotiated", describeOption(option))
	case !state.Us.Enabled:
		debugf("attempting to disable an already disabled option %s", describeOption(option))
	default:
		state.Us.Negotiating = true
		t.sendWont(option)
	}
}

// Do requests that the peer enable a remotely-managed option.
func (t *Telnet) Do(option byte) {
	state := t.GetOptionState(option)
	switch {
	case state.Us.Negotiating || state.Him.Negotiating:
		debugf("requesting peer enable option %s, but it is already being negotiated", describeOption(option))
	case state.Him.Enabled:
		debugf("requesting peer enable an already enabled option %s", describeOption(option))
	default:
		state.Him.Negotiating = true
		t.sendDo(option)
	}
}

// Dont requests that the peer disable a remotely-managed option.
func (t *Telnet) Dont(option byte) {
	state := t.GetOptionState(option)
	switch {
	case state.Us.Negotiating || state.Him.Negotiating:
		debugf("requesting peer disable option %s, but it is already being negotiated", describeOption(option))
	case !state.Him.Enabled:
		debugf("requesting peer disable an already disabled option %s", describeOption(option))
	default:
		state.Him.Negotiating = true
		t.sendDont(option)
	}
}

func (t *Telnet) flushAppData() {
	if len(t.appDataBuffer) > 0 {
		data := t.appDataBuffer
		t.appDataBuffer = nil
		t.receiver(data)
	}
}

// OnDataReceived runs the RFC 854 state machine over data, one byte at a
// time; this is the same processing regardless of chunk boundaries, which is
// what gives the byte-by-byte/bulk-feed equivalence property.
func (t *Telnet) OnDataReceived(data []byte) error {
	for _, b := range data {
		switch t.state {
		case stateData:
			t.processData(b)
		case stateNewline:
			t.processNewline(b)
		case stateCommand:
			if err := t.processCommand(b); err != nil {
				return err
			}
		case stateNegotiation:
			if err := t.processNegotiation(b); err != nil {
				return err
			}
		case stateSubnegotiation:
			t.processSubnegotiation(b)
		case stateSubnegotiationEscaped:
			if err := t.processSubnegotiationEscaped(b); err != nil {
				return err
			}
		}
	}
	t.flushAppData()
	return nil
}

func (t *Telnet) processData(b byte) {
	switch b {
	case cmdIAC:
		t.state = stateCommand
	case charCR:
		t.state = stateNewline
	default:
		t.appDataBuffer = append(t.appDataBuffer, b)
	}
}

func (t *Telnet) processNewline(b byte) {
	t.state = stateData
	switch b {
	case charLF:
		t.appDataBuffer = append(t.appDataBuffer, charLF)
	case charNUL:
		t.appDataBuffer = append(t.appDataBuffer, charCR)
	case cmdIAC:
		t.appDataBuffer = append(t.appDataBuffer, charCR)
		t.state = stateCommand
	default:
		t.appDataBuffer = append(t.appDataBuffer, charCR, b)
	}
}

func (t *Telnet) processCommand(b byte) error {
	switch {
	case b == cmdIAC:
		t.appDataBuffer = append(t.appDataBuffer, cmdIAC)
		t.state = stateData
	case b == cmdSE:
		t.state = stateData
		debugf("IAC SE received outside of subnegotiation")
	case b == cmdSB:
		t.state = stateSubnegotiation
		t.receivedSubnegotiation = t.receivedSubnegotiation[:0]
	case isPlainCommand(b):
		t.state = stateData
		t.flushAppData()
		return t.onCommand(b, nil)
	case isNegotiation(b):
		t.state = stateNegotiation
		t.receivedCommandByte = b
	default:
		t.state = stateData
		debugf("unknown Telnet command received %d", b)
	}
	return nil
}

func (t *Telnet) processNegotiation(b byte) error {
	t.state = stateData
	command := t.receivedCommandByte
	t.receivedCommandByte = 0
	t.flushAppData()
	option := b
	return t.onCommand(command, &option)
}

func (t *Telnet) processSubnegotiation(b byte) {
	if b == cmdIAC {
		t.state = stateSubnegotiationEscaped
	} else {
		t.receivedSubnegotiation = append(t.receivedSubnegotiation, b)
	}
}

func (t *Telnet) processSubnegotiationEscaped(b byte) error {
	if b == cmdSE {
		t.state = stateData
		t.flushAppData()
		payload := t.receivedSubnegotiation
		t.receivedSubnegotiation = nil
		if len(payload) == 0 {
			debugf("empty subnegotiation received")
			return nil
		}
		option, body := payload[0], payload[1:]
		t.onSubnegotiation(option, body)
		return nil
	}
	t.state = stateSubnegotiation
	t.receivedSubnegotiation = append(t.receivedSubnegotiation, b)
	return nil
}

func (t *Telnet) onCommand(command byte, option *byte) error {
	switch command {
	case cmdWILL:
		return t.onWill(option)
	case cmdWONT:
		return t.onWont(option)
	case cmdDO:
		return t.onDo(option)
	case cmdDONT:
		return t.onDont(option)
	default:
		debugf("unhandled Telnet command %d", command)
		return nil
	}
}

func (t *Telnet) onSubnegotiation(option byte, data []byte) {
	if h := t.hooks[option]; h != nil && h.Subnegotiation != nil {
		h.Subnegotiation(data)
		return
	}
	debugf("unhandled subnegotiation for option %s", describeOption(option))
}

func (t *Telnet) onWill(option *byte) error {
	opt := *option
	state := t.GetOptionState(opt)
	hooks := t.hooksFor(opt)
	switch {
	case !state.Him.Enabled && !state.Him.Negotiating:
		if callBool(hooks.OnEnableRemote) {
			state.Him.Enabled = true
			t.sendDo(opt)
			callVoid(hooks.OnOptionEnabled)
		} else {
			t.sendDont(opt)
		}
	case !state.Him.Enabled && state.Him.Negotiating:
		state.Him.Enabled = true
		state.Him.Negotiating = false
		if !callBool(hooks.OnEnableRemote) {
			return ErrInvariantViolation
		}
		callVoid(hooks.OnOptionEnabled)
	case state.Him.Enabled && !state.Him.Negotiating:
		// Peer unilaterally re-offers an already enabled option; ignore.
	default:
		return ErrInvariantViolation
	}
	return nil
}

func (t *Telnet) onWont(option *byte) error {
	opt := *option
	state := t.GetOptionState(opt)
	hooks := t.hooksFor(opt)
	switch {
	case !state.Him.Enabled && !state.Him.Negotiating:
		// Already disabled; ignore.
	case !state.Him.Enabled && state.Him.Negotiating:
		state.Him.Negotiating = false
		debugf("peer refuses to enable option %s", describeOption(opt))
	case state.Him.Enabled && !state.Him.Negotiating:
		state.Him.Enabled = false
		callVoid(hooks.OnDisableRemote)
		t.sendDont(opt)
	default:
		state.Him.Enabled = false
		state.Him.Negotiating = false
		callVoid(hooks.OnDisableRemote)
	}
	return nil
}

func (t *Telnet) onDo(option *byte) error {
	opt := *option
	state := t.GetOptionState(opt)
	hooks := t.hooksFor(opt)
	switch {
	case !state.Us.Enabled && !state.Us.Negotiating:
		if callBool(hooks.OnEnableLocal) {
			state.Us.Enabled = true
			t.sendWill(opt)
			callVoid(hooks.OnOptionEnabled)
		} else {
			t.sendWont(opt)
		}
	case !state.Us.Enabled && state.Us.Negotiating:
		state.Us.Enabled = true
		state.Us.Negotiating = false
		if !callBool(hooks.OnEnableLocal) {
			return ErrInvariantViolation
		}
		callVoid(hooks.OnOptionEnabled)
	case state.Us.Enabled && !state.Us.Negotiating:
		// Peer unilaterally re-requests an already enabled option; ignore.
	default:
		return ErrInvariantViolation
	}
	return nil
}

func (t *Telnet) onDont(option *byte) error {
	opt := *option
	state := t.GetOptionState(opt)
	hooks := t.hooksFor(opt)
	switch {
	case !state.Us.Enabled && !state.Us.Negotiating:
		// Already disabled; ignore.
	case !state.Us.Enabled && state.Us.Negotiating:
		state.Us.Negotiating = false
		debugf("peer rejects our offer to enable option %s", describeOption(opt))
	case state.Us.Enabled && !state.Us.Negotiating:
		state.Us.Enabled = false
		callVoid(hooks.OnDisableLocal)
		t.sendWont(opt)
	default:
		state.Us.Enabled = false
		state.Us.Negotiating = false
		callVoid(hooks.OnDisableLocal)
	}
	return nil
}

func callBool(f func() bool) bool {
	if f == nil {
		return false
	}
	return f()
}

func callVoid(f func()) {
	if f != nil {
		f()
	}
}

// escapeIAC doubles every IAC (0xFF) byte in data, per RFC 854.
func escapeIAC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		out = append(out, b)
		if b == cmdIAC {
			out = append(out, cmdIAC)
		}
	}
	return out
}
