package mudproto

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// mpiInit is the MPI session-start sentinel.
var mpiInit = []byte("~$#E")

type mpiState int

const (
	mpiStateData mpiState = iota
	mpiStateNewline
	mpiStateInit
	mpiStateCommand
	mpiStateLength
	mpiStateBody
)

// EditSession is the payload of an MPI "E" (edit) command, split the way
// the MUME server sends it: a session token the reply must echo back, a
// human-readable description, and the body text to edit.
type EditSession struct {
	Session     string
	Description string
	Body        string
}

// Launcher resolves the out-of-band "let the user edit/view this text"
// step MPI requests: actually invoking an editor or pager and collecting
// the result is the caller's concern (file I/O, process spawning, and
// word-wrap cosmetics are intentionally outside this package's scope).
// Edit returns the edited text and whether the session was canceled;
// View has no reply to send back.
type Launcher interface {
	Edit(session EditSession) (body string, canceled bool)
	View(body string)
}

// NopLauncher implements Launcher by immediately canceling every edit
// session and discarding every view request. It is a reasonable default
// for callers that do not support remote editing.
type NopLauncher struct{}

func (NopLauncher) Edit(session EditSession) (string, bool) { return "", true }
func (NopLauncher) View(string)                             {}

// MPI implements the MUME remote-editing protocol: framing edit/view
// requests off the wire, handing their bodies to a Launcher, and framing
// the Launcher's response back onto the wire. Edit/view sessions run on
// their own goroutine, tracked with an errgroup so OnConnectionLost can
// wait for in-flight sessions to finish.
type MPI struct {
	conn

	launcher Launcher
	group    errgroup.Group

	state   mpiState
	appData []byte
	buffer  []byte
	command byte
	length  int
}

// NewMPI constructs an MPI handler. launcher may be nil, in which case
// NopLauncher is used.
func NewMPI(writer Writer, receiver Receiver, isClient bool, launcher Launcher) *MPI {
	if launcher == nil {
		launcher = NopLauncher{}
	}
	return &MPI{conn: newConn(writer, receiver, isClient), launcher: launcher}
}

// OnConnectionMade identifies this client for MUME remote editing.
func (m *MPI) OnConnectionMade() {
	m.write(append(append([]byte{}, mpiInit...), 'I', charLF))
}

// OnConnectionLost waits for any in-flight edit/view sessions to finish.
func (m *MPI) OnConnectionLost() {
	_ = m.group.Wait()
}

// OnDataReceived runs the MPI framing state machine over data.
func (m *MPI) OnDataReceived(data []byte) error {
	for len(data) > 0 {
		switch m.state {
		case mpiStateData:
			data = m.stepData(data)
		case mpiStateNewline:
			data = m.stepNewline(data)
		case mpiStateInit:
			data = m.stepInit(data)
		case mpiStateCommand:
			data = m.stepCommand(data)
		case mpiStateLength:
			data = m.stepLength(data)
		case mpiStateBody:
			data = m.stepBody(data)
		}
	}
	m.flush()
	return nil
}

func (m *MPI) flush() {
	if len(m.appData) > 0 {
		data := m.appData
		m.appData = nil
		m.receiver(data)
	}
}

func (m *MPI) stepData(data []byte) []byte {
	idx := bytes.IndexByte(data, charLF)
	if idx == -1 {
		m.appData = append(m.appData, data...)
		return nil
	}
	m.appData = append(m.appData, data[:idx+1]...)
	m.state = mpiStateNewline
	return data[idx+1:]
}

func (m *MPI) stepNewline(data []byte) []byte {
	probe := data
	if len(probe) > len(mpiInit) {
		probe = probe[:len(mpiInit)]
	}
	if bytes.HasPrefix(mpiInit, probe) {
		m.state = mpiStateInit
	} else {
		m.state = mpiStateData
	}
	return data
}

func (m *MPI) stepInit(data []byte) []byte {
	remaining := len(mpiInit) - len(m.buffer)
	n := remaining
	if n > len(data) {
		n = len(data)
	}
	m.buffer = append(m.buffer, data[:n]...)
	data = data[n:]
	if bytes.Equal(m.buffer, mpiInit) {
		m.flush()
		m.buffer = nil
		m.state = mpiStateCommand
	} else if !bytes.HasPrefix(mpiInit, m.buffer) {
		data = append(append([]byte{}, m.buffer...), data...)
		m.buffer = nil
		m.state = mpiStateData
	}
	return data
}

func (m *MPI) stepCommand(data []byte) []byte {
	m.command = data[0]
	m.state = mpiStateLength
	return data[1:]
}

func (m *MPI) stepLength(data []byte) []byte {
	idx := bytes.IndexByte(data, charLF)
	var lengthBytes, rest []byte
	if idx == -1 {
		lengthBytes, rest = data, nil
	} else {
		lengthBytes, rest = data[:idx], data[idx+1:]
	}
	m.buffer = append(m.buffer, lengthBytes...)
	if !isAllDigits(m.buffer) {
		Logger.Printf("mpi: invalid data %q in MPI length, digit expected", m.buffer)
		rebuilt := append(append([]byte{}, mpiInit...), m.command)
		rebuilt = append(rebuilt, m.buffer...)
		if idx != -1 {
			rebuilt = append(rebuilt, charLF)
		}
		rebuilt = append(rebuilt, rest...)
		m.buffer = nil
		m.state = mpiStateData
		return rebuilt
	}
	if idx == -1 {
		return nil
	}
	length, err := strconv.Atoi(string(m.buffer))
	if err != nil {
		Logger.Printf("mpi: invalid MPI length %q", m.buffer)
		m.buffer = nil
		m.state = mpiStateData
		return rest
	}
	m.length = length
	m.buffer = nil
	m.state = mpiStateBody
	return rest
}

func (m *MPI) stepBody(data []byte) []byte {
	remaining := m.length - len(m.buffer)
	n := remaining
	if n > len(data) {
		n = len(data)
	}
	m.buffer = append(m.buffer, data[:n]...)
	data = data[n:]
	if len(m.buffer) == m.length {
		command, body := m.command, m.buffer
		m.buffer = nil
		m.state = mpiStateData
		m.onCommand(command, body)
	}
	return data
}

func isAllDigits(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (m *MPI) onCommand(command byte, data []byte) {
	switch command {
	case 'E':
		m.group.Go(func() error { m.runEdit(data); return nil })
	case 'V':
		m.group.Go(func() error { m.runView(data); return nil })
	default:
		Logger.Printf("mpi: invalid MPI command %q", command)
		m.onUnhandledCommand(command, data)
	}
}

func (m *MPI) onUnhandledCommand(command byte, data []byte) {
	out := append(append([]byte{}, mpiInit...), command)
	out = append(out, []byte(strconv.Itoa(len(data)))...)
	out = append(out, charLF)
	out = append(out, data...)
	m.receiver(out)
}

func (m *MPI) runEdit(data []byte) {
	text := decodeLatin1Fallback(data)
	if len(text) > 0 {
		text = text[1:]
	}
	parts := strings.SplitN(text, "\n", 3)
	session := EditSession{}
	if len(parts) > 0 {
		session.Session = parts[0]
	}
	if len(parts) > 1 {
		session.Description = parts[1]
	}
	if len(parts) > 2 {
		session.Body = parts[2]
	}
	body, canceled := m.launcher.Edit(session)
	var response string
	if canceled {
		response = fmt.Sprintf("C%s\n", session.Session)
	} else {
		response = fmt.Sprintf("E%s\n%s\n", session.Session, strings.TrimSpace(body))
	}
	output := bytes.ReplaceAll(encodeLatin1Fallback(response), []byte{charCR}, nil)
	frame := append([]byte{}, mpiInit...)
	frame = append(frame, 'E')
	frame = append(frame, []byte(strconv.Itoa(len(output)))...)
	frame = append(frame, charLF)
	frame = append(frame, output...)
	m.write(frame)
}

func (m *MPI) runView(data []byte) {
	m.launcher.View(decodeLatin1Fallback(data))
}
