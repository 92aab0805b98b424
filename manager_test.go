package mudproto

import (
	"bytes"
	"errors"
	"testing"
)

func TestManagerBuffersDataUntilConnected(t *testing.T) {
	var received []byte
	m := NewManager(func([]byte) {}, func(data []byte) { received = append(received, data...) }, true, nil)
	m.Parse([]byte("before connect"))
	if len(received) != 0 {
		t.Fatalf("expected nothing received before Connect, got %q", received)
	}

	var telnet *Telnet
	if _, err := m.Register(func(writer Writer, receiver Receiver, isClient bool) Handler {
		telnet = NewTelnet(writer, receiver, isClient)
		return telnet
	}); err != nil {
		t.Fatal(err)
	}
	m.Connect()
	if string(received) != "before connect" {
		t.Fatalf("got %q", received)
	}
}

func TestManagerWritesBufferUntilConnected(t *testing.T) {
	var written []byte
	m := NewManager(func(data []byte) { written = append(written, data...) }, func([]byte) {}, true, nil)
	m.Write([]byte("queued"), false, false)
	if len(written) != 0 {
		t.Fatalf("expected nothing written before Connect, got %q", written)
	}
	if _, err := m.Register(func(writer Writer, receiver Receiver, isClient bool) Handler {
		return NewTelnet(writer, receiver, isClient)
	}); err != nil {
		t.Fatal(err)
	}
	m.Connect()
	if string(written) != "queued" {
		t.Fatalf("got %q", written)
	}
}

func TestManagerRegisterChainsHandlersInOrder(t *testing.T) {
	var received []byte
	m := NewManager(func([]byte) {}, func(data []byte) { received = append(received, data...) }, true, nil)
	if _, err := m.Register(func(writer Writer, receiver Receiver, isClient bool) Handler {
		return NewTelnet(writer, receiver, isClient)
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Register(func(writer Writer, receiver Receiver, isClient bool) Handler {
		return NewMPI(writer, receiver, isClient, NopLauncher{})
	}); err != nil {
		t.Fatal(err)
	}
	m.Connect()
	m.Parse([]byte("game text"))
	if string(received) != "game text" {
		t.Fatalf("got %q", received)
	}
}

func TestManagerRegisterRejectsDuplicateHandlerType(t *testing.T) {
	m := NewManager(func([]byte) {}, func([]byte) {}, true, nil)
	ctor := func(writer Writer, receiver Receiver, isClient bool) Handler {
		return NewTelnet(writer, receiver, isClient)
	}
	if _, err := m.Register(ctor); err != nil {
		t.Fatal(err)
	}
	_, err := m.Register(ctor)
	if !errors.Is(err, ErrHandlerExists) {
		t.Fatalf("got %v, want ErrHandlerExists", err)
	}
}

func TestManagerUnregisterSplicesChain(t *testing.T) {
	var received []byte
	m := NewManager(func([]byte) {}, func(data []byte) { received = append(received, data...) }, true, nil)
	telnetHandler, err := m.Register(func(writer Writer, receiver Receiver, isClient bool) Handler {
		return NewTelnet(writer, receiver, isClient)
	})
	if err != nil {
		t.Fatal(err)
	}
	mpiHandler, err := m.Register(func(writer Writer, receiver Receiver, isClient bool) Handler {
		return NewMPI(writer, receiver, isClient, NopLauncher{})
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Connect()

	if err := m.Unregister(mpiHandler); err != nil {
		t.Fatal(err)
	}
	_ = telnetHandler
	m.Parse([]byte{cmdIAC, cmdIAC})
	if !bytes.Equal(received, []byte{cmdIAC}) {
		t.Fatalf("expected telnet's output to reach the app callback directly, got %v", received)
	}
}

func TestManagerUnregisterUnknownHandlerFails(t *testing.T) {
	m := NewManager(func([]byte) {}, func([]byte) {}, true, nil)
	telnet := NewTelnet(func([]byte) {}, func([]byte) {}, true)
	err := m.Unregister(telnet)
	if !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("got %v, want ErrHandlerNotFound", err)
	}
}

func TestManagerWriteEscapesAndCanonicalizes(t *testing.T) {
	var written []byte
	m := NewManager(func(data []byte) { written = append(written, data...) }, func([]byte) {}, true, nil)
	if _, err := m.Register(func(writer Writer, receiver Receiver, isClient bool) Handler {
		return NewTelnet(writer, receiver, isClient)
	}); err != nil {
		t.Fatal(err)
	}
	m.Connect()
	m.Write([]byte{'a', cmdIAC, 'b', charLF}, true, false)
	want := []byte{'a', cmdIAC, cmdIAC, 'b', charCR, charLF}
	if !bytes.Equal(written, want) {
		t.Fatalf("got %v, want %v", written, want)
	}
}

func TestManagerWriteEscapeDoesNotCollapseExistingCRLF(t *testing.T) {
	var written []byte
	m := NewManager(func(data []byte) { written = append(written, data...) }, func([]byte) {}, true, nil)
	if _, err := m.Register(func(writer Writer, receiver Receiver, isClient bool) Handler {
		return NewTelnet(writer, receiver, isClient)
	}); err != nil {
		t.Fatal(err)
	}
	m.Connect()
	m.Write([]byte{'a', charCR, charLF, 'b'}, true, false)
	want := []byte{'a', charCR, charNUL, charCR, charLF, 'b'}
	if !bytes.Equal(written, want) {
		t.Fatalf("got %v, want %v", written, want)
	}
}

func TestManagerWritePrompt(t *testing.T) {
	var written []byte
	m := NewManager(func(data []byte) { written = append(written, data...) }, func([]byte) {}, true, nil)
	if _, err := m.Register(func(writer Writer, receiver Receiver, isClient bool) Handler {
		return NewTelnet(writer, receiver, isClient)
	}); err != nil {
		t.Fatal(err)
	}
	m.Connect()
	m.Write([]byte("prompt"), false, true)
	want := append([]byte("prompt"), cmdIAC, cmdGA)
	if !bytes.Equal(written, want) {
		t.Fatalf("got %v, want %v", written, want)
	}
}
