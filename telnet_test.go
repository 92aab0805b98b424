package mudproto

import (
	"bytes"
	"testing"
)

func newTestTelnet(isClient bool) (*Telnet, *[]byte, *[]byte) {
	var written, received []byte
	writer := func(data []byte) { written = append(written, data...) }
	receiver := func(data []byte) { received = append(received, data...) }
	return NewTelnet(writer, receiver, isClient), &written, &received
}

func TestTelnetPassesThroughPlainData(t *testing.T) {
	telnet, _, received := newTestTelnet(true)
	if err := telnet.OnDataReceived([]byte("hello world")); err != nil {
		t.Fatal(err)
	}
	if string(*received) != "hello world" {
		t.Fatalf("got %q", *received)
	}
}

func TestTelnetEscapesDoubledIAC(t *testing.T) {
	telnet, _, received := newTestTelnet(true)
	if err := telnet.OnDataReceived([]byte{'a', cmdIAC, cmdIAC, 'b'}); err != nil {
		t.Fatal(err)
	}
	want := []byte{'a', cmdIAC, 'b'}
	if !bytes.Equal(*received, want) {
		t.Fatalf("got %v, want %v", *received, want)
	}
}

func TestTelnetCanonicalizesCRLF(t *testing.T) {
	telnet, _, received := newTestTelnet(true)
	if err := telnet.OnDataReceived([]byte{'a', charCR, charLF, 'b', charCR, charNUL, 'c'}); err != nil {
		t.Fatal(err)
	}
	want := []byte{'a', charLF, 'b', charCR, 'c'}
	if !bytes.Equal(*received, want) {
		t.Fatalf("got %v, want %v", *received, want)
	}
}

func TestTelnetByteByByteMatchesBulkFeed(t *testing.T) {
	input := []byte{'x', cmdIAC, cmdWILL, OptEcho, 'y', charCR, charLF, 'z'}

	bulk, _, bulkReceived := newTestTelnet(true)
	bulk.RegisterOption(OptEcho, OptionHooks{OnEnableRemote: func() bool { return true }})
	if err := bulk.OnDataReceived(input); err != nil {
		t.Fatal(err)
	}

	perByte, _, perByteReceived := newTestTelnet(true)
	perByte.RegisterOption(OptEcho, OptionHooks{OnEnableRemote: func() bool { return true }})
	for _, b := range input {
		if err := perByte.OnDataReceived([]byte{b}); err != nil {
			t.Fatal(err)
		}
	}

	if !bytes.Equal(*bulkReceived, *perByteReceived) {
		t.Fatalf("bulk %v != per-byte %v", *bulkReceived, *perByteReceived)
	}
}

func TestTelnetWillAcceptedSendsDoAndEnables(t *testing.T) {
	telnet, written, _ := newTestTelnet(true)
	enabled := false
	telnet.RegisterOption(OptEcho, OptionHooks{
		OnEnableRemote: func() bool { return true },
		OnOptionEnabled: func() {
			enabled = true
		},
	})
	if err := telnet.OnDataReceived([]byte{cmdIAC, cmdWILL, OptEcho}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(*written, []byte{cmdIAC, cmdDO, OptEcho}) {
		t.Fatalf("got %v", *written)
	}
	if !enabled {
		t.Fatal("expected OnOptionEnabled to fire")
	}
	if !telnet.GetOptionState(OptEcho).Him.Enabled {
		t.Fatal("expected option to be enabled")
	}
}

func TestTelnetWillRejectedSendsDont(t *testing.T) {
	telnet, written, _ := newTestTelnet(true)
	telnet.RegisterOption(OptEcho, OptionHooks{OnEnableRemote: func() bool { return false }})
	if err := telnet.OnDataReceived([]byte{cmdIAC, cmdWILL, OptEcho}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(*written, []byte{cmdIAC, cmdDONT, OptEcho}) {
		t.Fatalf("got %v", *written)
	}
}

func TestTelnetUnsolicitedWontIsIgnoredWhenAlreadyDisabled(t *testing.T) {
	telnet, written, _ := newTestTelnet(true)
	if err := telnet.OnDataReceived([]byte{cmdIAC, cmdWONT, OptEcho}); err != nil {
		t.Fatal(err)
	}
	if len(*written) != 0 {
		t.Fatalf("expected no reply, got %v", *written)
	}
}

func TestTelnetSubnegotiationDispatch(t *testing.T) {
	telnet, _, _ := newTestTelnet(true)
	var gotPayload []byte
	telnet.RegisterOption(OptCharset, OptionHooks{Subnegotiation: func(data []byte) { gotPayload = data }})
	input := append([]byte{cmdIAC, cmdSB, OptCharset}, []byte("payload")...)
	input = append(input, cmdIAC, cmdSE)
	if err := telnet.OnDataReceived(input); err != nil {
		t.Fatal(err)
	}
	if string(gotPayload) != "payload" {
		t.Fatalf("got %q", gotPayload)
	}
}

func TestTelnetSubnegotiationUnescapesDoubledIAC(t *testing.T) {
	telnet, _, _ := newTestTelnet(true)
	var gotPayload []byte
	telnet.RegisterOption(OptCharset, OptionHooks{Subnegotiation: func(data []byte) { gotPayload = data }})
	input := []byte{cmdIAC, cmdSB, OptCharset, 'a', cmdIAC, cmdIAC, 'b', cmdIAC, cmdSE}
	if err := telnet.OnDataReceived(input); err != nil {
		t.Fatal(err)
	}
	want := []byte{'a', cmdIAC, 'b'}
	if !bytes.Equal(gotPayload, want) {
		t.Fatalf("got %v, want %v", gotPayload, want)
	}
}

func TestTelnetWillIgnoresAlreadyEnabledReoffer(t *testing.T) {
	telnet, written, _ := newTestTelnet(true)
	telnet.RegisterOption(OptEcho, OptionHooks{OnEnableRemote: func() bool { return true }})
	if err := telnet.OnDataReceived([]byte{cmdIAC, cmdWILL, OptEcho}); err != nil {
		t.Fatal(err)
	}
	*written = nil
	if err := telnet.OnDataReceived([]byte{cmdIAC, cmdWILL, OptEcho}); err != nil {
		t.Fatal(err)
	}
	if len(*written) != 0 {
		t.Fatalf("expected no reply to redundant WILL, got %v", *written)
	}
}

func TestTelnetDoRequestsEnableAndSendsWill(t *testing.T) {
	telnet, written, _ := newTestTelnet(true)
	telnet.RegisterOption(OptNAWS, OptionHooks{OnEnableLocal: func() bool { return true }})
	if err := telnet.OnDataReceived([]byte{cmdIAC, cmdDO, OptNAWS}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(*written, []byte{cmdIAC, cmdWILL, OptNAWS}) {
		t.Fatalf("got %v", *written)
	}
}

func TestEscapeIACDoublesOnlyIAC(t *testing.T) {
	got := escapeIAC([]byte{'a', cmdIAC, 'b'})
	want := []byte{'a', cmdIAC, cmdIAC, 'b'}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
