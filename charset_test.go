package mudproto

import (
	"bytes"
	"testing"
)

func newTestCharset(isClient bool) (*Charset, *Telnet) {
	telnet := NewTelnet(func([]byte) {}, func([]byte) {}, isClient)
	return NewCharset(telnet), telnet
}

func TestCharsetDefaultsToUSASCII(t *testing.T) {
	c, _ := newTestCharset(true)
	if c.Charset() != "US-ASCII" {
		t.Fatalf("got %q", c.Charset())
	}
}

func TestParseSupportedCharsetsSplitsAndDedupes(t *testing.T) {
	response := []byte(";UTF-8;utf8;US-ASCII")
	got := ParseSupportedCharsets(response)
	var names []string
	for _, item := range got {
		names = append(names, string(item))
	}
	want := []string{"UTF-8", "US-ASCII"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestParseSupportedCharsetsIgnoresUnknownCodecs(t *testing.T) {
	got := ParseSupportedCharsets([]byte(";NOT-A-REAL-CHARSET"))
	if len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestCharsetRequestTriggersNegotiation(t *testing.T) {
	var sent []byte
	telnet := NewTelnet(func(data []byte) { sent = append(sent, data...) }, func([]byte) {}, true)
	NewCharset(telnet)
	payload := append([]byte{charsetRequest}, ';')
	payload = append(payload, []byte("US-ASCII")...)
	input := append([]byte{cmdIAC, cmdSB, OptCharset}, payload...)
	input = append(input, cmdIAC, cmdSE)
	if err := telnet.OnDataReceived(input); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(sent, []byte("US-ASCII")) {
		t.Fatalf("expected a negotiation offering US-ASCII, got %v", sent)
	}
}

func TestCharsetAcceptedUpdatesCurrent(t *testing.T) {
	telnet := NewTelnet(func([]byte) {}, func([]byte) {}, true)
	c := NewCharset(telnet)
	input := append([]byte{cmdIAC, cmdSB, OptCharset, charsetAccepted}, []byte("UTF-8")...)
	input = append(input, cmdIAC, cmdSE)
	if err := telnet.OnDataReceived(input); err != nil {
		t.Fatal(err)
	}
	if c.Charset() != "UTF-8" {
		t.Fatalf("got %q", c.Charset())
	}
}
