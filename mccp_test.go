package mudproto

import (
	"bytes"
	"compress/zlib"
	"testing"
)

func newTestMCCP(isClient bool) (*MCCP, *Telnet, *[]byte) {
	var received []byte
	telnet := NewTelnet(func([]byte) {}, func([]byte) {}, isClient)
	mccp := NewMCCP(func([]byte) {}, func(data []byte) { received = append(received, data...) }, isClient, telnet)
	return mccp, telnet, &received
}

func TestMCCPForwardsPlainDataUntouched(t *testing.T) {
	mccp, _, received := newTestMCCP(true)
	if err := mccp.OnDataReceived([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if string(*received) != "hello" {
		t.Fatalf("got %q", *received)
	}
}

func TestMCCPEnablesOnMCCP2Sentinel(t *testing.T) {
	mccp, _, received := newTestMCCP(true)
	mccp.onEnableRemote(2)
	sentinel := []byte{cmdIAC, cmdSB, OptMCCP2, cmdIAC, cmdSE}
	if err := mccp.OnDataReceived(sentinel); err != nil {
		t.Fatal(err)
	}
	if mccp.version != 2 {
		t.Fatalf("expected version 2, got %d", mccp.version)
	}
	if !mccp.compressed {
		t.Fatal("expected the sentinel to enable compression")
	}
	if len(*received) != 0 {
		t.Fatalf("sentinel bytes should not be forwarded, got %v", *received)
	}
}

func TestMCCPDecompressesAfterEnable(t *testing.T) {
	mccp, _, received := newTestMCCP(true)
	mccp.onEnableRemote(2)
	sentinel := []byte{cmdIAC, cmdSB, OptMCCP2, cmdIAC, cmdSE}
	if err := mccp.OnDataReceived(sentinel); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte("compressed game text"))
	zw.Close()

	if err := mccp.OnDataReceived(buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if string(*received) != "compressed game text" {
		t.Fatalf("got %q", *received)
	}
}

func TestMCCPOnlyAllowsOneVersion(t *testing.T) {
	mccp, _, _ := newTestMCCP(true)
	if !mccp.onEnableRemote(1) {
		t.Fatal("expected first enable to succeed")
	}
	if mccp.onEnableRemote(2) {
		t.Fatal("expected second version to be refused once one is active")
	}
}

func TestMCCPDisableResetsState(t *testing.T) {
	mccp, _, _ := newTestMCCP(true)
	mccp.onEnableRemote(1)
	mccp.Disable()
	if mccp.version != 0 || mccp.compressed {
		t.Fatal("expected Disable to reset version and compressed flag")
	}
}
