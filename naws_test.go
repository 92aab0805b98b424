package mudproto

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewDimensionsValidatesRange(t *testing.T) {
	if _, err := NewDimensions(-1, 10); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("got %v, want ErrInvalidOption", err)
	}
	if _, err := NewDimensions(10, 70000); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("got %v, want ErrInvalidOption", err)
	}
	d, err := NewDimensions(80, 24)
	if err != nil {
		t.Fatal(err)
	}
	if d.Width != 80 || d.Height != 24 {
		t.Fatalf("got %+v", d)
	}
}

func TestDimensionsToBytesAndBack(t *testing.T) {
	d, err := NewDimensions(80, 24)
	if err != nil {
		t.Fatal(err)
	}
	encoded := d.toBytes()
	want := []byte{0, 80, 0, 24}
	if !bytes.Equal(encoded, want) {
		t.Fatalf("got %v, want %v", encoded, want)
	}
	decoded, err := dimensionsFromBytes(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded != d {
		t.Fatalf("got %+v, want %+v", decoded, d)
	}
}

func TestNAWSClientSetDimensionsSendsSubnegotiation(t *testing.T) {
	var sent []byte
	telnet := NewTelnet(func(data []byte) { sent = append(sent, data...) }, func([]byte) {}, true)
	naws := NewNAWS(telnet)
	d, _ := NewDimensions(132, 43)
	naws.SetDimensions(d)
	want := append([]byte{cmdIAC, cmdSB, OptNAWS}, d.toBytes()...)
	want = append(want, cmdIAC, cmdSE)
	if !bytes.Equal(sent, want) {
		t.Fatalf("got %v, want %v", sent, want)
	}
}

func TestNAWSServerRequestsEnableOnConnect(t *testing.T) {
	var sent []byte
	telnet := NewTelnet(func(data []byte) { sent = append(sent, data...) }, func([]byte) {}, false)
	NewNAWS(telnet)
	telnet.OnConnectionMade()
	want := []byte{cmdIAC, cmdDO, OptNAWS}
	if !bytes.Equal(sent, want) {
		t.Fatalf("got %v, want %v", sent, want)
	}
}

func TestNAWSServerRecordsPeerDimensions(t *testing.T) {
	telnet := NewTelnet(func([]byte) {}, func([]byte) {}, false)
	naws := NewNAWS(telnet)
	input := append([]byte{cmdIAC, cmdSB, OptNAWS}, 0, 80, 0, 24)
	input = append(input, cmdIAC, cmdSE)
	if err := telnet.OnDataReceived(input); err != nil {
		t.Fatal(err)
	}
	if naws.Dimensions() != (Dimensions{Width: 80, Height: 24}) {
		t.Fatalf("got %+v", naws.Dimensions())
	}
}
