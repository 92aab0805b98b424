package mudproto

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var gmcpMessageRegex = regexp.MustCompile(`(?s)^\s*([\w.-]+)\s*(.*?)\s*$`)

// GMCPClientInfo identifies this client in the Core.Hello handshake.
type GMCPClientInfo struct {
	Client  string
	Version string
}

// GMCPMessageFunc receives GMCP messages other than the peer's Core.Hello,
// with the package name lower-cased and the value left as the raw JSON bytes
// the peer sent. Messages arriving before the Core.Hello handshake are
// delivered too (a server logs a warning for them first).
type GMCPMessageFunc func(pkg string, value []byte)

// GMCP implements the Generic MUD Communication Protocol: a Core.Hello
// handshake, package advertisement (Core.Supports.Set/Add/Remove), and
// dispatch of arbitrary application messages to OnMessage.
type GMCP struct {
	telnet            *Telnet
	clientInfo        GMCPClientInfo
	initialized       bool
	supportedPackages map[string]int
	OnMessage         GMCPMessageFunc
}

// NewGMCP constructs a GMCP companion and registers its hooks with t.
// clientInfo is sent during Core.Hello; it may be the zero value.
func NewGMCP(t *Telnet, clientInfo GMCPClientInfo) *GMCP {
	g := &GMCP{
		telnet:            t,
		clientInfo:        clientInfo,
		supportedPackages: make(map[string]int),
	}
	t.RegisterOption(OptGMCP, OptionHooks{
		OnEnableLocal: func() bool {
			debugf("We enable GMCP.")
			return true
		},
		OnDisableLocal: func() {
			debugf("We disable GMCP.")
		},
		OnEnableRemote: func() bool {
			debugf("Peer enables GMCP.")
			return true
		},
		OnDisableRemote: func() {
			debugf("Peer disables GMCP.")
		},
		OnOptionEnabled: func() {
			if t.IsClient() {
				g.Hello()
				g.initialized = true
			}
		},
		Subnegotiation: g.onGMCP,
	})
	t.OnConnect(func() {
		if t.IsServer() {
			debugf("We offer to enable GMCP.")
			t.Will(OptGMCP)
		}
	})
	return g
}

// IsInitialized reports whether the Core.Hello handshake has completed.
func (g *GMCP) IsInitialized() bool {
	return g.initialized
}

// Send serializes value to JSON and sends it to the peer under pkg.
func (g *GMCP) Send(pkg string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("gmcp: encoding package %q: %w", pkg, err)
	}
	g.SendRaw(pkg, encoded)
	return nil
}

// SendRaw sends a pre-serialized JSON payload to the peer under pkg.
func (g *GMCP) SendRaw(pkg string, value []byte) {
	payload := append([]byte(pkg+" "), value...)
	debugf("Sending GMCP payload: %q.", payload)
	g.telnet.RequestNegotiation(OptGMCP, payload)
}

// Hello sends a Core.Hello message announcing this client's identity.
func (g *GMCP) Hello() {
	debugf("Sending GMCP Hello.")
	_ = g.Send("Core.Hello", map[string]string{
		"client":  g.clientInfo.Client,
		"version": g.clientInfo.Version,
	})
}

// SetPackages replaces the advertised package list and tells the peer about
// the new list via Core.Supports.Set.
func (g *GMCP) SetPackages(packages map[string]int) {
	g.supportedPackages = make(map[string]int, len(packages))
	for pkg, version := range packages {
		g.supportedPackages[strings.ToLower(pkg)] = version
	}
	_ = g.Send("Core.Supports.Set", packageValues(packages))
}

// AddPackages appends to the advertised package list and tells the peer via
// Core.Supports.Add.
func (g *GMCP) AddPackages(packages map[string]int) {
	for pkg, version := range packages {
		g.supportedPackages[strings.ToLower(pkg)] = version
	}
	_ = g.Send("Core.Supports.Add", packageValues(packages))
}

// RemovePackages removes entries from the advertised package list and tells
// the peer via Core.Supports.Remove. Names not currently advertised are
// logged and skipped.
func (g *GMCP) RemovePackages(packages []string) {
	var removed []string
	for _, pkg := range packages {
		key := strings.ToLower(pkg)
		if _, ok := g.supportedPackages[key]; !ok {
			Logger.Printf("gmcp: tried to remove nonexisting package: %q", pkg)
			continue
		}
		delete(g.supportedPackages, key)
		removed = append(removed, pkg)
	}
	if len(removed) > 0 {
		_ = g.Send("Core.Supports.Remove", removed)
	}
}

func packageValues(packages map[string]int) []string {
	values := make([]string, 0, len(packages))
	for pkg, version := range packages {
		values = append(values, fmt.Sprintf("%s %d", pkg, version))
	}
	return values
}

func (g *GMCP) onGMCP(data []byte) {
	match := gmcpMessageRegex.FindSubmatch(data)
	if match == nil {
		Logger.Printf("gmcp: unknown GMCP negotiation from peer: %q", data)
		return
	}
	pkg, value := string(match[1]), match[2]
	debugf("Received from Peer: GMCP Package: %q, value: %q.", pkg, value)
	pkgLower := strings.ToLower(pkg)
	if g.telnet.IsServer() {
		if pkgLower == "core.hello" {
			if g.initialized {
				Logger.Printf("gmcp: received GMCP Hello from peer after initial Hello was already received")
				return
			}
			debugf("Received initial GMCP Hello from peer.")
			var info struct {
				Client  string `json:"client"`
				Version string `json:"version"`
			}
			if err := json.Unmarshal(value, &info); err != nil {
				Logger.Printf("gmcp: malformed Core.Hello payload: %v", err)
			}
			if info.Client == "" {
				info.Client = "unknown"
			}
			if info.Version == "" {
				info.Version = "0.0"
			}
			g.clientInfo = GMCPClientInfo{Client: info.Client, Version: info.Version}
			g.initialized = true
			return
		}
		if !g.initialized {
			Logger.Printf("gmcp: received GMCP message from peer before initial Hello")
		}
	}
	if g.OnMessage != nil {
		g.OnMessage(pkgLower, value)
	}
}
