// Command mudproto-demo dials a MUD server and wires the mudproto handler
// chain (MCCP, Telnet, MPI, XML) between the socket and the terminal. It
// exists to exercise the library end to end; the socket loop, terminal
// rendering, and editor integration it contains are deliberately minimal
// since those concerns are outside the library's scope.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	mudproto "github.com/nstockton/mud-protocols"
	mudconfig "github.com/nstockton/mud-protocols/config"
)

func main() {
	addr := flag.String("addr", "mume.org:4242", "host:port to connect to")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg := mudconfig.Default()
	if *configPath != "" {
		loaded, err := mudconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "mudproto-demo:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	sock, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mudproto-demo: dial:", err)
		os.Exit(1)
	}
	defer sock.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	manager := mudproto.NewManager(func(data []byte) {
		if _, err := sock.Write(data); err != nil {
			mudproto.Logger.Printf("write to socket failed: %v", err)
		}
	}, func(data []byte) {
		out.Write(data)
		out.Flush()
	}, true, nil)

	// Telnet is built up front, ahead of being spliced into the chain, so
	// that MCCP (which must sit before it in wire order, scanning raw bytes
	// for the compression-enabled sentinel) can register its Q-method hooks
	// on it at MCCP-construction time.
	telnetWriter := func(data []byte) { manager.Write(data, false, false) }
	telnet := mudproto.NewTelnet(telnetWriter, nil, true)

	if _, err := manager.Register(func(writer mudproto.Writer, receiver mudproto.Receiver, isClient bool) mudproto.Handler {
		return mudproto.NewMCCP(writer, receiver, isClient, telnet)
	}); err != nil {
		fmt.Fprintln(os.Stderr, "mudproto-demo:", err)
		os.Exit(1)
	}

	if _, err := manager.Register(func(writer mudproto.Writer, receiver mudproto.Receiver, isClient bool) mudproto.Handler {
		return telnet
	}); err != nil {
		fmt.Fprintln(os.Stderr, "mudproto-demo:", err)
		os.Exit(1)
	}

	mudproto.NewCharset(telnet)
	naws := mudproto.NewNAWS(telnet)
	if dimensions, err := mudproto.NewDimensions(cfg.Window.Width, cfg.Window.Height); err != nil {
		mudproto.Logger.Printf("invalid window size in config: %v", err)
	} else {
		naws.SetDimensions(dimensions)
	}
	mudproto.NewGMCP(telnet, mudproto.GMCPClientInfo{
		Client:  cfg.GMCP.Client,
		Version: cfg.GMCP.Version,
	})

	if _, err := manager.Register(func(writer mudproto.Writer, receiver mudproto.Receiver, isClient bool) mudproto.Handler {
		return mudproto.NewMPI(writer, receiver, isClient, mudproto.NopLauncher{})
	}); err != nil {
		fmt.Fprintln(os.Stderr, "mudproto-demo:", err)
		os.Exit(1)
	}

	var xml *mudproto.XML
	if _, err := manager.Register(func(writer mudproto.Writer, receiver mudproto.Receiver, isClient bool) mudproto.Handler {
		xml = mudproto.NewXML(writer, receiver, isClient, cfg.OutputFormat)
		return xml
	}); err != nil {
		fmt.Fprintln(os.Stderr, "mudproto-demo:", err)
		os.Exit(1)
	}
	xml.OnXMLEvent = func(name string, data []byte) {
		if name == "line" {
			out.Write(data)
			out.Write([]byte("\n"))
			out.Flush()
		}
	}

	manager.Connect()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4096)
		for {
			n, err := sock.Read(buf)
			if n > 0 {
				manager.Parse(append([]byte{}, buf[:n]...))
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			manager.Write([]byte(scanner.Text()+"\n"), true, false)
		}
	}()

	select {
	case <-sig:
	case <-done:
	}
	manager.Disconnect()
}
