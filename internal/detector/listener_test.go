package detector

import (
	"net"
	"os"
	"testing"
)

func TestListeningDetectsBoundPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	addr := ln.Addr().String()
	listening, owner, err := ListenerProbe{}.Listening(addr)
	if err != nil {
		t.Fatalf("Listening: %v", err)
	}
	if !listening {
		t.Fatalf("bound port %s not detected", addr)
	}
	// Attribution depends on platform privileges: either the socket is
	// credited to this test process or the owner is unknown.
	if owner != 0 && owner != os.Getpid() {
		t.Fatalf("listener attributed to pid %d, want %d or 0", owner, os.Getpid())
	}
}

func TestListeningFreePort(t *testing.T) {
	// Bind then close to obtain a port that is free right now.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	listening, _, err := ListenerProbe{}.Listening(addr)
	if err != nil {
		t.Fatalf("Listening: %v", err)
	}
	if listening {
		t.Fatalf("closed port %s reported listening", addr)
	}
}

func TestListeningRejectsBadAddress(t *testing.T) {
	for _, addr := range []string{"no-port", "host:notaport", ""} {
		if _, _, err := (ListenerProbe{}).Listening(addr); err == nil {
			t.Fatalf("address %q accepted", addr)
		}
	}
}

func TestHostMatches(t *testing.T) {
	cases := []struct {
		want, got string
		match     bool
	}{
		{"127.0.0.1", "127.0.0.1", true},
		{"127.0.0.1", "0.0.0.0", true},
		{"0.0.0.0", "127.0.0.1", true},
		{"127.0.0.1", "::", true},
		{"127.0.0.1", "10.0.0.5", false},
		// Hostname binds resolve before comparing against the numeric
		// addresses in the connection table.
		{"localhost", "127.0.0.1", true},
		{"localhost", "10.0.0.5", false},
	}
	for _, c := range cases {
		if got := resolveHost(c.want).matches(c.got); got != c.match {
			t.Fatalf("resolveHost(%q).matches(%q) = %v, want %v", c.want, c.got, got, c.match)
		}
	}
}

func TestListeningResolvesHostnameBind(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	listening, _, err := ListenerProbe{}.Listening(net.JoinHostPort("localhost", port))
	if err != nil {
		t.Fatalf("Listening: %v", err)
	}
	if !listening {
		t.Fatalf("listener on 127.0.0.1:%s not matched by localhost bind", port)
	}
}
