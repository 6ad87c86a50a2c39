package solo

import (
	"errors"
	"net"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func testSpec(t *testing.T) Spec {
	t.Helper()
	dir := t.TempDir()
	return Spec{
		Name:         "facade",
		Command:      "sleep 33.77",
		PIDFile:      filepath.Join(dir, "facade.pid"),
		Bind:         freeAddr(t),
		GracePeriod:  300 * time.Millisecond,
		StopWait:     300 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
		Log:          LogConfig{ChildPath: filepath.Join(dir, "facade.log")},
	}
}

func TestNewRejectsIncompleteSpec(t *testing.T) {
	if _, err := New(Spec{Name: "x"}, nil); err == nil {
		t.Fatalf("incomplete spec accepted")
	}
}

func TestStatusFreshEnvironment(t *testing.T) {
	s, err := New(testSpec(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	st, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateStopped {
		t.Fatalf("state = %s, want %s", st.State, StateStopped)
	}
}

func TestStartTimesOutWhenChildNeverBinds(t *testing.T) {
	requireUnix(t)
	spec := testSpec(t)
	s, err := New(spec, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// sleep never binds the address, so the grace period must expire.
	_, err = s.Start()
	var se *StartError
	if !errors.As(err, &se) {
		t.Fatalf("Start error = %v, want StartError", err)
	}
	if se.Reason != "timeout" {
		t.Fatalf("reason = %s, want timeout", se.Reason)
	}
	// Cleanup: stop tears the child down and clears the pid file.
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	st, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateStopped {
		t.Fatalf("state after Stop = %s, want %s", st.State, StateStopped)
	}
}

func TestStartRefusesForeignListener(t *testing.T) {
	spec := testSpec(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	spec.Bind = ln.Addr().String()

	s, err := New(spec, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Start()
	var pc *PortConflictError
	if !errors.As(err, &pc) {
		t.Fatalf("Start error = %v, want PortConflictError", err)
	}
}

func TestStopWithoutStartIsSuccess(t *testing.T) {
	s, err := New(testSpec(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	st, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st.State != StateStopped {
		t.Fatalf("state = %s, want %s", st.State, StateStopped)
	}
}
