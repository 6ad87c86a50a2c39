package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := prometheus.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := Register(r); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if err := Register(prometheus.NewRegistry()); err != nil {
		t.Fatalf("Register on fresh registry: %v", err)
	}
}

func TestStateGaugeIsDense(t *testing.T) {
	r := prometheus.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	SetState("svc", "running")

	mfs, err := r.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "solo_supervisor_state" {
			continue
		}
		if len(mf.GetMetric()) != len(knownStates) {
			t.Fatalf("state series = %d, want %d", len(mf.GetMetric()), len(knownStates))
		}
		ones := 0
		for _, m := range mf.GetMetric() {
			if m.GetGauge().GetValue() == 1 {
				ones++
			}
		}
		if ones != 1 {
			t.Fatalf("%d states set to 1, want exactly 1", ones)
		}
		return
	}
	t.Fatalf("solo_supervisor_state not gathered")
}

func TestWriteTextfile(t *testing.T) {
	r := prometheus.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	RecordStart("svc", "ok")
	RecordStop("svc")
	SetState("svc", "stopped")

	path := filepath.Join(t.TempDir(), "solo.prom")
	if err := WriteTextfile(path, r); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	content := string(b)
	for _, want := range []string{"solo_supervisor_start_total", "solo_supervisor_stop_total", "solo_supervisor_state"} {
		if !strings.Contains(content, want) {
			t.Fatalf("textfile missing %s:\n%s", want, content)
		}
	}
	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("leftover files: %v", entries)
	}
}

func TestWriteTextfileCreatesDir(t *testing.T) {
	r := prometheus.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	path := filepath.Join(t.TempDir(), "sub", "dir", "solo.prom")
	if err := WriteTextfile(path, r); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
}
