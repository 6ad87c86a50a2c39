package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "child.log")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestTailLinesBasic(t *testing.T) {
	path := writeTemp(t, "one\ntwo\nthree\nfour\n")
	lines, err := TailLines(path, 2)
	if err != nil {
		t.Fatalf("TailLines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "three" || lines[1] != "four" {
		t.Fatalf("got %q", lines)
	}
}

func TestTailLinesWholeFileWhenShort(t *testing.T) {
	path := writeTemp(t, "only\n")
	lines, err := TailLines(path, 10)
	if err != nil {
		t.Fatalf("TailLines: %v", err)
	}
	if len(lines) != 1 || lines[0] != "only" {
		t.Fatalf("got %q", lines)
	}
}

func TestTailLinesNoTrailingNewline(t *testing.T) {
	path := writeTemp(t, "a\nb\nc")
	lines, err := TailLines(path, 2)
	if err != nil {
		t.Fatalf("TailLines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("got %q", lines)
	}
}

func TestTailLinesCrossesChunkBoundary(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 2000; i++ {
		fmt.Fprintf(&b, "line-%04d\n", i)
	}
	path := writeTemp(t, b.String())
	lines, err := TailLines(path, 3)
	if err != nil {
		t.Fatalf("TailLines: %v", err)
	}
	want := []string{"line-1997", "line-1998", "line-1999"}
	for i, w := range want {
		if lines[i] != w {
			t.Fatalf("line %d = %q, want %q (all: %q)", i, lines[i], w, lines)
		}
	}
}

func TestTailLinesMissingFile(t *testing.T) {
	lines, err := TailLines(filepath.Join(t.TempDir(), "absent.log"), 5)
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("got %q from a missing file", lines)
	}
}

func TestTailLinesEmptyFile(t *testing.T) {
	path := writeTemp(t, "")
	lines, err := TailLines(path, 5)
	if err != nil {
		t.Fatalf("TailLines: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("got %q from an empty file", lines)
	}
}

func TestTailLinesStripsCarriageReturn(t *testing.T) {
	path := writeTemp(t, "a\r\nb\r\n")
	lines, err := TailLines(path, 2)
	if err != nil {
		t.Fatalf("TailLines: %v", err)
	}
	if lines[0] != "a" || lines[1] != "b" {
		t.Fatalf("got %q", lines)
	}
}
