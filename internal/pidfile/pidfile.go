// Package pidfile persists the identity of the supervised child across
// supervisor invocations. The file is the advisory lock between concurrent
// starts: creation is O_EXCL, so of two racing starts at most one obtains
// the claim and the other observes an existing file.
//
// Format: first line is the decimal PID, second line is JSON metadata
// carrying the process start time (Unix seconds). The start time lets a
// reader reject a recycled PID that belongs to an unrelated process.
package pidfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrClaimed is returned by Acquire when the pid file already exists.
var ErrClaimed = errors.New("pid file already exists")

// ErrInFlight is returned by Read when the file exists but is empty: another
// invocation holds the claim and has not committed its pid yet. Readers must
// treat this as a start in progress, never as a stale record.
var ErrInFlight = errors.New("pid file claim not yet committed")

// Record is the persisted content of a pid file.
type Record struct {
	PID       int
	StartUnix int64
}

type meta struct {
	StartUnix int64 `json:"start_unix"`
}

// Claim is an exclusively created, not yet committed pid file.
type Claim struct {
	path string
	f    *os.File
}

// Acquire creates the pid file exclusively. It fails with ErrClaimed when a
// file is already present, which callers treat as "another invocation got
// here first" and re-evaluate the process state.
func Acquire(path string) (*Claim, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create pid file dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrClaimed
		}
		return nil, fmt.Errorf("acquire pid file: %w", err)
	}
	return &Claim{path: path, f: f}, nil
}

// Commit writes the record and releases the claim. The pid file stays on
// disk until an explicit Remove.
func (c *Claim) Commit(rec Record) error {
	m, err := json.Marshal(meta{StartUnix: rec.StartUnix})
	if err != nil {
		return err
	}
	content := strconv.Itoa(rec.PID) + "\n" + string(m) + "\n"
	if _, err := c.f.WriteString(content); err != nil {
		_ = c.f.Close()
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := c.f.Sync(); err != nil {
		_ = c.f.Close()
		return fmt.Errorf("sync pid file: %w", err)
	}
	return c.f.Close()
}

// Abort releases the claim and removes the file; used when the spawn after
// a successful Acquire fails.
func (c *Claim) Abort() {
	_ = c.f.Close()
	_ = os.Remove(c.path)
}

// Path returns the claimed file path.
func (c *Claim) Path() string { return c.path }

// Read parses a pid file. A missing file returns os.ErrNotExist (via the
// underlying error); malformed content is an error so callers can surface
// corrupt bookkeeping instead of guessing.
func Read(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	if len(b) == 0 {
		return Record{}, ErrInFlight
	}
	pidLine, rest, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil || pid <= 0 {
		return Record{}, fmt.Errorf("invalid pid in %s: %q", path, strings.TrimSpace(pidLine))
	}
	rec := Record{PID: pid}
	rest = strings.TrimSpace(rest)
	if rest != "" {
		var m meta
		// Legacy files carry only the PID; ignore meta that does not parse.
		if err := json.Unmarshal([]byte(firstLine(rest)), &m); err == nil {
			rec.StartUnix = m.StartUnix
		}
	}
	return rec, nil
}

// Remove deletes the pid file. A file that is already gone is success;
// any other failure (permissions, read-only filesystem) is reported rather
// than swallowed.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// RemoveIfPID removes the pid file only when its current content still
// matches what the caller observed: the given pid, or, when pid is 0,
// content that still fails to parse. It reports whether the record is gone.
// An uncommitted claim is never removed; a record written by a concurrent
// invocation after the caller's observation is left intact.
func RemoveIfPID(path string, pid int) (bool, error) {
	rec, err := Read(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return true, nil
	case errors.Is(err, ErrInFlight):
		return false, nil
	case err != nil:
		if pid == 0 {
			return true, Remove(path)
		}
		return false, nil
	case rec.PID == pid:
		return true, Remove(path)
	default:
		return false, nil
	}
}

// Exists reports whether the pid file is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func firstLine(s string) string {
	l, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(l)
}
