package logger

import (
	"bytes"
	"io"
	"os"
)

// tailChunk is the read granularity when scanning a file backwards.
const tailChunk = 4096

// TailLines returns up to n trailing lines of the file at path, oldest first.
// It reads backwards in fixed chunks so large child logs are not loaded
// whole. A missing file yields an empty slice, not an error, since a child
// that never wrote anything is a normal diagnostic outcome.
func TailLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size == 0 {
		return nil, nil
	}

	var buf []byte
	off := size
	for off > 0 && countLines(buf) <= n {
		step := int64(tailChunk)
		if off < step {
			step = off
		}
		off -= step
		chunk := make([]byte, step)
		if _, err := f.ReadAt(chunk, off); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(chunk, buf...)
	}

	// Drop a single trailing newline so the last line is not counted twice.
	buf = bytes.TrimSuffix(buf, []byte("\n"))
	lines := bytes.Split(buf, []byte("\n"))
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, string(bytes.TrimSuffix(l, []byte("\r"))))
	}
	return out, nil
}

func countLines(b []byte) int {
	return bytes.Count(b, []byte("\n"))
}
