package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/loykin/solo/internal/supervisor"
)

// Exit codes. Distinct codes let scripts distinguish a start that failed
// from a start that was refused because a stranger holds the port.
const (
	exitOK           = 0
	exitFailure      = 1
	exitPortConflict = 2
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var pc *supervisor.PortConflictError
	if errors.As(err, &pc) {
		return exitPortConflict
	}
	return exitFailure
}
