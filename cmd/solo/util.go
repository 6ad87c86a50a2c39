package main

import (
	"encoding/json"
	"fmt"

	"github.com/loykin/solo/internal/supervisor"
)

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(b))
}

// formatStatus renders one unambiguous human-readable status line.
func formatStatus(st supervisor.Status) string {
	switch st.State {
	case supervisor.StateRunning:
		return fmt.Sprintf("%s: running (pid %d, listening on %s)", st.Name, st.PID, st.Bind)
	case supervisor.StateStarting:
		return fmt.Sprintf("%s: starting (pid %d, %s not listening yet)", st.Name, st.PID, st.Bind)
	case supervisor.StateStale:
		return fmt.Sprintf("%s: stale (pid file records %d but the process is gone)", st.Name, st.PID)
	case supervisor.StatePortConflict:
		if st.ListenerPID > 0 {
			return fmt.Sprintf("%s: port conflict (%s held by pid %d)", st.Name, st.Bind, st.ListenerPID)
		}
		return fmt.Sprintf("%s: port conflict (%s held by an unknown process)", st.Name, st.Bind)
	default:
		return fmt.Sprintf("%s: stopped", st.Name)
	}
}
