//go:build !windows

package detector

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
	"github.com/tklauser/go-sysconf"
)

// getProcStartUnix returns the start time of pid in Unix seconds, 0 when it
// cannot be determined.
//
// On Linux the kernel's own integer accounting is used instead of gopsutil:
// callers compare recorded and observed values for equality, so the result
// has to be bit-stable across calls, which btime plus tick arithmetic
// guarantees. Other platforms go through gopsutil's CreateTime.
func getProcStartUnix(pid int) int64 {
	if pid <= 0 {
		return 0
	}
	if runtime.GOOS == "linux" {
		return startUnixFromProc(pid)
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}

func startUnixFromProc(pid int) int64 {
	ticks := startTicksAfterBoot(pid)
	boot := bootTimeUnix()
	if ticks <= 0 || boot <= 0 {
		return 0
	}
	return boot + ticks/clockTicksPerSec()
}

// startTicksAfterBoot reads the starttime field of /proc/[pid]/stat, given
// in clock ticks after boot. The comm field may contain spaces or even a
// closing parenthesis, so fields are counted from the last ')'.
func startTicksAfterBoot(pid int) int64 {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0
	}
	stat := string(b)
	i := strings.LastIndexByte(stat, ')')
	if i < 0 {
		return 0
	}
	// starttime is the 22nd field overall, the 20th after comm and state.
	fields := strings.Fields(stat[i+1:])
	if len(fields) < 20 {
		return 0
	}
	v, err := strconv.ParseInt(fields[19], 10, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// bootTimeUnix reads the btime line of /proc/stat: the boot instant in Unix
// seconds, constant for the lifetime of the host.
func bootTimeUnix() int64 {
	b, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(b), "\n") {
		rest, ok := strings.CutPrefix(line, "btime ")
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
		if err != nil {
			return 0
		}
		return v
	}
	return 0
}

func clockTicksPerSec() int64 {
	hz, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || hz <= 0 {
		return 100
	}
	return hz
}
