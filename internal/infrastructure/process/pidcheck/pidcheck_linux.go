//go:build linux

// Package pidcheck implements application/cleanup.PIDChecker by reading
// /proc, adapted from the retrieved daemon's supervisor port-detection code
// (getParentPID's "read /proc/pid/stat, parse the field after the closing
// paren" technique), narrowed here to the two questions the cleanup
// manager actually asks: is this PID alive, and does it have a parent.
package pidcheck

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const minStatFieldsAfterComm = 2

// Linux checks process liveness and parentage via /proc.
type Linux struct{}

// New returns the platform PIDChecker.
func New() Linux { return Linux{} }

// Alive reports whether pid currently exists, via signal 0 (no-op probe).
func (Linux) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, syscall.Signal(0)) == nil
}

// ParentPID reads pid's parent from /proc/pid/stat. Returns 0 if it cannot
// be determined (no such process, or a malformed stat line).
func (Linux) ParentPID(pid int) int {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0
	}

	stat := string(data)
	idx := strings.LastIndex(stat, ")")
	if idx < 0 {
		return 0
	}

	fields := strings.Fields(stat[idx+1:])
	if len(fields) < minStatFieldsAfterComm {
		return 0
	}

	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return ppid
}
