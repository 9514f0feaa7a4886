package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// stopTimeout is how long daemon stop waits after SIGTERM before SIGKILL.
const stopTimeout = 5 * time.Second

// daemonFiles locates the PID and log files of a background server.
type daemonFiles struct {
	dir string
}

// pidPath returns the path to the PID file used by daemon mode.
func (f daemonFiles) pidPath() string {
	return filepath.Join(f.dir, "webterm.pid")
}

// logPath returns the path to the log file used by daemon mode.
func (f daemonFiles) logPath() string {
	return filepath.Join(f.dir, "webterm.log")
}

// writePID writes the given PID to the PID file.
func (f daemonFiles) writePID(pid int) error {
	return os.WriteFile(f.pidPath(), []byte(strconv.Itoa(pid)), 0644)
}

// readPID reads and parses the PID from the PID file.
func (f daemonFiles) readPID() (int, error) {
	data, err := os.ReadFile(f.pidPath())
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// removePID removes the PID file, ignoring errors (best-effort cleanup).
func (f daemonFiles) removePID() {
	os.Remove(f.pidPath())
}
