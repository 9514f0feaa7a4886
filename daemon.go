//go:build !windows

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// isProcessAlive checks whether a process with the given PID is still running.
// Uses the Unix convention of sending signal 0 to test for process existence.
func isProcessAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// daemonize starts the server as a background process. It re-executes the
// binary with childArgs, detaches from the terminal using setsid, and
// redirects output to the log file.
func daemonize(files daemonFiles, childArgs []string, out io.Writer) error {
	if pid, err := files.readPID(); err == nil {
		if isProcessAlive(pid) {
			return fmt.Errorf("daemon is already running (PID %d); use 'webterm daemon stop' first", pid)
		}
		// Stale PID file from a previous run
		files.removePID()
	}

	if err := os.MkdirAll(files.dir, 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	logFile, err := os.OpenFile(files.logPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", files.logPath(), err)
	}
	defer logFile.Close()

	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	cmd := exec.Command(exe, childArgs...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Detach from controlling terminal
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if err := files.writePID(cmd.Process.Pid); err != nil {
		fmt.Fprintf(out, "Warning: Failed to write PID file: %v\n", err)
	}

	fmt.Fprintf(out, "Daemon started (PID %d).\n", cmd.Process.Pid)
	fmt.Fprintf(out, "Log file: %s\n", files.logPath())
	fmt.Fprintf(out, "PID file: %s\n", files.pidPath())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Use 'webterm daemon status' to check status, 'webterm daemon stop' to stop.")
	return cmd.Process.Release()
}

// daemonStop sends SIGTERM to the running daemon and waits for it to exit,
// escalating to SIGKILL after stopTimeout.
func daemonStop(files daemonFiles, out io.Writer) error {
	pid, err := files.readPID()
	if err != nil {
		fmt.Fprintln(out, "No daemon is running (PID file not found).")
		return nil
	}

	if !isProcessAlive(pid) {
		fmt.Fprintf(out, "Daemon (PID %d) is not running. Removing stale PID file.\n", pid)
		files.removePID()
		return nil
	}

	fmt.Fprintf(out, "Stopping daemon (PID %d)...\n", pid)
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if !isProcessAlive(pid) {
			fmt.Fprintln(out, "Daemon stopped.")
			files.removePID()
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	fmt.Fprintln(out, "Daemon did not stop gracefully. Sending SIGKILL...")
	syscall.Kill(pid, syscall.SIGKILL)
	time.Sleep(500 * time.Millisecond)
	files.removePID()

	if isProcessAlive(pid) {
		return fmt.Errorf("failed to kill daemon (PID %d)", pid)
	}
	fmt.Fprintln(out, "Daemon killed.")
	return nil
}

// daemonStatus prints the current status of the daemon.
func daemonStatus(files daemonFiles, out io.Writer) error {
	pid, err := files.readPID()
	if err != nil {
		fmt.Fprintln(out, "Status: Not running (no PID file).")
		return nil
	}

	if isProcessAlive(pid) {
		fmt.Fprintf(out, "Status: Running (PID %d)\n", pid)
		fmt.Fprintf(out, "PID file: %s\n", files.pidPath())
		fmt.Fprintf(out, "Log file: %s\n", files.logPath())
		return nil
	}
	fmt.Fprintf(out, "Status: Not running (stale PID %d)\n", pid)
	files.removePID()
	return nil
}
