//go:build !windows

package main

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

// getShell returns the shell used to run commands on Unix systems
func getShell() string {
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	return "/bin/sh"
}

// shellArgs builds the arguments that make shell run command once.
func shellArgs(_ string, command string) []string {
	return []string{"-c", command}
}

// setProcAttr sets Unix-specific process attributes for TTY support
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true, // Create new session (TTY requirement)
		Setctty: true, // Make this the controlling terminal
	}
}

// killProcessGroup terminates the process and its children using Unix signals.
// Since we used Setsid, killing the negative PID targets the entire session group.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return
	}

	// Send SIGHUP to the session group for a proper TTY hangup
	syscall.Kill(-cmd.Process.Pid, syscall.SIGHUP)

	// Give processes time to cleanup
	time.Sleep(100 * time.Millisecond)

	// Force kill if still alive
	syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	cmd.Process.Kill()
}
