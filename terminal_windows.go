//go:build windows

package main

import (
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// getShell returns the shell used to run commands on Windows
func getShell() string {
	// Prefer PowerShell if available
	if _, err := exec.LookPath("powershell.exe"); err == nil {
		return "powershell.exe"
	}
	return "cmd.exe"
}

// shellArgs builds the arguments that make shell run command once.
func shellArgs(shell, command string) []string {
	if strings.EqualFold(filepath.Base(shell), "cmd.exe") {
		return []string{"/C", command}
	}
	return []string{"-NoProfile", "-NoLogo", "-Command", command}
}

// setProcAttr is a no-op on Windows; ConPTY handles terminal setup
func setProcAttr(cmd *exec.Cmd) {}

// killProcessGroup terminates the process tree on Windows using taskkill
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	// taskkill /F (force) /T (tree, children too) /PID <pid>
	kill := exec.Command("taskkill", "/F", "/T", "/PID",
		strconv.Itoa(cmd.Process.Pid))
	kill.Run()

	time.Sleep(100 * time.Millisecond)

	// Ensure process is killed
	cmd.Process.Kill()
}
