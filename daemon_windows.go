//go:build windows

package main

import (
	"errors"
	"io"
)

var errDaemonUnsupported = errors.New("daemon mode is not supported on Windows; run 'webterm serve' as a Windows service instead")

// isProcessAlive is a stub on Windows. Always returns false.
func isProcessAlive(pid int) bool {
	return false
}

func daemonize(files daemonFiles, childArgs []string, out io.Writer) error {
	return errDaemonUnsupported
}

func daemonStop(files daemonFiles, out io.Writer) error {
	return errDaemonUnsupported
}

func daemonStatus(files daemonFiles, out io.Writer) error {
	return errDaemonUnsupported
}
