package pty

import (
	"errors"
	"syscall"
)

func signalTerm(pid int) error  { return syscall.Kill(pid, syscall.SIGTERM) }
func signalKill(pid int) error  { return syscall.Kill(pid, syscall.SIGKILL) }
func signalWinch(pid int) error { return syscall.Kill(pid, syscall.SIGWINCH) }

func isRetryable(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR)
}
