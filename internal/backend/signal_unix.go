package backend

import "syscall"

func processTermSignal() syscall.Signal { return syscall.SIGTERM }
