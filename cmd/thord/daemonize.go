package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// listenFDEnv tells a re-executed thord which descriptor holds the bound
// socket.
const listenFDEnv = "THORD_LISTEN_FD"

// daemonize starts a detached copy of thord that inherits l, then lets go
// of l without unlinking the socket. The caller exits once it returns.
func daemonize(l net.Listener) error {
	ul, ok := l.(*net.UnixListener)
	if !ok {
		return fmt.Errorf("cannot hand over a %T", l)
	}
	f, err := ul.File()
	if err != nil {
		return fmt.Errorf("failed to get listener file: %w", err)
	}
	defer func() { _ = f.Close() }()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to find executable: %w", err)
	}
	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer func() { _ = null.Close() }()

	child := exec.Command(exe, os.Args[1:]...)
	child.Env = append(os.Environ(), listenFDEnv+"=3")
	child.ExtraFiles = []*os.File{f}
	child.Stdin, child.Stdout, child.Stderr = null, null, null
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	ul.SetUnlinkOnClose(false)
	_ = ul.Close()
	return child.Process.Release()
}

// inheritedListener adopts the socket passed by daemonize. ok is false
// when thord was not started that way.
func inheritedListener() (l net.Listener, ok bool, err error) {
	v := os.Getenv(listenFDEnv)
	if v == "" {
		return nil, false, nil
	}
	_ = os.Unsetenv(listenFDEnv)

	fd, err := strconv.Atoi(v)
	if err != nil || fd < 3 {
		return nil, true, fmt.Errorf("invalid %s %q", listenFDEnv, v)
	}
	f := os.NewFile(uintptr(fd), "thord-socket")
	if f == nil {
		return nil, true, errors.New("inherited socket descriptor is not open")
	}
	defer func() { _ = f.Close() }()

	l, err = net.FileListener(f)
	if err != nil {
		return nil, true, fmt.Errorf("failed to adopt inherited socket: %w", err)
	}
	return l, true, nil
}
