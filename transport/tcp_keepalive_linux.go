//go:build linux

package transport

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// tuneKeepAlive sets TCP_KEEPIDLE/TCP_KEEPINTVL/TCP_KEEPCNT precisely via the
// raw socket, since net.Dialer (pre-1.23 stdlib, this module's floor) only
// exposes a single KeepAlive interval and no probe count. Grounded on the
// teacher's reach for golang.org/x/sys (an indirect dependency of
// tarm/serial) as the idiom this pack already uses for syscall-level tuning.
func tuneKeepAlive(conn *net.TCPConn, probe, interval time.Duration, retries int) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, int(probe.Seconds())); sockErr != nil {
			return
		}
		if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(interval.Seconds())); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, retries)
	})
	if err != nil {
		return err
	}
	return sockErr
}
