//go:build !linux

package transport

import (
	"net"
	"time"
)

// tuneKeepAlive falls back to the single interval net.Dialer.KeepAlive
// already applied on non-Linux platforms, where TCP_KEEPIDLE/KEEPINTVL/KEEPCNT
// are not exposed through a portable syscall surface.
func tuneKeepAlive(conn *net.TCPConn, _, interval time.Duration, _ int) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	return conn.SetKeepAlivePeriod(interval)
}
