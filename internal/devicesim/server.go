package devicesim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	readTimeout = 50 * time.Millisecond
	writeTimeout = 200 * time.Millisecond
	idleTimeout = 60 * time.Second
)

// ErrServerClosed is returned by Serve once Shutdown has been called.
var ErrServerClosed = errors.New("devicesim: server closed")

// Server is a single-listener Modbus-TCP server fronting a Device. Each
// connection is handled in its own goroutine, with panics recovered so one
// misbehaving connection can never take the listener down.
//
// Grounded on server/server.go's Server/connection split, simplified from
// its pluggable PacketAssembler/ModbusHandler interfaces down to a fixed
// MBAP request/response loop since this server only ever needs to speak one
// protocol variant to one kind of device.
type Server struct {
	mu sync.RWMutex
	listener net.Listener
	isShutdown atomic.Bool
	activeConns map[*conn]struct{}

	Device *Device

	// OnErrorFunc is called with connection-level errors; defaults to
	// log.Printf when nil.
	OnErrorFunc func(err error)
}

type conn struct {
	netConn net.Conn
	isBusy atomic.Bool
}

// New returns a Server fronting device, not yet listening.
func New(device *Device) *Server {
	return &Server{Device: device}
}

// ListenAndServe opens a TCP listener on address and serves it as Serve
// does.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("devicesim: listen %q: %w", address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections from listener until Shutdown is called. ctx is
// checked only after Accept returns: once it is cancelled, the next accepted
// connection is closed and ErrServerClosed returned; cancelling ctx does not
// by itself unblock a pending Accept.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	onErr := s.OnErrorFunc
	if onErr == nil {
		onErr = func(err error) { log.Printf("devicesim: connection error: %v", err) }
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	for {
		netConn, err := listener.Accept()
		if err != nil {
			if s.isShutdown.Load() {
				return ErrServerClosed
			}
			return err
		}

		select {
		case <-ctx.Done():
			_ = netConn.Close()
			return ErrServerClosed
		default:
		}

		c := &conn{netConn: netConn}
		s.trackConn(c, true)
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					onErr(fmt.Errorf("devicesim: recovered panic in connection handler: %v", rec))
				}
				_ = netConn.Close()
				s.trackConn(c, false)
			}()
			c.handle(s.Device, onErr)
		}()
	}
}

// Addr returns the address the listener is bound to. Valid only after Serve
// has been called; useful for tests started with ":0".
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener.Addr()
}

// Shutdown closes the listener and every active connection.
func (s *Server) Shutdown() error {
	s.isShutdown.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for c := range s.activeConns {
		_ = c.netConn.Close()
		delete(s.activeConns, c)
	}
	return err
}

func (s *Server) trackConn(c *conn, isAdd bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeConns == nil {
		s.activeConns = make(map[*conn]struct{})
	}
	if isAdd {
		s.activeConns[c] = struct{}{}
	} else {
		delete(s.activeConns, c)
	}
}

func (c *conn) handle(device *Device, onErr func(error)) {
	var buf bytes.Buffer
	received := make([]byte, 300)
	lastActivity := time.Now()

	for {
		_ = c.netConn.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := c.netConn.Read(received)
		if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
			if !errors.Is(err, io.EOF) {
				onErr(err)
			}
			return
		}
		if n > 0 {
			lastActivity = time.Now()
			buf.Write(received[:n])
		} else if time.Since(lastActivity) > idleTimeout {
			return
		} else {
			continue
		}

		c.isBusy.Store(true)
		for {
			req, consumed, needMore, parseErr := ParseRequest(buf.Bytes())
			if parseErr != nil {
				onErr(parseErr)
				buf.Reset()
				break
			}
			if needMore {
				break
			}
			buf.Next(consumed)

			resp := device.Handle(req)
			_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.netConn.Write(resp); err != nil {
				onErr(err)
				c.isBusy.Store(false)
				return
			}
		}
		c.isBusy.Store(false)
	}
}
