package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// permittedBaudRates is the exhaustive set of baud rates a Hantas serial
// link is allowed to negotiate at.
var permittedBaudRates = map[int]bool{
	9600: true, 19200: true, 38400: true, 57600: true, 115200: true, 230400: true,
}

// maxDeviceID is the largest device id a serial link carries; higher values
// are clamped down to it rather than rejected outright.
const maxDeviceID = 0x0F

// RTUConfig configures an RTU serial adapter, mirroring client.go's
// ClientConfig-with-defaults-applied-on-construction pattern.
type RTUConfig struct {
	// Port is the OS device path, e.g. "/dev/ttyUSB0" or "COM3".
	Port string
	// Baud must be one of permittedBaudRates; zero defaults to 115200.
	Baud int
	// DeviceID is clamped to 0..=0x0F.
	DeviceID uint8
	// ReadBufferSize sizes the channel Receive delivers on; zero defaults to 64.
	ReadBufferSize int

	// OpenFunc overrides how the serial port is opened, for tests.
	OpenFunc func(c *serial.Config) (io.ReadWriteCloser, error)
}

// RTU is a transport.Adapter over a serial.Port in RTU framing mode: 8N1,
// byte-transparent. Grounded on client.go's SerialClient
// (serialclient.go), generalized from request/response Do into an async
// receive-loop adapter, since framing now lives one layer up in package frame.
type RTU struct {
	cfg RTUConfig
	port io.ReadWriteCloser

	mu sync.Mutex
	rxCh chan []byte
	connCh chan bool
	closed bool
	onTxRaw TxRawFunc
	onRxRaw RxRawFunc
	closeOnce sync.Once
	done chan struct{}
}

// NewRTU validates cfg and returns an unopened RTU adapter. An invalid baud
// rate is rejected at construction, not at Open time.
func NewRTU(cfg RTUConfig) (*RTU, error) {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if !permittedBaudRates[cfg.Baud] {
		return nil, fmt.Errorf("transport: baud rate %d is not in the permitted set", cfg.Baud)
	}
	if cfg.DeviceID > maxDeviceID {
		cfg.DeviceID = maxDeviceID
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 64
	}
	if cfg.OpenFunc == nil {
		cfg.OpenFunc = func(c *serial.Config) (io.ReadWriteCloser, error) { return serial.OpenPort(c) }
	}
	return &RTU{
		cfg: cfg,
		rxCh: make(chan []byte, cfg.ReadBufferSize),
		connCh: make(chan bool, 1),
		done: make(chan struct{}),
	}, nil
}

// OnTxRaw/OnRxRaw register the diagnostic hooks raw transmitted/received
// bytes are republished through. Each has exactly one subscriber slot, per
// a small-dispatch-table design.
func (a *RTU) OnTxRaw(fn TxRawFunc) { a.mu.Lock(); a.onTxRaw = fn; a.mu.Unlock() }
func (a *RTU) OnRxRaw(fn RxRawFunc) { a.mu.Lock(); a.onRxRaw = fn; a.mu.Unlock() }

// DeviceID returns the clamped device id this adapter was configured with.
func (a *RTU) DeviceID() uint8 { return a.cfg.DeviceID }

func (a *RTU) Open(ctx context.Context) error {
	port, err := a.cfg.OpenFunc(&serial.Config{
		Name: a.cfg.Port,
		Baud: a.cfg.Baud,
		ReadTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("transport: open serial port %q: %w", a.cfg.Port, err)
	}
	a.port = port
	go a.readLoop()
	select {
	case a.connCh <- true:
	default:
	}
	return nil
}

func (a *RTU) readLoop() {
	buf := make([]byte, 256)
	for {
		select {
		case <-a.done:
			return
		default:
		}
		n, err := a.port.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			a.mu.Lock()
			onRx := a.onRxRaw
			a.mu.Unlock()
			if onRx != nil {
				onRx(chunk)
			}
			select {
			case a.rxCh <- chunk:
			case <-a.done:
				return
			}
		}
		if err != nil && !isTimeout(err) {
			select {
			case a.connCh <- false:
			default:
			}
			return
		}
	}
}

func (a *RTU) Send(data []byte) error {
	if a.port == nil {
		return fmt.Errorf("transport: serial port not open")
	}
	a.mu.Lock()
	onTx := a.onTxRaw
	a.mu.Unlock()
	if onTx != nil {
		onTx(data)
	}
	_, err := a.port.Write(data)
	return err
}

func (a *RTU) Receive() <-chan []byte { return a.rxCh }
func (a *RTU) Connected() <-chan bool { return a.connCh }

func (a *RTU) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.closeOnce.Do(func() { close(a.done) })
	if a.port == nil {
		return nil
	}
	err := a.port.Close()
	select {
	case a.connCh <- false:
	default:
	}
	return err
}

// isTimeout matches client.go's read-loop treatment of os.ErrDeadlineExceeded
// as "no data this tick", not a link failure.
func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
