package transport

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"
)

// fakeSerialPort is an in-memory io.ReadWriteCloser standing in for a real
// serial.Port, fed bytes through toRead and recording everything written.
type fakeSerialPort struct {
	mu       sync.Mutex
	toRead   chan []byte
	written  [][]byte
	closed   bool
	closedCh chan struct{}
}

func newFakeSerialPort() *fakeSerialPort {
	return &fakeSerialPort{toRead: make(chan []byte, 16), closedCh: make(chan struct{})}
}

func (f *fakeSerialPort) Read(p []byte) (int, error) {
	select {
	case b, ok := <-f.toRead:
		if !ok {
			return 0, io.EOF
		}
		n := copy(p, b)
		return n, nil
	case <-time.After(20 * time.Millisecond):
		return 0, timeoutErr{}
	case <-f.closedCh:
		return 0, io.EOF
	}
}

func (f *fakeSerialPort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), p...)
	f.written = append(f.written, cp)
	return len(p), nil
}

func (f *fakeSerialPort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.closedCh)
	return nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestNewRTU_RejectsUnsupportedBaud(t *testing.T) {
	_, err := NewRTU(RTUConfig{Port: "/dev/ttyUSB0", Baud: 4800})
	require.Error(t, err)
}

func TestNewRTU_DefaultsBaudAndClampsDeviceID(t *testing.T) {
	a, err := NewRTU(RTUConfig{Port: "/dev/ttyUSB0", DeviceID: 0xFF})
	require.NoError(t, err)
	assert.Equal(t, 115200, a.cfg.Baud)
	assert.Equal(t, uint8(maxDeviceID), a.DeviceID())
}

func TestRTU_SendWritesToPort(t *testing.T) {
	port := newFakeSerialPort()
	a, err := NewRTU(RTUConfig{
		Port: "/dev/ttyUSB0",
		Baud: 9600,
		OpenFunc: func(c *serial.Config) (io.ReadWriteCloser, error) {
			return port, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, a.Open(context.Background()))
	defer a.Close()

	require.NoError(t, a.Send([]byte{0x01, 0x03, 0x00, 0x00}))
	port.mu.Lock()
	require.Len(t, port.written, 1)
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 0x00}, port.written[0])
	port.mu.Unlock()
}

func TestRTU_ReceiveDeliversBytes(t *testing.T) {
	port := newFakeSerialPort()
	a, err := NewRTU(RTUConfig{
		Port: "/dev/ttyUSB0",
		Baud: 9600,
		OpenFunc: func(c *serial.Config) (io.ReadWriteCloser, error) {
			return port, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, a.Open(context.Background()))
	defer a.Close()

	port.toRead <- []byte{0x01, 0x03, 0x02, 0x00, 0x0A}

	select {
	case chunk := <-a.Receive():
		assert.Equal(t, []byte{0x01, 0x03, 0x02, 0x00, 0x0A}, chunk)
	case <-time.After(2 * time.Second):
		t.Fatal("no bytes delivered on Receive()")
	}
}

func TestRTU_OnRxRawHookFires(t *testing.T) {
	port := newFakeSerialPort()
	a, err := NewRTU(RTUConfig{
		Port: "/dev/ttyUSB0",
		Baud: 9600,
		OpenFunc: func(c *serial.Config) (io.ReadWriteCloser, error) {
			return port, nil
		},
	})
	require.NoError(t, err)

	seen := make(chan []byte, 1)
	a.OnRxRaw(func(data []byte) { seen <- data })

	require.NoError(t, a.Open(context.Background()))
	defer a.Close()

	port.toRead <- []byte{0xAA, 0xBB}
	select {
	case got := <-seen:
		assert.Equal(t, []byte{0xAA, 0xBB}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("OnRxRaw hook did not fire")
	}
}

func TestRTU_CloseIsIdempotent(t *testing.T) {
	port := newFakeSerialPort()
	a, err := NewRTU(RTUConfig{
		Port: "/dev/ttyUSB0",
		Baud: 9600,
		OpenFunc: func(c *serial.Config) (io.ReadWriteCloser, error) {
			return port, nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, a.Open(context.Background()))

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestNewVendorSerial_SharesRTUValidation(t *testing.T) {
	_, err := NewVendorSerial(RTUConfig{Port: "/dev/ttyUSB0", Baud: 1200})
	require.Error(t, err)
}
