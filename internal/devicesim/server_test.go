package devicesim

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hantas-hq/gohantas/frame"
)

func startTestServer(t *testing.T) (*Device, net.Conn) {
	t.Helper()
	device := NewDevice(1)
	srv := New(device)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		_ = srv.Shutdown()
	})

	conn, err := net.DialTimeout("tcp", listener.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return device, conn
}

func TestServer_ReadHoldingOverRealSocket(t *testing.T) {
	device, conn := startTestServer(t)
	device.SetHolding(0, 7, 8)

	req := mbapReadRequest(1, 1, frame.FuncReadHoldingRegisters, 0, 2)
	_, err := conn.Write(req)
	require.NoError(t, err)

	resp := make([]byte, 64)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(resp)
	require.NoError(t, err)

	resp = resp[:n]
	assert.Equal(t, frame.FuncReadHoldingRegisters, resp[7])
	assert.Equal(t, uint8(4), resp[8])
	assert.Equal(t, []byte{0x00, 0x07, 0x00, 0x08}, resp[9:13])
}

func TestServer_MultipleRequestsOnOneConnection(t *testing.T) {
	device, conn := startTestServer(t)
	device.SetHolding(5, 42)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for i := 0; i < 3; i++ {
		req := mbapReadRequest(uint16(i+1), 1, frame.FuncReadHoldingRegisters, 5, 1)
		_, err := conn.Write(req)
		require.NoError(t, err)

		resp := make([]byte, 64)
		n, err := conn.Read(resp)
		require.NoError(t, err)
		resp = resp[:n]
		assert.Equal(t, []byte{0x00, 42}, resp[9:11])
	}
}
