package devicesim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hantas-hq/gohantas/frame"
)

func mbapReadRequest(tid uint16, uid, opcode byte, addr, quantity uint16) []byte {
	body := []byte{byte(addr >> 8), byte(addr), byte(quantity >> 8), byte(quantity)}
	pkt := []byte{byte(tid >> 8), byte(tid), 0x00, 0x00, 0x00, byte(2 + len(body)), uid, opcode}
	return append(pkt, body...)
}

func TestParseRequest_ReadHolding(t *testing.T) {
	buf := mbapReadRequest(1, 1, frame.FuncReadHoldingRegisters, 10, 5)

	req, consumed, needMore, err := ParseRequest(buf)

	require.NoError(t, err)
	assert.False(t, needMore)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, uint16(1), req.TransactionID)
	assert.Equal(t, uint16(10), req.Address)
	assert.Equal(t, uint16(5), req.Quantity)
}

func TestParseRequest_WaitsForMoreBytes(t *testing.T) {
	buf := mbapReadRequest(1, 1, frame.FuncReadHoldingRegisters, 10, 5)

	_, consumed, needMore, err := ParseRequest(buf[:len(buf)-1])

	require.NoError(t, err)
	assert.True(t, needMore)
	assert.Equal(t, 0, consumed)
}

func TestParseRequest_WriteMulti(t *testing.T) {
	body := []byte{0x00, 0x05, 0x00, 0x02, 0x04, 0x00, 0x01, 0x00, 0x02}
	pkt := append([]byte{0x00, 0x01, 0x00, 0x00, 0x00, byte(2 + len(body)), 0x01, frame.FuncWriteMultiRegisters}, body...)

	req, consumed, needMore, err := ParseRequest(pkt)

	require.NoError(t, err)
	assert.False(t, needMore)
	assert.Equal(t, len(pkt), consumed)
	assert.Equal(t, uint16(5), req.Address)
	assert.Equal(t, []uint16{1, 2}, req.Values)
}

func TestParseRequest_WriteMultiByteCountMismatch(t *testing.T) {
	body := []byte{0x00, 0x05, 0x00, 0x02, 0x03, 0x00, 0x01, 0x00} // byteCount=3 but quantity=2 wants 4
	pkt := append([]byte{0x00, 0x01, 0x00, 0x00, 0x00, byte(2 + len(body)), 0x01, frame.FuncWriteMultiRegisters}, body...)

	_, _, _, err := ParseRequest(pkt)

	require.Error(t, err)
}

func TestParseRequest_UnsupportedFunctionCode(t *testing.T) {
	pkt := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x01, 0x99}

	_, _, _, err := ParseRequest(pkt)

	require.Error(t, err)
}

func TestEncodeException(t *testing.T) {
	req := Request{TransactionID: 3, UnitID: 1, Opcode: frame.FuncReadHoldingRegisters}

	resp := EncodeException(req, excIllegalAddress)

	assert.Equal(t, frame.FuncReadHoldingRegisters|0x80, resp[7])
	assert.Equal(t, uint8(excIllegalAddress), resp[8])
	assert.Equal(t, uint16(3), uint16(resp[0])<<8|uint16(resp[1]))
}
