package hantas

import (
	"encoding/binary"

	"github.com/hantas-hq/gohantas/wire"
)

// buildRTURequest assembles a Modbus RTU request frame: id, function code,
// body, CRC16 trailer (low byte first). Grounded on
// packet.putReadRequestBytes's direct binary.BigEndian field layout.
func buildRTURequest(deviceID uint8, opcode uint8, body []byte) []byte {
	n := 2 + len(body)
	pkt := make([]byte, n+2)
	pkt[0] = deviceID
	pkt[1] = opcode
	copy(pkt[2:], body)
	crc := wire.CRC16(pkt[:n])
	pkt[n] = byte(crc)
	pkt[n+1] = byte(crc >> 8)
	return pkt
}

// buildTCPRequest assembles a Modbus TCP (MBAP) request frame: transaction
// id, protocol id (always zero), length (covers unit id through body),
// unit id, function code, body.
func buildTCPRequest(transactionID uint16, unitID uint8, opcode uint8, body []byte) []byte {
	pkt := make([]byte, 8+len(body))
	binary.BigEndian.PutUint16(pkt[0:2], transactionID)
	binary.BigEndian.PutUint16(pkt[2:4], 0)
	binary.BigEndian.PutUint16(pkt[4:6], uint16(2+len(body)))
	pkt[6] = unitID
	pkt[7] = opcode
	copy(pkt[8:], body)
	return pkt
}

// buildVendorRequest assembles a Hantas vendor serial request frame: the
// 0x5A 0xA5 header, little-endian length covering command+payload, command
// byte, payload.
func buildVendorRequest(opcode uint8, payload []byte) []byte {
	pkt := make([]byte, 4+1+len(payload))
	pkt[0] = 0x5A
	pkt[1] = 0xA5
	binary.LittleEndian.PutUint16(pkt[2:4], uint16(1+len(payload)))
	pkt[4] = opcode
	copy(pkt[5:], payload)
	return pkt
}

// readBody builds the [address(2), quantity(2)] body shared by
// read-holding/read-input requests.
func readBody(address, quantity uint16) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], address)
	binary.BigEndian.PutUint16(body[2:4], quantity)
	return body
}

// writeSingleBody builds the [address(2), value(2)] body for a
// write-single-register request.
func writeSingleBody(address, value uint16) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], address)
	binary.BigEndian.PutUint16(body[2:4], value)
	return body
}

// writeMultiBody builds the [address(2), quantity(2), byteCount(1), values...]
// body for a write-multi-registers request.
func writeMultiBody(address uint16, values []uint16) []byte {
	byteCount := len(values) * 2
	body := make([]byte, 5+byteCount)
	binary.BigEndian.PutUint16(body[0:2], address)
	binary.BigEndian.PutUint16(body[2:4], uint16(len(values)))
	body[4] = byte(byteCount)
	for i, v := range values {
		binary.BigEndian.PutUint16(body[5+i*2:7+i*2], v)
	}
	return body
}
