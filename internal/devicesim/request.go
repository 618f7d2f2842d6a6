// Package devicesim is an in-process stand-in for a Hantas torque device,
// used by integration tests that want to exercise a Pipeline against
// something that actually speaks the wire protocol rather than a mocked
// transport.Adapter. It implements the server side of Modbus-TCP (MBAP):
// decoding requests, maintaining register state, and encoding responses.
//
// Grounded on server/server.go and server/modbus.go's
// Server/connection/ModbusTCPAssembler split, adapted from a generic
// packet.Request/packet.Response handler to one that understands the
// specific request shapes Pipeline.buildRequest produces.
package devicesim

import (
	"encoding/binary"
	"fmt"

	"github.com/hantas-hq/gohantas/frame"
)

// mbapHeaderLen is tid(2)+pid(2)+len(2)+uid(1)+fc(1), the same constant
// frame.reassembleTCP uses, mirrored here for the request side.
const mbapHeaderLen = 8

// Request is one decoded Modbus-TCP request addressed at the simulated
// device. Which of Quantity/Value/Values is populated depends on Opcode.
type Request struct {
	TransactionID uint16
	UnitID uint8
	Opcode uint8
	Address uint16
	Quantity uint16 // read*, write-multi
	Value uint16 // write-single
	Values []uint16 // write-multi
}

// ParseRequest decodes one MBAP request from the front of buf and reports
// how many bytes it consumed. needMore is true when buf does not yet hold a
// complete frame (the caller should read more and retry), mirroring
// frame.reassembleTCP's "length field is authoritative" approach but for a
// request body shape instead of a response's.
func ParseRequest(buf []byte) (req Request, consumed int, needMore bool, err error) {
	if len(buf) < mbapHeaderLen {
		return Request{}, 0, true, nil
	}
	mbapLen := int(binary.BigEndian.Uint16(buf[4:6]))
	total := 6 + mbapLen
	if total < mbapHeaderLen {
		return Request{}, 0, false, fmt.Errorf("devicesim: degenerate MBAP length %d", mbapLen)
	}
	if len(buf) < total {
		return Request{}, 0, true, nil
	}

	req = Request{
		TransactionID: binary.BigEndian.Uint16(buf[0:2]),
		UnitID: buf[6],
		Opcode: buf[7],
	}
	body := buf[8:total]
	switch req.Opcode {
	case frame.FuncReadHoldingRegisters, frame.FuncReadInputRegisters, frame.FuncReadInfo:
		if len(body) != 4 {
			return Request{}, 0, false, fmt.Errorf("devicesim: read request body is %d bytes, want 4", len(body))
		}
		req.Address = binary.BigEndian.Uint16(body[0:2])
		req.Quantity = binary.BigEndian.Uint16(body[2:4])
	case frame.FuncWriteSingleRegister:
		if len(body) != 4 {
			return Request{}, 0, false, fmt.Errorf("devicesim: write-single body is %d bytes, want 4", len(body))
		}
		req.Address = binary.BigEndian.Uint16(body[0:2])
		req.Value = binary.BigEndian.Uint16(body[2:4])
	case frame.FuncWriteMultiRegisters:
		if len(body) < 5 {
			return Request{}, 0, false, fmt.Errorf("devicesim: write-multi body is %d bytes, want at least 5", len(body))
		}
		req.Address = binary.BigEndian.Uint16(body[0:2])
		req.Quantity = binary.BigEndian.Uint16(body[2:4])
		byteCount := int(body[4])
		if len(body) != 5+byteCount || byteCount != int(req.Quantity)*2 {
			return Request{}, 0, false, fmt.Errorf("devicesim: write-multi byte count %d does not match quantity %d", byteCount, req.Quantity)
		}
		req.Values = make([]uint16, req.Quantity)
		for i := range req.Values {
			req.Values[i] = binary.BigEndian.Uint16(body[5+i*2 : 7+i*2])
		}
	default:
		return Request{}, 0, false, fmt.Errorf("devicesim: unsupported function code 0x%02X", req.Opcode)
	}
	return req, total, false, nil
}

// EncodeResponse builds the MBAP response to a read request, given the
// register bytes (already big-endian, ready for the wire). Read responses
// carry a byte-count prefix a request body never does.
func EncodeResponse(req Request, registerBytes []byte) []byte {
	body := append([]byte{byte(len(registerBytes))}, registerBytes...)
	return mbapResponse(req, body)
}

// EncodeWriteSingleAck builds the write_single_register echo response:
// address and value unchanged from the request.
func EncodeWriteSingleAck(req Request) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], req.Address)
	binary.BigEndian.PutUint16(body[2:4], req.Value)
	return mbapResponse(req, body)
}

// EncodeWriteMultiAck builds the write_multi_registers ack response:
// address and quantity, no echoed data.
func EncodeWriteMultiAck(req Request) []byte {
	body := make([]byte, 4)
	binary.BigEndian.PutUint16(body[0:2], req.Address)
	binary.BigEndian.PutUint16(body[2:4], req.Quantity)
	return mbapResponse(req, body)
}

// EncodeException builds a 1 byte exception response, opcode with the high
// bit set.
func EncodeException(req Request, code uint8) []byte {
	pkt := make([]byte, 9)
	binary.BigEndian.PutUint16(pkt[0:2], req.TransactionID)
	binary.BigEndian.PutUint16(pkt[4:6], 3)
	pkt[6] = req.UnitID
	pkt[7] = req.Opcode | 0x80
	pkt[8] = code
	return pkt
}

func mbapResponse(req Request, body []byte) []byte {
	pkt := make([]byte, 8+len(body))
	binary.BigEndian.PutUint16(pkt[0:2], req.TransactionID)
	binary.BigEndian.PutUint16(pkt[2:4], 0)
	binary.BigEndian.PutUint16(pkt[4:6], uint16(2+len(body)))
	pkt[6] = req.UnitID
	pkt[7] = req.Opcode
	copy(pkt[8:], body)
	return pkt
}
