package frame

import (
	"github.com/hantas-hq/gohantas/ringbuffer"
	"github.com/hantas-hq/gohantas/wire"
)

const rtuHeaderLen = 3 // id, opcode, byte0

// reassembleRTU implements the RTU variant: header is
// [id, opcode, byte0]; frame length depends on opcode; a trailing CRC16
// (lo, hi) must match the region preceding it.
//
// On a CRC mismatch the candidate frame is never emitted and exactly one
// byte is dropped from the front of the buffer so that repeated calls slide
// the search window forward and eventually resynchronise — the idle-timeout
// clear in Framer is the backstop for the case where no amount of sliding
// finds a valid frame.
func reassembleRTU(rb *ringbuffer.RingBuffer) (Envelope, bool) {
	if rb.Available() < rtuHeaderLen {
		return Envelope{}, false
	}
	opcode, _ := rb.Peek(1)
	byte0, _ := rb.Peek(2)

	fc, isExc := isException(opcode)

	var total, headerSkip int
	switch {
	case isExc:
		total, headerSkip = 5, 3
	case fc == FuncReadHoldingRegisters, fc == FuncReadInputRegisters, fc == FuncReadInfo:
		total, headerSkip = rtuHeaderLen+int(byte0)+2, 3
	case fc == FuncWriteSingleRegister, fc == FuncWriteMultiRegisters:
		total, headerSkip = 8, 2
	case fc == FuncGraph, fc == FuncGraphRes, fc == FuncHighResGraph:
		if rb.Available() < 4 {
			return Envelope{}, false
		}
		byte1, _ := rb.Peek(3)
		total, headerSkip = 4+(int(byte0)<<8|int(byte1))+2, 4
	default:
		// Unknown opcode: drop one byte and let the caller rescan; this
		// keeps the framer from stalling forever on an opcode it does not
		// recognise.
		_ = rb.Remove(1)
		return Envelope{}, false
	}

	if rb.Available() < total {
		return Envelope{}, false
	}

	region := make([]byte, total)
	for i := range region {
		region[i], _ = rb.Peek(i)
	}
	crcLo, crcHi := region[total-2], region[total-1]
	wantCRC := uint16(crcLo) | uint16(crcHi)<<8
	gotCRC := wire.CRC16(region[:total-2])
	if wantCRC != gotCRC {
		// Consume only the first byte so the next call re-attempts starting
		// one byte later, with every other buffered byte left in place.
		_ = rb.Remove(1)
		return Envelope{}, false
	}
	_ = rb.Remove(total)

	if isExc {
		return Envelope{
			Opcode: opcode &^ exceptionBit,
			IsException: true,
			ExceptionCode: region[2],
		}, true
	}

	return Envelope{
		Opcode: opcode,
		Payload: append([]byte(nil), region[headerSkip:total-2]...),
	}, true
}
