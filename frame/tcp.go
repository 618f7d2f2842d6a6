package frame

import "github.com/hantas-hq/gohantas/ringbuffer"

const tcpHeaderLen = 8 // tid(2), pid(2), len(2), uid(1), opcode(1)

// reassembleTCP implements the TCP / MBAP variant. The MBAP header
// carries its own authoritative length: bytes 4-5 (big-endian) count every
// byte from the unit id onward, so the total frame size is always
// tcpHeaderLen-2+mbapLen (the two length bytes themselves aren't included in
// their own count). There is no CRC trailer to validate - once that many
// bytes have arrived the frame is simply complete.
func reassembleTCP(rb *ringbuffer.RingBuffer) (Envelope, bool) {
	if rb.Available() < tcpHeaderLen {
		return Envelope{}, false
	}
	lenHi, _ := rb.Peek(4)
	lenLo, _ := rb.Peek(5)
	opcode, _ := rb.Peek(7)

	mbapLen := int(lenHi)<<8 | int(lenLo)
	total := 6 + mbapLen // tid(2)+pid(2)+len(2) plus mbapLen (uid+opcode+data)
	if total < tcpHeaderLen {
		// Degenerate length (doesn't even cover uid+opcode): not a frame we
		// can interpret; drop the header and resync.
		_ = rb.Remove(tcpHeaderLen)
		return Envelope{}, false
	}

	_, isExc := isException(opcode)

	var headerSkip int
	switch {
	case isExc:
		headerSkip = tcpHeaderLen
	case opcode == FuncReadHoldingRegisters, opcode == FuncReadInputRegisters, opcode == FuncReadInfo:
		headerSkip = tcpHeaderLen + 1 // past the byte-count prefix
	default:
		// Write responses and graph frames carry no count prefix of their
		// own; their payload starts immediately after the opcode.
		headerSkip = tcpHeaderLen
	}

	if rb.Available() < total {
		return Envelope{}, false
	}

	region, _ := rb.Read(total)

	if isExc {
		return Envelope{
			Opcode: opcode &^ exceptionBit,
			IsException: true,
			ExceptionCode: region[8],
		}, true
	}

	return Envelope{
		Opcode: opcode,
		Payload: append([]byte(nil), region[headerSkip:total]...),
	}, true
}
