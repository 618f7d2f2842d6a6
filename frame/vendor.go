package frame

import "github.com/hantas-hq/gohantas/ringbuffer"

const (
	vendorHeaderLen = 4 // 0x5A, 0xA5, lenLo, lenHi
	vendorHeaderByte0 = 0x5A
	vendorHeaderByte1 = 0xA5

	// asciiTorqueLineMaxLen bounds the scan for a "\r\n" terminator on the
	// decimal torque line fallback path, so a stream that never terminates a
	// line can't stall the framer forever waiting for more bytes.
	asciiTorqueLineMaxLen = 64
)

// reassembleVendor implements the Hantas vendor serial variant. Two
// distinct encodings share this transport: framed packets (0x5A 0xA5 header,
// little-endian length, opcode, payload) and, on some firmware revisions
// streaming live torque, a plain decimal ASCII line ("123.4\r\n"). Which one
// is attempted first is not specified; bytes 0x30-0x39 (ASCII '0'-'9') never
// collide with the 0x5A header byte, so the two paths are distinguished
// unambiguously by the leading byte and the choice of attempt order has no
// observable effect.
func reassembleVendor(rb *ringbuffer.RingBuffer) (Envelope, bool) {
	if rb.Available() < 1 {
		return Envelope{}, false
	}
	b0, _ := rb.Peek(0)

	if b0 >= 0x30 && b0 <= 0x39 {
		return reassembleASCIITorqueLine(rb)
	}

	if b0 != vendorHeaderByte0 {
		_ = rb.Remove(1)
		return Envelope{}, false
	}
	if rb.Available() < 2 {
		return Envelope{}, false
	}
	b1, _ := rb.Peek(1)
	if b1 != vendorHeaderByte1 {
		_ = rb.Remove(1)
		return Envelope{}, false
	}

	if rb.Available() < vendorHeaderLen {
		return Envelope{}, false
	}
	lenLo, _ := rb.Peek(2)
	lenHi, _ := rb.Peek(3)
	length := int(lenLo) | int(lenHi)<<8
	total := vendorHeaderLen + length

	if length < 1 {
		// A length that can't even hold the opcode byte is not a frame we
		// can interpret; drop the header and resync on the next call.
		_ = rb.Remove(vendorHeaderLen)
		return Envelope{}, false
	}
	if rb.Available() < total {
		return Envelope{}, false
	}

	region, _ := rb.Read(total)
	opcode := region[4]
	return Envelope{
		Opcode: opcode,
		Payload: append([]byte(nil), region[5:total]...),
	}, true
}

// reassembleASCIITorqueLine looks for a "\r\n"-terminated decimal line
// starting at the buffer's current front. If no terminator has arrived
// within asciiTorqueLineMaxLen bytes, the lead byte is treated as garbage
// (not actually the start of a torque line) and dropped so the framer can
// try again from the next byte.
func reassembleASCIITorqueLine(rb *ringbuffer.RingBuffer) (Envelope, bool) {
	avail := rb.Available()
	limit := avail
	if limit > asciiTorqueLineMaxLen {
		limit = asciiTorqueLineMaxLen
	}

	for i := 1; i < limit; i++ {
		cur, _ := rb.Peek(i)
		if cur != '\n' {
			continue
		}
		prev, _ := rb.Peek(i - 1)
		if prev != '\r' {
			continue
		}
		total := i + 1
		region, _ := rb.Read(total)
		return Envelope{
			Opcode: VendorOpcodeASCIITorque,
			Payload: append([]byte(nil), region[:total-2]...),
		}, true
	}

	if avail >= asciiTorqueLineMaxLen {
		// Never terminated: this wasn't a torque line after all.
		_ = rb.Remove(1)
	}
	return Envelope{}, false
}
