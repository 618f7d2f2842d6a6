// Package frame locates and validates complete wire frames inside a byte
// stream accumulated in a ringbuffer.RingBuffer. Each transport variant
// (RTU, TCP/MBAP, vendor serial) is a separate state-free function that
// consumes a RingBuffer and emits one decoded Envelope per call, or reports
// that more bytes are needed.
package frame

import (
	"time"

	"github.com/hantas-hq/gohantas/ringbuffer"
)

// Function codes shared by the RTU and TCP (MBAP) variants.
const (
	FuncReadHoldingRegisters = uint8(0x03)
	FuncReadInputRegisters = uint8(0x04)
	FuncWriteSingleRegister = uint8(0x06)
	FuncWriteMultiRegisters = uint8(0x10)
	FuncReadInfo = uint8(0x11) // vendor extension carried over Modbus function-code space
	FuncGraph = uint8(0x64)
	FuncGraphRes = uint8(0x65)
	FuncHighResGraph = uint8(0x66)

	exceptionBit = uint8(0x80)
)

// Vendor serial commands.
const (
	VendorReqCalData = uint8(0x00)
	VendorReqCalSetPoint = uint8(0x01)
	VendorReqCalSave = uint8(0x02)
	VendorReqCalTerminate = uint8(0x03)
	VendorReqSetData = uint8(0x04)
	VendorReqTorque = uint8(0x05)
	VendorRepAdc = uint8(0xA0)
	// VendorRepStatus and VendorRepEvent are unsolicited pushes the device
	// emits on its own schedule (status ticks, completed fastening events),
	// not request/reply pairs - the pipeline routes them to the user
	// callback with address 0 the same way any other unmatched frame is.
	VendorRepStatus = uint8(0xA1)
	VendorRepEvent = uint8(0xA2)

	// VendorOpcodeASCIITorque is a synthetic opcode assigned to the
	// decimal-ASCII "torque,unit\r\n" line the vendor serial transport's
	// torque stream emits instead of a framed packet.
	VendorOpcodeASCIITorque = uint8(0xFE)
)

// Envelope is the state-free output of a single successful frame
// reassembly: opcode, an optional register address, and the raw payload
// bytes between the header and the integrity trailer, ready for a codec in
// the codec package to decode.
type Envelope struct {
	Opcode uint8
	HasAddress bool
	Address uint16
	Payload []byte

	IsException bool
	ExceptionCode uint8
}

// Variant identifies which wire format a Framer reassembles.
type Variant int

const (
	// VariantRTU is Modbus RTU framing (3 byte header + CRC16 trailer).
	VariantRTU Variant = iota
	// VariantTCP is Modbus TCP / MBAP framing (8 byte header, length authoritative).
	VariantTCP
	// VariantVendor is the Hantas vendor serial framing (0x5A 0xA5 header, LE length).
	VariantVendor
)

// reassembleFunc consumes as much of rb as it can and either returns a
// complete Envelope (ok=true) or reports that no frame could yet be formed
// (ok=false). Implementations may remove bytes from rb even when ok=false
// (CRC resync, garbage-prefix scanning) — that removal is itself "progress"
// that the caller uses to reset its idle-timeout clock.
type reassembleFunc func(rb *ringbuffer.RingBuffer) (Envelope, bool)

func reassemblerFor(v Variant) reassembleFunc {
	switch v {
	case VariantTCP:
		return reassembleTCP
	case VariantVendor:
		return reassembleVendor
	default:
		return reassembleRTU
	}
}

// Framer wraps a transport variant's reassembleFunc with the idle-timeout
// resync behaviour required of an idle framer: a buffer that is non-empty but makes no
// progress for longer than ProcessTimeout is cleared, so a lost length byte
// can never desync the stream permanently.
type Framer struct {
	variant Variant
	reassemble reassembleFunc
	processTimeout time.Duration
	lastProgress time.Time
	now func() time.Time
}

// NewFramer creates a Framer for the given transport variant. processTimeout
// of zero disables idle-timeout resync (the caller is relying on some other
// mechanism, e.g. request-level timeout, to recover).
func NewFramer(variant Variant, processTimeout time.Duration) *Framer {
	return &Framer{
		variant: variant,
		reassemble: reassemblerFor(variant),
		processTimeout: processTimeout,
		now: time.Now,
	}
}

// Next attempts to produce the next complete frame from rb. It returns
// ok=false when more bytes are needed (or all buffered bytes were
// resync garbage). Call Next repeatedly (in a loop) after every transport
// read until it returns ok=false, to drain every frame already buffered.
func (f *Framer) Next(rb *ringbuffer.RingBuffer) (Envelope, bool) {
	before := rb.Available()
	env, ok := f.reassemble(rb)
	after := rb.Available()

	madeProgress := ok || after != before
	if madeProgress {
		f.lastProgress = f.now()
		return env, ok
	}

	if before > 0 && f.processTimeout > 0 {
		if f.lastProgress.IsZero() {
			f.lastProgress = f.now()
		}
		if f.now().Sub(f.lastProgress) > f.processTimeout {
			rb.Clear()
			f.lastProgress = f.now()
		}
	}
	return Envelope{}, false
}

func isException(opcode uint8) (functionCode uint8, isExc bool) {
	if opcode&exceptionBit != 0 {
		return opcode &^ exceptionBit, true
	}
	return opcode, false
}

// ReplyOpcode returns the opcode a response to a request with the given
// opcode is expected to carry, per variant. RTU/TCP echo the identical byte;
// vendor serial sets the high bit on the command byte.
func ReplyOpcode(variant Variant, requestOpcode uint8) uint8 {
	if variant == VariantVendor {
		return requestOpcode | exceptionBit
	}
	return requestOpcode
}
