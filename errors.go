package hantas

import "fmt"

// ErrorKind classifies an error delivered through Pipeline.OnError, per
// the error taxonomy (framer errors are never surfaced — they resync locally).
type ErrorKind int

const (
	// KindTransport is an open/write failure or peer-initiated close.
	KindTransport ErrorKind = iota
	// KindDecode is a codec size/range/CSV failure. The connection stays up.
	KindDecode
	// KindProtocol is a Modbus/vendor exception response.
	KindProtocol
	// KindPipeline is a queue failure or exhausted retries.
	KindPipeline
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindProtocol:
		return "protocol"
	case KindPipeline:
		return "pipeline"
	default:
		return "unknown"
	}
}

// TransportError wraps a transport.Adapter failure (open/write/peer close).
// Modeled on client.go's *ClientError: a thin Unwrap-capable
// box so callers can errors.Is/errors.As through to the underlying cause.
type TransportError struct{ Err error }

func (e *TransportError) Error() string { return fmt.Sprintf("hantas: transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a Modbus/vendor exception response: the device answered
// with the exception bit set, naming the opcode it was rejecting and the
// exception code it returned. Grounded on packet.ErrorResponseTCP/RTU's
// Function+Code shape, generalized into a single variant-agnostic type
// since the pipeline already knows which wire variant produced it.
type ProtocolError struct {
	Opcode uint8
	Code uint8
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("hantas: protocol: opcode 0x%02x exception 0x%02x", e.Opcode, e.Code)
}

// ModbusError is satisfied by ProtocolError; callers use errors.As against
// this interface the way client.go's callers do against packet.ModbusError.
type ModbusError interface {
	error
	modbusException()
}

func (e *ProtocolError) modbusException() {}

// PipelineError wraps a queue-layer failure (disposed queue, retries
// exhausted) with the opcode/address it concerned.
type PipelineError struct {
	Opcode uint8
	Address uint16
	Err error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("hantas: pipeline: opcode 0x%02x address %d: %v", e.Opcode, e.Address, e.Err)
}
func (e *PipelineError) Unwrap() error { return e.Err }
