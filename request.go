package hantas

import (
	"time"

	"github.com/hantas-hq/gohantas/wire"
)

// RequestKey is a PendingRequest's de-duplication identity: opcode, register
// address (0 for non-register commands), and a 32-bit FNV-1a fingerprint of
// the exact wire bytes.
type RequestKey struct {
	Opcode uint8
	Address uint16
	Hash uint32
}

func newRequestKey(opcode uint8, address uint16, packet []byte) RequestKey {
	return RequestKey{Opcode: opcode, Address: address, Hash: wire.FNV1a32(packet)}
}

// PendingRequest is one in-flight command sitting in the pipeline's queue.
// Created by the public API methods, pushed into the queue, and from then
// on mutated only by the pipeline's worker goroutine.
type PendingRequest struct {
	Opcode uint8
	Address uint16
	Packet []byte
	Key RequestKey

	RetriesLeft int
	Activated bool
	ActivatedAt time.Time
	// NoAck requests are removed from the queue immediately after transmit
	// (fire-and-forget vendor commands with no reply form).
	NoAck bool
}
