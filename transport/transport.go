// Package transport provides the byte-transparent link adapters a Hantas
// pipeline drives: a raw RTU/vendor serial port and a Modbus-TCP (MBAP)
// socket. An Adapter's only job is open/close/send and to publish received
// bytes; framing and protocol semantics live above it.
package transport

import "context"

// TxRawFunc/RxRawFunc are raw diagnostic hooks, mirroring client.go's
// single-callback-field style (ClientHooks.BeforeWrite/AfterEachRead). Each
// adapter holds at most one of each.
type TxRawFunc func(data []byte)
type RxRawFunc func(data []byte)

// Adapter is the capability every transport variant exposes to the request
// pipeline: open a link, push bytes out, receive bytes in, and report
// connectivity changes. It deliberately says nothing about frames or
// protocol — that's C4/C8's job.
type Adapter interface {
	// Open establishes the underlying link. ctx bounds only the connection
	// attempt, per client.go's Client.Connect(ctx, address) convention.
	Open(ctx context.Context) error
	// Close tears the link down. Safe to call on an unopened or
	// already-closed adapter.
	Close() error
	// Send writes data to the link in one call.
	Send(data []byte) error
	// Receive returns the channel bytes arrive on. The channel is never
	// closed; a dropped link is reported on Connected instead.
	Receive() <-chan []byte
	// Connected returns the channel connectivity transitions are published
	// on: true on successful Open, false on Close or a read failure. A
	// failed Send is returned to the caller and publishes nothing here.
	Connected() <-chan bool
}
