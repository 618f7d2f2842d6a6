// Package hantas is a device-communication library for Hantas torque tools
// and meters: open a transport (serial RTU, Modbus-TCP, or the vendor framed
// serial link), issue typed requests, and receive decoded device records
// through a small callback dispatch table.
package hantas

import "time"

// Register chunking limits.
const (
	MaxReadRegisters = 125
	MaxWriteRegisters = 123
)

// Tick intervals. Modern (Gen2, Modbus-native) pipelines tick fast; legacy
// vendor-serial links tick slower since the device's own poll loop can't
// keep up with a tight tick.
const (
	ModernTickInterval = 20 * time.Millisecond
	LegacyTickInterval = 75 * time.Millisecond
)

// Timeouts and keep-alive parameters.
const (
	DefaultMessageTimeout = 1000 * time.Millisecond
	DefaultConnectTimeout = 5 * time.Second
	DefaultKeepAlivePeriod = 3 * time.Second
	DefaultKeepAliveTimeout = 10 * time.Second
	DefaultRetries = 3
	DefaultQueueCapacityHint = 32
	MaxQueueCapacityHint = 64
)

// Ring buffer sizing.
const (
	MinRingBufferSize = 4 * 1024
	MaxRingBufferSize = 16 * 1024
)
