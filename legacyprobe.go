package hantas

import (
	"github.com/hantas-hq/gohantas/codec"
	"github.com/hantas-hq/gohantas/frame"
)

// legacyProbeState is the vendor-serial sub-state machine this module implements:
// disconnected -> calibration -> setting -> connected. It is an
// implementation detail of an OptionLegacy pipeline and is never
// observed by callers directly (the pipeline only surfaces the coarse
// Closed/Connecting/Connected state via OnConnectionChanged).
type legacyProbeState int

const (
	legacyDisconnected legacyProbeState = iota
	legacyCalibration
	legacySetting
	legacyConnected
)

// legacyProbe drives the calibration/setting handshake a legacy vendor
// serial device needs before it will be treated as Connected. It requests a
// calibration record first and a setting record second (the setting reply is
// decoded with the CalData layout), advancing on these predicates: a non-zero observed
// max-torque, and a firmware string other than the factory-default
// "0.0.0".
//
// Ordering when calibration-mode and torque-mode resync rules interleave on
// reconnection is left ambiguous by the legacy protocol; this implementation
// always completes the calibration probe before the setting probe, never
// interleaving the two.
type legacyProbe struct {
	state legacyProbeState
}

func newLegacyProbe() *legacyProbe {
	return &legacyProbe{state: legacyDisconnected}
}

// nextOpcode reports which vendor request the pipeline should enqueue next
// to advance the probe, or ok=false once the probe is past the calibration
// stage (legacySetting or legacyConnected). It does not track requests in
// flight: it returns the same opcode until a reply advances the state.
func (p *legacyProbe) nextOpcode() (opcode uint8, ok bool) {
	switch p.state {
	case legacyDisconnected:
		return frame.VendorReqCalData, true
	case legacyCalibration:
		return frame.VendorReqSetData, true
	default:
		return 0, false
	}
}

// observeCalData advances the probe past the calibration stage once a
// non-zero max-torque has been seen.
func (p *legacyProbe) observeCalData(c codec.CalData) {
	if p.state == legacyDisconnected && c.MaxTorque != 0 {
		p.state = legacyCalibration
	}
}

// observeSetData advances the probe to legacyConnected once the firmware
// string carried in the setting record is no longer the factory-default
// "0.0.0". The setting record shares CalData's layout (it
// too ends in a firmware trailer), so the same codec decodes it.
func (p *legacyProbe) observeSetData(c codec.CalData) {
	if p.state == legacyCalibration && c.Firmware.String() != "0.0.0" {
		p.state = legacySetting
		p.state = legacyConnected
	}
}

func (p *legacyProbe) connected() bool {
	return p.state == legacyConnected
}
