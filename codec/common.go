package codec

import "fmt"

// Generation selects the wire layout of Status and Event records.
type Generation int

const (
	GenUnknown Generation = iota
	Gen1
	Gen1Plus
	Gen2
)

// FormatInfo.Count is defined inconsistently across the two device-info
// wire formats the pack documents; both are kept under distinct names
// rather than collapsed into one runtime-branched value (the decision is
// recorded in DESIGN.md).
const (
	FormatInfoCountLegacy = 54 // registers, legacy SimpleInfo-adjacent format
	FormatInfoCountGen2 = 100 // registers; DeviceInfo is the 200-byte/100-register form
)

// Direction is the rotation direction of a fastening operation. Zero value
// (DirectionUnknown) is also what an out-of-range wire value decodes to.
type Direction uint8

const (
	DirectionUnknown Direction = iota
	DirectionCW
	DirectionCCW
)

func directionFromWire(v uint8) Direction {
	switch v {
	case 1:
		return DirectionCW
	case 2:
		return DirectionCCW
	default:
		return DirectionUnknown
	}
}

// Model is the device model enumeration used by legacy SimpleInfo serial
// number normalization.
type Model string

const (
	ModelUnknown Model = "AD" // default/fallback model 
	ModelAC Model = "AC"
	ModelAE Model = "AE"
	ModelAF Model = "AF"
)

// knownModels maps the two-digit model code embedded in a normalized legacy
// serial number (positions 4..6) to the model it designates. The code is
// numeric (it comes from the all-decimal serial text), not the model's own
// short name.
var knownModels = map[string]Model{
	"01": ModelAC,
	"02": ModelAE,
	"03": ModelAF,
}

func modelFromWire(s string) (Model, bool) {
	m, ok := knownModels[s]
	return m, ok
}

// BodyType widens certain CalData fields from 16-bit to 32-bit when the
// hardware layout is Separated.
type BodyType uint8

const (
	BodyIntegrated BodyType = iota
	BodySeparated
)

func bodyTypeFromWire(v uint8) BodyType {
	if v == uint8(BodySeparated) {
		return BodySeparated
	}
	return BodyIntegrated
}

// Bitmap16 decomposes a 16-bit input/output register into 16 individual bool
// flags, bit 0 first, matching the device's digital I/O field layout.
type Bitmap16 [16]bool

func bitmap16FromUint16(v uint16) Bitmap16 {
	var b Bitmap16
	for i := 0; i < 16; i++ {
		b[i] = v&(1<<uint(i)) != 0
	}
	return b
}

// Firmware is a three-part major.minor.patch version, shared by DeviceInfo
// and CalData's firmware trailer.
type Firmware struct {
	Major, Minor, Patch uint8
}

// String renders "M.m.p", the Gen2 derived-field format.
func (f Firmware) String() string {
	return fmt.Sprintf("%d.%d.%d", f.Major, f.Minor, f.Patch)
}

// MAC is a 6 byte hardware address.
type MAC [6]byte

// String renders colon-separated hex, the Gen2 derived-field format.
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}
