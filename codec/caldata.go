package codec

import "github.com/hantas-hq/gohantas/wire"

// CalData is a calibration record. Offset and the Positive/Negative
// calibration word arrays are transmitted as 16-bit values for an
// integrated-body sensor and 32-bit values for a separated-body sensor; both
// are widened to uint32 in this struct, with Body recording which wire width
// was actually used.
type CalData struct {
	Body         BodyType
	ModelID      uint8
	MaxTorque    uint32
	BodySerial   uint32
	SensorSerial uint32
	Unit         uint8
	PointIndex   uint8
	Offset       uint32
	Positive     [5]uint32
	Negative     [5]uint32
	Firmware     Firmware
}

const calDataPointCount = 5

// DecodeCalData parses a CalData payload. The body-type byte at the start of
// the payload determines whether Offset/Positive/Negative fields that follow
// are 16-bit (BodyIntegrated) or 32-bit (BodySeparated) wide.
func DecodeCalData(data []byte) (CalData, error) {
	r := wire.NewReader(data)
	var c CalData

	bodyRaw, err := r.U8()
	if err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}
	c.Body = bodyTypeFromWire(bodyRaw)

	if c.ModelID, err = r.U8(); err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}
	if c.MaxTorque, err = r.U32(); err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}
	if c.BodySerial, err = r.U32(); err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}
	if c.SensorSerial, err = r.U32(); err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}
	if c.Unit, err = r.U8(); err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}
	if c.PointIndex, err = r.U8(); err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}

	readWord := func() (uint32, error) {
		if c.Body == BodySeparated {
			return r.U32()
		}
		v, err := r.U16()
		return uint32(v), err
	}

	offset, err := readWord()
	if err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}
	c.Offset = offset

	for i := 0; i < calDataPointCount; i++ {
		v, err := readWord()
		if err != nil {
			return CalData{}, wrapFieldError("CalData", err)
		}
		c.Positive[i] = v
	}
	for i := 0; i < calDataPointCount; i++ {
		v, err := readWord()
		if err != nil {
			return CalData{}, wrapFieldError("CalData", err)
		}
		c.Negative[i] = v
	}

	if c.Firmware.Major, err = r.U8(); err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}
	if c.Firmware.Minor, err = r.U8(); err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}
	if c.Firmware.Patch, err = r.U8(); err != nil {
		return CalData{}, wrapFieldError("CalData", err)
	}

	if r.Remaining() != 0 {
		return CalData{}, &DecodeError{Record: "CalData", Expected: len(data) - r.Remaining(), Got: len(data)}
	}
	return c, nil
}
