package codec

import (
	"github.com/hantas-hq/gohantas/wire"
)

// Status is a live device status snapshot. Field availability depends on
// generation: Model and IsLock are Gen2-only and left at their zero value
// for Gen1/Gen1+.
type Status struct {
	Generation Generation

	Torque float64 // engineering units
	Speed uint16
	Current uint16
	Preset uint8
	Model uint8 // Gen2 only
	TorqueUp bool
	FastenOk bool
	Ready bool
	Run bool
	Alarm uint8
	Direction Direction
	RemainScrew uint8
	Input Bitmap16
	Output Bitmap16
	Temperature float64
	IsLock bool // Gen2 only
}

const (
	statusGen1Size = 18 // 17 body bytes + 1 trailing checksum byte
	statusGen1PlusSize = 19 // Gen1 body with a 4 byte (f32) temperature field, no trailing checksum
	statusGen2Size = 23
)

func flagsToStatus(flags uint8) (torqueUp, fastenOk, ready, run bool) {
	return flags&0x01 != 0, flags&0x02 != 0, flags&0x04 != 0, flags&0x08 != 0
}

// DecodeStatusGen1 parses the Gen1 status layout (u16*0.01 torque, u16
// temperature, 1 byte trailing additive checksum). The checksum covers only
// the bytes actually consumed by the record (data[:len-1]).
func DecodeStatusGen1(data []byte) (Status, error) {
	if err := expectSize("Status(Gen1)", data, statusGen1Size); err != nil {
		return Status{}, err
	}
	if err := verifyChecksumByte("Status(Gen1)", data[:len(data)-1], data[len(data)-1]); err != nil {
		return Status{}, err
	}
	return decodeStatusGen1Body(data[:len(data)-1], Gen1, false)
}

// DecodeStatusLegacySimple is the alternate legacy decoder that checksums
// the *entire* input slice (including the trailing checksum byte itself)
// rather than just the consumed span. Both behaviors are preserved as a
// deliberately unresolved ambiguity rather than picking one.
func DecodeStatusLegacySimple(data []byte) (Status, error) {
	if err := expectSize("Status(LegacySimple)", data, statusGen1Size); err != nil {
		return Status{}, err
	}
	if err := verifyChecksumByte("Status(LegacySimple)", data, data[len(data)-1]); err != nil {
		return Status{}, err
	}
	return decodeStatusGen1Body(data[:len(data)-1], Gen1, false)
}

func verifyChecksumByte(record string, span []byte, want uint8) error {
	got := byte(wire.AdditiveChecksum(span))
	if got != want {
		return &DecodeError{Record: record + " checksum", Expected: int(want), Got: int(got)}
	}
	return nil
}

func decodeStatusGen1Body(body []byte, gen Generation, wideTemperature bool) (Status, error) {
	r := wire.NewReader(body)
	var s Status
	s.Generation = gen

	torqueRaw, err := r.U16()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.Torque = float64(torqueRaw) * 0.01

	if s.Speed, err = r.U16(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	if s.Current, err = r.U16(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	if s.Preset, err = r.U8(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	flags, err := r.U8()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.TorqueUp, s.FastenOk, s.Ready, s.Run = flagsToStatus(flags)
	if s.Alarm, err = r.U8(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	dir, err := r.U8()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.Direction = directionFromWire(dir)
	if s.RemainScrew, err = r.U8(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	inBits, err := r.U16()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.Input = bitmap16FromUint16(inBits)
	outBits, err := r.U16()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.Output = bitmap16FromUint16(outBits)

	if wideTemperature {
		temp, err := r.F32()
		if err != nil {
			return Status{}, wrapFieldError("Status", err)
		}
		s.Temperature = float64(temp)
	} else {
		temp, err := r.U16()
		if err != nil {
			return Status{}, wrapFieldError("Status", err)
		}
		s.Temperature = float64(temp)
	}

	if r.Remaining() != 0 {
		return Status{}, &DecodeError{Record: "Status", Expected: len(body) - r.Remaining(), Got: len(body)}
	}
	return s, nil
}

// DecodeStatusGen1Plus parses the Gen1+ layout: identical to Gen1 except
// temperature is a 4 byte big-endian float instead of a u16, and carries no
// trailing checksum byte.
func DecodeStatusGen1Plus(data []byte) (Status, error) {
	if err := expectSize("Status(Gen1+)", data, statusGen1PlusSize); err != nil {
		return Status{}, err
	}
	return decodeStatusGen1Body(data, Gen1Plus, true)
}

// DecodeStatusGen2 parses the Gen2 layout: f32 torque, a Model byte, f32
// temperature, and an IsLock byte, none of which exist in Gen1/Gen1+.
func DecodeStatusGen2(data []byte) (Status, error) {
	if err := expectSize("Status(Gen2)", data, statusGen2Size); err != nil {
		return Status{}, err
	}
	r := wire.NewReader(data)
	var s Status
	s.Generation = Gen2

	torque, err := r.F32()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.Torque = float64(torque)
	if s.Speed, err = r.U16(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	if s.Current, err = r.U16(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	if s.Preset, err = r.U8(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	if s.Model, err = r.U8(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	flags, err := r.U8()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.TorqueUp, s.FastenOk, s.Ready, s.Run = flagsToStatus(flags)
	if s.Alarm, err = r.U8(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	dir, err := r.U8()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.Direction = directionFromWire(dir)
	if s.RemainScrew, err = r.U8(); err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	inBits, err := r.U16()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.Input = bitmap16FromUint16(inBits)
	outBits, err := r.U16()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.Output = bitmap16FromUint16(outBits)
	temp, err := r.F32()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.Temperature = float64(temp)
	isLock, err := r.U8()
	if err != nil {
		return Status{}, wrapFieldError("Status", err)
	}
	s.IsLock = isLock != 0

	if r.Remaining() != 0 {
		return Status{}, &DecodeError{Record: "Status(Gen2)", Expected: statusGen2Size - r.Remaining(), Got: statusGen2Size}
	}
	return s, nil
}
