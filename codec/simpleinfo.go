package codec

import (
	"fmt"

	"github.com/hantas-hq/gohantas/wire"
)

const simpleInfoSize = 13

// SimpleInfo is the legacy 13 byte info record.
type SimpleInfo struct {
	ID uint8
	Controller uint8
	Driver uint8
	Firmware uint8 // legacy single-byte firmware tag, unlike DeviceInfo's 3-part Firmware
	Serial string
	Model Model
	UsageCount uint16
}

// DecodeSimpleInfo parses a 13 byte SimpleInfo payload, applying the legacy
// serial-number normalization quirk: the five raw
// serial bytes are reversed and each formatted as (at least) two decimal
// digits; a 14-character result is a known defect pattern worked around by
// synthesizing a 10-character serial from the middle raw byte alone.
func DecodeSimpleInfo(data []byte) (SimpleInfo, error) {
	if err := expectSize("SimpleInfo", data, simpleInfoSize); err != nil {
		return SimpleInfo{}, err
	}
	r := wire.NewReader(data)

	var info SimpleInfo
	var err error
	if info.ID, err = r.U8(); err != nil {
		return SimpleInfo{}, wrapFieldError("SimpleInfo", err)
	}
	if info.Controller, err = r.U8(); err != nil {
		return SimpleInfo{}, wrapFieldError("SimpleInfo", err)
	}
	if info.Driver, err = r.U8(); err != nil {
		return SimpleInfo{}, wrapFieldError("SimpleInfo", err)
	}
	if info.Firmware, err = r.U8(); err != nil {
		return SimpleInfo{}, wrapFieldError("SimpleInfo", err)
	}
	serialBytes, err := r.Bytes(5)
	if err != nil {
		return SimpleInfo{}, wrapFieldError("SimpleInfo", err)
	}
	if info.UsageCount, err = r.U16(); err != nil {
		return SimpleInfo{}, wrapFieldError("SimpleInfo", err)
	}
	if err := r.Skip(2); err != nil { // reserved
		return SimpleInfo{}, wrapFieldError("SimpleInfo", err)
	}

	info.Serial, info.Model = normalizeLegacySerial(serialBytes)
	return info, nil
}

// normalizeLegacySerial implements the legacy serial-number
// normalization: reverse the five raw bytes, format each with a minimum of
// two decimal digits, and concatenate. A 14-character result means one byte
// rendered with three digits (a known defect in the original firmware);
// that case is discarded in favor of a synthesized 10-character serial built
// from the middle raw byte alone. The model code is read from positions
// 4..6 of whichever serial string results; an unrecognized code falls back
// to ModelUnknown ("AD") with the serial's trailing byte dropped.
func normalizeLegacySerial(raw []byte) (string, Model) {
	var sb []byte
	for i := len(raw) - 1; i >= 0; i-- {
		sb = append(sb, []byte(fmt.Sprintf("%02d", raw[i]))...)
	}
	serial := string(sb)

	if len(serial) == 14 {
		middle := raw[len(raw)/2]
		serial = fmt.Sprintf("%010d", middle)
	}

	if len(serial) >= 6 {
		if model, ok := modelFromWire(serial[4:6]); ok {
			return serial, model
		}
	}
	if len(serial) > 0 {
		serial = serial[:len(serial)-1]
	}
	return serial, ModelUnknown
}
