package codec

import "github.com/hantas-hq/gohantas/wire"

const deviceInfoSize = 200

// DeviceInfo is the Gen2 device-info record: a fixed 200 byte
// payload describing the driver (the torque tool itself) and its
// controller, plus derived identification fields.
type DeviceInfo struct {
	SystemWord uint16

	DriverID uint8
	DriverModel uint16
	DriverModelName string
	DriverSerial string

	ControllerID uint8
	ControllerName string
	ControllerSerial string

	Firmware Firmware
	ProductionDate string // "YYYYMMDD"
	Advance bool
	MAC MAC

	EventDataRevision uint8
	Manufacturer string
}

// DecodeDeviceInfo parses a 200 byte DeviceInfo payload. Returns a
// *DecodeError if data is not exactly 200 bytes.
func DecodeDeviceInfo(data []byte) (DeviceInfo, error) {
	if err := expectSize("DeviceInfo", data, deviceInfoSize); err != nil {
		return DeviceInfo{}, err
	}
	r := wire.NewReader(data)

	var info DeviceInfo
	var err error

	if info.SystemWord, err = r.U16(); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.DriverID, err = r.U8(); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.DriverModel, err = r.U16(); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.DriverModelName, err = r.ReadASCII(32); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.DriverSerial, err = r.ReadASCII(10); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.ControllerID, err = r.U8(); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.ControllerName, err = r.ReadASCII(21); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.ControllerSerial, err = r.ReadASCII(10); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.Firmware.Major, err = r.U8(); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.Firmware.Minor, err = r.U8(); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.Firmware.Patch, err = r.U8(); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.ProductionDate, err = r.ReadASCII(8); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	advance, err := r.U8()
	if err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	info.Advance = advance != 0
	macBytes, err := r.Bytes(6)
	if err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	copy(info.MAC[:], macBytes)
	if info.EventDataRevision, err = r.U8(); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if info.Manufacturer, err = r.ReadASCII(16); err != nil {
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	if err := r.Skip(86); err != nil { // reserved
		return DeviceInfo{}, wrapFieldError("DeviceInfo", err)
	}
	return info, nil
}
