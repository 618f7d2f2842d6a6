package devicesim

import (
	"encoding/binary"
	"sync"

	"github.com/hantas-hq/gohantas/codec"
	"github.com/hantas-hq/gohantas/frame"
)

const (
	excIllegalFunction = 0x01
	excIllegalAddress = 0x02
	excIllegalValue = 0x03
)

// Device holds the simulated register banks and identification record a
// Hantas Gen2 controller would report. Zero value is not ready for use;
// construct with NewDevice.
type Device struct {
	mu sync.Mutex

	UnitID uint8
	Holding map[uint16]uint16
	Input map[uint16]uint16
	Info codec.DeviceInfo
}

// NewDevice returns a Device pre-populated with a plausible DeviceInfo
// record and zeroed register banks, addressable over the full uint16 range.
func NewDevice(unitID uint8) *Device {
	return &Device{
		UnitID: unitID,
		Holding: make(map[uint16]uint16),
		Input: make(map[uint16]uint16),
		Info: codec.DeviceInfo{
			SystemWord: 0x0001,
			DriverID: 1,
			DriverModel: 100,
			DriverModelName: "HT-100",
			DriverSerial: "SN0001",
			ControllerID: 1,
			ControllerName: "HT-CTRL",
			ControllerSerial: "CN0001",
			Firmware: codec.Firmware{Major: 2, Minor: 1, Patch: 0},
			ProductionDate: "20250101",
			Advance: false,
			MAC: codec.MAC{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
			EventDataRevision: 1,
			Manufacturer: "Hantas",
		},
	}
}

// SetHolding sets a contiguous span of holding registers starting at addr.
func (d *Device) SetHolding(addr uint16, values ...uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, v := range values {
		d.Holding[addr+uint16(i)] = v
	}
}

// SetInput sets a contiguous span of input registers starting at addr.
func (d *Device) SetInput(addr uint16, values ...uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, v := range values {
		d.Input[addr+uint16(i)] = v
	}
}

// Handle decodes req against the current register/info state and returns
// the raw response packet ready to write back to the caller, including
// exception responses - Handle itself never returns a transport-level error,
// since every decode failure upstream of this call already produced one.
func (d *Device) Handle(req Request) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch req.Opcode {
	case frame.FuncReadHoldingRegisters:
		return d.readRegisters(req, d.Holding)
	case frame.FuncReadInputRegisters:
		return d.readRegisters(req, d.Input)
	case frame.FuncReadInfo:
		if req.Address != 0 || req.Quantity != 100 {
			return EncodeException(req, excIllegalAddress)
		}
		return EncodeResponse(req, encodeDeviceInfo(d.Info))
	case frame.FuncWriteSingleRegister:
		d.Holding[req.Address] = req.Value
		return EncodeWriteSingleAck(req)
	case frame.FuncWriteMultiRegisters:
		for i, v := range req.Values {
			d.Holding[req.Address+uint16(i)] = v
		}
		return EncodeWriteMultiAck(req)
	default:
		return EncodeException(req, excIllegalFunction)
	}
}

func (d *Device) readRegisters(req Request, bank map[uint16]uint16) []byte {
	if req.Quantity == 0 || req.Quantity > 125 {
		return EncodeException(req, excIllegalValue)
	}
	out := make([]byte, int(req.Quantity)*2)
	for i := uint16(0); i < req.Quantity; i++ {
		binary.BigEndian.PutUint16(out[i*2:i*2+2], bank[req.Address+i])
	}
	return EncodeResponse(req, out)
}

// encodeDeviceInfo is the inverse of codec.DecodeDeviceInfo: same 200 byte
// field layout, written instead of read.
func encodeDeviceInfo(info codec.DeviceInfo) []byte {
	out := make([]byte, 200)
	binary.BigEndian.PutUint16(out[0:2], info.SystemWord)
	out[2] = info.DriverID
	binary.BigEndian.PutUint16(out[3:5], info.DriverModel)
	putASCII(out[5:37], info.DriverModelName)
	putASCII(out[37:47], info.DriverSerial)
	out[47] = info.ControllerID
	putASCII(out[48:69], info.ControllerName)
	putASCII(out[69:79], info.ControllerSerial)
	out[79] = info.Firmware.Major
	out[80] = info.Firmware.Minor
	out[81] = info.Firmware.Patch
	putASCII(out[82:90], info.ProductionDate)
	if info.Advance {
		out[90] = 1
	}
	copy(out[91:97], info.MAC[:])
	out[97] = info.EventDataRevision
	putASCII(out[98:114], info.Manufacturer)
	// out[114:200] stays zeroed, matching the reserved span DecodeDeviceInfo skips.
	return out
}

func putASCII(dst []byte, s string) {
	copy(dst, s)
}
