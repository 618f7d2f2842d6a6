package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asciiField(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

func buildDeviceInfo() []byte {
	buf := make([]byte, 0, deviceInfoSize)
	buf = append(buf, 0x00, 0x2A) // system word
	buf = append(buf, 0x01)       // driver id
	buf = append(buf, 0x00, 0x05) // driver model
	buf = append(buf, asciiField("HT-300", 32)...)
	buf = append(buf, asciiField("DRV000001", 10)...)
	buf = append(buf, 0x02)       // controller id
	buf = append(buf, asciiField("Hantas Controller", 21)...)
	buf = append(buf, asciiField("CTL000001", 10)...)
	buf = append(buf, 1, 2, 3) // firmware
	buf = append(buf, asciiField("20260115", 8)...)
	buf = append(buf, 0x01)                         // advance
	buf = append(buf, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF) // mac
	buf = append(buf, 0x04)                         // event data revision
	buf = append(buf, asciiField("Hantas", 16)...)
	buf = append(buf, make([]byte, 86)...) // reserved
	return buf
}

func TestDecodeDeviceInfo(t *testing.T) {
	data := buildDeviceInfo()
	require.Equal(t, deviceInfoSize, len(data))

	info, err := DecodeDeviceInfo(data)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x2A), info.SystemWord)
	assert.Equal(t, uint8(1), info.DriverID)
	assert.Equal(t, "HT-300", info.DriverModelName)
	assert.Equal(t, "DRV000001", info.DriverSerial)
	assert.Equal(t, "Hantas Controller", info.ControllerName)
	assert.Equal(t, Firmware{1, 2, 3}, info.Firmware)
	assert.Equal(t, "1.2.3", info.Firmware.String())
	assert.Equal(t, "20260115", info.ProductionDate)
	assert.True(t, info.Advance)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", info.MAC.String())
	assert.Equal(t, "Hantas", info.Manufacturer)
}

func TestDecodeDeviceInfo_WrongSize(t *testing.T) {
	_, err := DecodeDeviceInfo(make([]byte, deviceInfoSize-1))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}
