package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLegacySerial_KnownModel(t *testing.T) {
	// reversed: 55,44,01,22,11 -> "5544012211"; positions 4..6 == "01" -> ModelAC
	serial, model := normalizeLegacySerial([]byte{11, 22, 1, 44, 55})
	assert.Equal(t, "5544012211", serial)
	assert.Equal(t, ModelAC, model)
}

func TestNormalizeLegacySerial_UnknownModelTrimsTrailingByte(t *testing.T) {
	// reversed: 55,44,30,22,11 -> "5544302211"; positions 4..6 == "30", unrecognized
	serial, model := normalizeLegacySerial([]byte{11, 22, 30, 44, 55})
	assert.Equal(t, ModelUnknown, model)
	assert.Equal(t, "554430221", serial) // trailing byte dropped
}

func TestNormalizeLegacySerial_14CharDefectPattern(t *testing.T) {
	// reversed: 220,210,99,200,150 -> "220"+"210"+"99"+"200"+"150" == 14 chars
	raw := []byte{150, 200, 99, 210, 220}
	serial, model := normalizeLegacySerial(raw)
	assert.Equal(t, "000000009", serial, "synthesized from the middle raw byte, then trailing byte dropped for the unknown model code")
	assert.Equal(t, ModelUnknown, model)
}

func TestDecodeSimpleInfo(t *testing.T) {
	data := []byte{
		0x01,             // id
		0x02,             // controller
		0x03,             // driver
		0x09,             // firmware
		11, 22, 1, 44, 55, // serial bytes
		0x00, 0x05, // usage count
		0x00, 0x00, // reserved
	}
	require.Equal(t, simpleInfoSize, len(data))

	info, err := DecodeSimpleInfo(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), info.ID)
	assert.Equal(t, uint8(2), info.Controller)
	assert.Equal(t, uint8(3), info.Driver)
	assert.Equal(t, uint8(9), info.Firmware)
	assert.Equal(t, uint16(5), info.UsageCount)
	assert.Equal(t, "5544012211", info.Serial)
	assert.Equal(t, ModelAC, info.Model)
}

func TestDecodeSimpleInfo_WrongSize(t *testing.T) {
	_, err := DecodeSimpleInfo(make([]byte, simpleInfoSize+1))
	require.Error(t, err)
}
