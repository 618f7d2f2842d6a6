package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC16(t *testing.T) {
	var testCases = []struct {
		name string
		whenData []byte
		expectCRC uint16
	}{
		{
			name: "example read-holding request frame (without CRC bytes)",
			whenData: []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A},
			expectCRC: 0xCDC5, // transmitted as C5 CD (low, high)
		},
		{
			name: "single byte",
			whenData: []byte{0x01},
			expectCRC: 0x807E,
		},
		{
			name: "empty",
			whenData: nil,
			expectCRC: 0xFFFF,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectCRC, CRC16(tc.whenData))
		})
	}
}

// TestCRC16_RoundTrip is a property test: for every byte
// sequence b, CRC(b) appended to b verifies as a valid RTU payload.
func TestCRC16_RoundTrip(t *testing.T) {
	samples := [][]byte{
		{0x01, 0x03, 0x00, 0x6B, 0x00, 0x03},
		{0x11, 0x00},
		{},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	for _, data := range samples {
		crc := CRC16(data)
		frame := append(append([]byte{}, data...), byte(crc), byte(crc>>8))

		payload := frame[:len(frame)-2]
		lo, hi := frame[len(frame)-2], frame[len(frame)-1]
		got := uint16(lo) | uint16(hi)<<8
		assert.Equal(t, CRC16(payload), got)
	}
}

func TestAdditiveChecksum(t *testing.T) {
	assert.Equal(t, uint32(0x01+0x02+0x03), AdditiveChecksum([]byte{0x01, 0x02, 0x03}))
	assert.Equal(t, uint32(0), AdditiveChecksum(nil))
}

func TestFNV1a32_differentPacketsDifferentHashes(t *testing.T) {
	a := FNV1a32([]byte{0x01, 0x03, 0x00, 0x00})
	b := FNV1a32([]byte{0x01, 0x03, 0x00, 0x01})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, FNV1a32([]byte{0x01, 0x03, 0x00, 0x00}))
}
