package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32CMasked(t *testing.T) {
	data := []byte("0123456789abcdef")

	masked := append([]byte(nil), data...)
	copy(masked[4:8], []byte{0, 0, 0, 0})

	assert.Equal(t, CRC32C(masked), CRC32CMasked(data, 4, 4))
	assert.Equal(t, CRC32C(data), CRC32CMasked(data, 0, 0))
	assert.NotEqual(t, CRC32C(data), CRC32CMasked(data, 4, 4))
}

func TestCRC32C_KnownValue(t *testing.T) {
	// Standard check value for CRC-32C.
	assert.Equal(t, uint32(0xE3069283), CRC32C([]byte("123456789")))
}
