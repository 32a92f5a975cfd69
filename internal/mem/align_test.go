package mem

import (
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestAlign(t *testing.T) {
	tests := []struct {
		x, align, up, down uintptr
	}{
		{0, 16, 0, 0},
		{1, 16, 16, 0},
		{16, 16, 16, 16},
		{17, 16, 32, 16},
		{4095, 4096, 4096, 0},
		{32769, 32768, 65536, 32768},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.x, tt.align), func(t *testing.T) {
			assert.Equal(t, tt.up, AlignUp(tt.x, tt.align))
			assert.Equal(t, tt.down, AlignDown(tt.x, tt.align))
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	assert.False(t, IsPowerOfTwo(0))
	assert.True(t, IsPowerOfTwo(1))
	assert.True(t, IsPowerOfTwo(32768))
	assert.False(t, IsPowerOfTwo(48))
}

func TestCopyAndZero(t *testing.T) {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = byte(i)
	}
	p := unsafe.Pointer(&buf[0])

	// Overlapping copy behaves like memmove.
	Copy(Add(p, 8), p, 16)
	assert.Equal(t, byte(0), buf[8])
	assert.Equal(t, byte(15), buf[23])

	Zero(Add(p, 32), 32)
	assert.Equal(t, make([]byte, 32), buf[32:])

	assert.Nil(t, Bytes(nil, 10))
	assert.Nil(t, Bytes(p, 0))
}
