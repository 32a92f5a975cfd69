package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntToUint32(t *testing.T) {
	t.Run("valid zero", func(t *testing.T) {
		got, err := IntToUint32(0)
		assert.NoError(t, err)
		assert.Equal(t, uint32(0), got)
	})

	t.Run("valid max int32", func(t *testing.T) {
		got, err := IntToUint32(math.MaxInt32)
		assert.NoError(t, err)
		assert.Equal(t, uint32(math.MaxInt32), got)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := IntToUint32(-1)
		assert.ErrorIs(t, err, ErrOverflow)
	})

	if math.MaxInt > math.MaxUint32 {
		t.Run("invalid too large", func(t *testing.T) {
			big := math.MaxInt
			_, err := IntToUint32(big)
			assert.ErrorIs(t, err, ErrOverflow)
		})
	}
}

func TestIntToUintptr(t *testing.T) {
	got, err := IntToUintptr(4096)
	assert.NoError(t, err)
	assert.Equal(t, uintptr(4096), got)

	_, err = IntToUintptr(-8)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestUintptrToInt(t *testing.T) {
	got, err := UintptrToInt(1025)
	assert.NoError(t, err)
	assert.Equal(t, 1025, got)

	_, err = UintptrToInt(^uintptr(0))
	assert.ErrorIs(t, err, ErrOverflow)

	assert.Equal(t, 7, MustUintptrToInt(7))
	assert.Panics(t, func() { MustUintptrToInt(^uintptr(0)) })
}
