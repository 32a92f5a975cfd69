package mmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAnon(t *testing.T) {
	m, err := MapAnon(100)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, PageSize(), m.Size())
	assert.Len(t, m.Bytes(), PageSize())
	assert.Zero(t, m.Addr()%uintptr(PageSize()))

	// Zero-filled and writable.
	b := m.Bytes()
	for _, v := range b {
		require.Zero(t, v)
	}
	b[0] = 0xAB
	b[len(b)-1] = 0xCD
	assert.Equal(t, byte(0xAB), m.Bytes()[0])

	assert.True(t, m.Contains(m.Addr()))
	assert.True(t, m.Contains(m.Addr()+uintptr(m.Size())-1))
	assert.False(t, m.Contains(m.Addr()+uintptr(m.Size())))
}

func TestMapAnon_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := MapAnon(size)
		assert.ErrorIs(t, err, ErrInvalidSize)
	}
}

func TestMapping_CloseIdempotent(t *testing.T) {
	m, err := MapAnon(PageSize() * 2)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
}

func TestMapping_Sub(t *testing.T) {
	ps := PageSize()
	m, err := MapAnon(2 * ps)
	require.NoError(t, err)
	defer m.Close()

	lo, err := m.Sub(0, ps)
	require.NoError(t, err)
	hi, err := m.Sub(ps, ps)
	require.NoError(t, err)

	assert.Equal(t, m.Addr(), lo.Addr())
	assert.Equal(t, lo.Addr()+uintptr(ps), hi.Addr())
	assert.Equal(t, ps, hi.Size())

	hi.Bytes()[0] = 0x5A
	assert.Equal(t, byte(0x5A), m.Bytes()[ps])

	// Closing a view leaves the parent mapped.
	require.NoError(t, hi.Close())
	assert.Equal(t, byte(0x5A), m.Bytes()[ps])

	for _, r := range [][2]int{{-1, ps}, {0, 0}, {ps, ps + 1}, {2 * ps, 1}} {
		_, err := m.Sub(r[0], r[1])
		assert.ErrorIs(t, err, ErrInvalidSize, "off=%d size=%d", r[0], r[1])
	}
}

func TestRoundUp(t *testing.T) {
	ps := PageSize()
	assert.Equal(t, ps, RoundUp(1))
	assert.Equal(t, ps, RoundUp(ps))
	assert.Equal(t, 2*ps, RoundUp(ps+1))
}

func TestOSReserver(t *testing.T) {
	m, err := OS.Reserve(3 * PageSize())
	require.NoError(t, err)
	assert.Equal(t, 3*PageSize(), m.Size())
	require.NoError(t, OS.Release(m))
}
