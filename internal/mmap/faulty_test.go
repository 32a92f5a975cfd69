package mmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaulty(t *testing.T) {
	ps := PageSize()

	t.Run("passes through by default", func(t *testing.T) {
		f := NewFaulty(nil)
		m, err := f.Reserve(ps + 1)
		require.NoError(t, err)
		assert.Equal(t, []int{2 * ps}, f.Sizes())

		require.NoError(t, f.Release(m))
		assert.Equal(t, 1, f.Released())
	})

	t.Run("fail after calls", func(t *testing.T) {
		f := NewFaulty(nil)
		f.SetFault(Fault{FailAfterCalls: 1})

		m, err := f.Reserve(ps)
		require.NoError(t, err)
		defer f.Release(m)

		_, err = f.Reserve(ps)
		assert.ErrorIs(t, err, ErrInjected)
		assert.Len(t, f.Sizes(), 1)
	})

	t.Run("fail above size", func(t *testing.T) {
		boom := errors.New("boom")
		f := NewFaulty(nil)
		f.SetFault(Fault{FailAfterCalls: -1, FailAboveSize: ps, Err: boom})

		_, err := f.Reserve(ps + 1)
		assert.ErrorIs(t, err, boom)

		m, err := f.Reserve(ps)
		require.NoError(t, err)
		require.NoError(t, f.Release(m))
	})

	t.Run("fail on release still unmaps", func(t *testing.T) {
		f := NewFaulty(nil)
		m, err := f.Reserve(ps)
		require.NoError(t, err)

		f.SetFault(Fault{FailAfterCalls: -1, FailOnRelease: true})
		assert.ErrorIs(t, f.Release(m), ErrInjected)
		assert.Nil(t, m.Bytes())
		assert.Equal(t, 1, f.Released())
	})
}
