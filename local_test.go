package fastalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/fastalloc/testutil"
)

func TestAcquireRelease(t *testing.T) {
	h, err := Acquire()
	require.NoError(t, err)
	Release(h)

	again, err := Acquire()
	require.NoError(t, err)
	assert.Same(t, h, again)
	Release(again)

	t.Run("closed heap is dropped", func(t *testing.T) {
		h, err := Acquire()
		require.NoError(t, err)
		require.NoError(t, h.Close())
		Release(h)

		next, err := Acquire()
		require.NoError(t, err)
		assert.NotSame(t, h, next)
		Release(next)
	})
}

func TestPackageHelpers(t *testing.T) {
	p, err := Malloc(100)
	require.NoError(t, err)
	assert.Equal(t, 112, UsableSize(p))
	testutil.Fill(p, 100, 5)

	q, err := Realloc(p, 5000)
	require.NoError(t, err)
	assert.True(t, testutil.Check(q, 100, 5))
	assert.Equal(t, 5000, UsableSize(q))

	require.NoError(t, Free(q))
	require.NoError(t, Free(nil))
	assert.Zero(t, UsableSize(nil))

	r, err := Realloc(nil, 10)
	require.NoError(t, err)
	require.NoError(t, Free(r))
}

func TestPackageHelpers_Concurrent(t *testing.T) {
	var g errgroup.Group
	for i := range 8 {
		rng := testutil.NewRNG(int64(i))
		g.Go(func() error {
			for _, size := range rng.Sizes(200, 2048) {
				p, err := Malloc(size)
				if err != nil {
					return err
				}
				testutil.Fill(p, size, byte(size))
				if !testutil.Check(p, size, byte(size)) {
					t.Errorf("block of %d bytes corrupted", size)
				}
				if err := Free(p); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestSetDefaultOptions(t *testing.T) {
	idle.mu.Lock()
	saved := idle.heaps
	idle.heaps = nil
	idle.mu.Unlock()
	t.Cleanup(func() {
		SetDefaultOptions()
		idle.mu.Lock()
		idle.heaps = append(idle.heaps, saved...)
		idle.mu.Unlock()
	})

	SetDefaultOptions(WithLogger(nil), WithMemoryLimit(4096))
	_, err := Acquire()
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)

	SetDefaultOptions(WithLogger(nil))
	h, err := Acquire()
	require.NoError(t, err)
	Release(h)
}
