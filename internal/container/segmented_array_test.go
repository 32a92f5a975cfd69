package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestSegmentedArray(t *testing.T) {
	sa := NewSegmentedArray[int]()
	assert.Nil(t, sa.Load(0))
	assert.Nil(t, sa.Load(1<<20))
	assert.Zero(t, sa.Cap())

	v := 42
	sa.Store(3*segmentSize+5, &v)
	assert.Equal(t, 4*segmentSize, sa.Cap())
	assert.Same(t, &v, sa.Load(3*segmentSize+5))
	assert.Nil(t, sa.Load(5))

	sa.Store(3*segmentSize+5, nil)
	assert.Nil(t, sa.Load(3*segmentSize+5))
}

func TestSegmentedArray_Concurrent(t *testing.T) {
	sa := NewSegmentedArray[int]()
	values := make([]int, 4*segmentSize)

	var g errgroup.Group
	for w := range 4 {
		g.Go(func() error {
			for i := w; i < len(values); i += 4 {
				values[i] = i
				sa.Store(uint32(i), &values[i])
			}
			return nil
		})
		g.Go(func() error {
			for i := range len(values) {
				if p := sa.Load(uint32(i)); p != nil && *p != i {
					t.Errorf("slot %d holds %d", i, *p)
				}
			}
			return nil
		})
	}
	assert.NoError(t, g.Wait())

	for i := range values {
		assert.Equal(t, i, *sa.Load(uint32(i)))
	}
}
