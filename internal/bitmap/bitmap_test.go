package bitmap

import (
	"fmt"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fastalloc/testutil"
)

func TestInit(t *testing.T) {
	for _, n := range []int{1, 63, 64, 65, 100, 128, 1000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			words := make([]uint64, WordsFor(n))
			for i := range words {
				words[i] = 0xDEADBEEF
			}

			b := Init(words, n)
			assert.Equal(t, n, b.Len())
			assert.Equal(t, n, b.Free())
		})
	}
}

func TestFindFreeAndSet_Exhausts(t *testing.T) {
	const n = 130
	b := Init(make([]uint64, WordsFor(n)), n)

	for want := 0; want < n; want++ {
		got := b.FindFreeAndSet()
		require.Equal(t, want, got)
		require.True(t, b.Test(got))
	}

	assert.Equal(t, NotFound, b.FindFreeAndSet())
	assert.Zero(t, b.Free())
}

func TestSet_RestoresState(t *testing.T) {
	const n = 100
	b := Init(make([]uint64, WordsFor(n)), n)

	for range 40 {
		b.FindFreeAndSet()
	}
	before := append([]uint64(nil), b.words...)

	i := b.FindFreeAndSet()
	require.Equal(t, 40, i)
	b.Set(i, false)

	assert.Equal(t, before, b.words)
}

func TestSet_LowestFreeFirst(t *testing.T) {
	const n = 200
	b := Init(make([]uint64, WordsFor(n)), n)
	for range n {
		b.FindFreeAndSet()
	}

	b.Set(150, false)
	b.Set(70, false)
	assert.Equal(t, 70, b.FindFreeAndSet())
	assert.Equal(t, 150, b.FindFreeAndSet())
	assert.Equal(t, NotFound, b.FindFreeAndSet())
}

func TestRandomAgainstRoaring(t *testing.T) {
	const n = 777
	rng := testutil.NewRNG(7)
	b := Init(make([]uint64, WordsFor(n)), n)
	oracle := roaring.New()

	for range 5000 {
		if rng.Intn(3) == 0 && !oracle.IsEmpty() {
			sel, err := oracle.Select(uint32(rng.Intn(int(oracle.GetCardinality()))))
			require.NoError(t, err)
			i := int(sel)
			b.Set(i, false)
			oracle.Remove(uint32(i))
			continue
		}
		i := b.FindFreeAndSet()
		if oracle.GetCardinality() == n {
			require.Equal(t, NotFound, i)
			continue
		}
		require.NotEqual(t, NotFound, i)
		require.False(t, oracle.Contains(uint32(i)), "slot %d handed out twice", i)

		// Lowest free slot: no gap below i.
		require.Equal(t, uint64(i), oracle.Rank(uint32(i)))
		oracle.Add(uint32(i))
	}

	assert.Equal(t, n-int(oracle.GetCardinality()), b.Free())
	oracle.Iterate(func(x uint32) bool {
		assert.True(t, b.Test(int(x)))
		return true
	})
}

func BenchmarkFindFreeAndSet(b *testing.B) {
	const n = 1024
	words := make([]uint64, WordsFor(n))
	bm := Init(words, n)
	b.ReportAllocs()
	for b.Loop() {
		i := bm.FindFreeAndSet()
		if i == NotFound {
			bm = Init(words, n)
			continue
		}
	}
}
