package rtree

import (
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fastalloc/internal/mmap"
	"github.com/hupe1980/fastalloc/testutil"
)

func newTree(t testing.TB) *Tree {
	t.Helper()
	tr, err := New(Config{BlockSize: 64 << 10}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestPushRemove_RoundTrip(t *testing.T) {
	tr := newTree(t)
	const a, b = uintptr(0x7f00_1234_5000), uintptr(0x7f00_1234_6000)

	require.NoError(t, tr.Push(a, 5000))
	require.NoError(t, tr.Push(b, 7000))
	assert.Equal(t, 2, tr.Len())

	size, ok := tr.Size(a)
	require.True(t, ok)
	assert.Equal(t, uintptr(5000), size)

	assert.Equal(t, uintptr(5000), tr.Remove(a))
	assert.False(t, tr.Contains(a))

	size, ok = tr.Size(b)
	require.True(t, ok)
	assert.Equal(t, uintptr(7000), size)

	assert.Equal(t, uintptr(7000), tr.Remove(b))
	assert.True(t, tr.Empty())
	assert.Zero(t, tr.Nodes())
}

func TestLookup_DoesNotCreateNodes(t *testing.T) {
	tr := newTree(t)
	assert.False(t, tr.Contains(0x1000))
	assert.True(t, tr.Empty())

	require.NoError(t, tr.Push(0x1000, 1))
	nodes := tr.Nodes()
	assert.Equal(t, Depth, nodes)

	_, ok := tr.Size(0xdead_0000)
	assert.False(t, ok)
	assert.Equal(t, nodes, tr.Nodes())
}

func TestRemove_PrunesOnlyEmptyBranches(t *testing.T) {
	tr := newTree(t)

	// Shares every level but the last.
	require.NoError(t, tr.Push(0x10_0000, 1))
	require.NoError(t, tr.Push(0x10_0010, 2))
	assert.Equal(t, Depth, tr.Nodes())

	// Diverges two levels above the leaves.
	require.NoError(t, tr.Push(0x20_0000, 3))
	assert.Equal(t, Depth+2, tr.Nodes())

	tr.Remove(0x20_0000)
	assert.Equal(t, Depth, tr.Nodes())

	tr.Remove(0x10_0000)
	assert.Equal(t, Depth, tr.Nodes())
	assert.True(t, tr.Contains(0x10_0010))

	tr.Remove(0x10_0010)
	assert.Zero(t, tr.Nodes())
}

func TestUpdate(t *testing.T) {
	tr := newTree(t)
	require.NoError(t, tr.Push(0x4000, 10))
	tr.Update(0x4000, 20)

	size, _ := tr.Size(0x4000)
	assert.Equal(t, uintptr(20), size)
	assert.Panics(t, func() { tr.Update(0x5000, 1) })
}

func TestContractViolations(t *testing.T) {
	tr := newTree(t)
	require.NoError(t, tr.Push(0x8000, 1))

	assert.Panics(t, func() { _ = tr.Push(0x8000, 2) })
	assert.Panics(t, func() { tr.Remove(0x9000) })
}

func TestPush_FailureLeavesTreeClean(t *testing.T) {
	// Two pools, one block each; the third reservation fails.
	r := mmap.NewFaulty(nil)
	r.SetFault(mmap.Fault{FailAfterCalls: 2})
	tr, err := New(Config{BlockSize: 4096, MaxBlocks: 4}, r)
	require.NoError(t, err)
	defer tr.Close()

	// One node per 4 KiB block: the second node needs a new block.
	err = tr.Push(0x1000, 1)
	require.ErrorIs(t, err, mmap.ErrInjected)
	assert.True(t, tr.Empty())
	assert.Zero(t, tr.Nodes())
	assert.Zero(t, tr.Len())
}

func TestRandomAgainstOracle(t *testing.T) {
	tr := newTree(t)
	rng := testutil.NewRNG(99)

	// Page-granular keys spread over a few distant address ranges.
	bases := []uintptr{0x0000_1000_0000, 0x7f00_0000_0000, 0x5555_0000_0000}
	const span = 1024
	oracle := make(map[uintptr]uintptr)
	present := bitset.New(uint(len(bases) * span))

	for range 20_000 {
		bi := rng.Intn(len(bases))
		page := rng.Intn(span)
		addr := bases[bi] + uintptr(page)*4096
		idx := uint(bi*span + page)

		if present.Test(idx) {
			assert.Equal(t, oracle[addr], tr.Remove(addr))
			present.Clear(idx)
			delete(oracle, addr)
			continue
		}
		size := uintptr(rng.Intn(1<<20) + 1025)
		require.NoError(t, tr.Push(addr, size))
		present.Set(idx)
		oracle[addr] = size
	}

	assert.Equal(t, int(present.Count()), tr.Len())
	for addr, size := range oracle {
		got, ok := tr.Size(addr)
		require.True(t, ok)
		require.Equal(t, size, got)
		tr.Remove(addr)
	}
	assert.True(t, tr.Empty())
}

func BenchmarkPushRemove(b *testing.B) {
	tr := newTree(b)
	b.ReportAllocs()
	for b.Loop() {
		_ = tr.Push(0x7f00_0000_1000, 4096)
		tr.Remove(0x7f00_0000_1000)
	}
}
