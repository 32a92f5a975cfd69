package testutil

import (
	"math"
	"math/rand"
	"sync"
	"unsafe"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Perm returns a pseudo-random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// Sizes returns n request sizes in [1, maxSize].
func (r *RNG) Sizes(n, maxSize int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int, n)
	for i := range out {
		out[i] = 1 + r.rand.Intn(maxSize)
	}
	return out
}

// SkewedSizes returns n request sizes in [1, maxSize] where small sizes
// dominate, following a Zipf law with skew s.
// Real allocation traces look like this: most requests are tiny.
func (r *RNG) SkewedSizes(n, maxSize int, s float64) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	const buckets = 64
	step := max(maxSize/buckets, 1)

	out := make([]int, n)
	for i := range out {
		b := r.zipfLocked(buckets, s)
		size := b*step + 1 + r.rand.Intn(step)
		out[i] = min(size, maxSize)
	}
	return out
}

// zipfLocked returns a Zipfian-distributed value in [0, n).
// The caller must hold the lock.
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Fill writes a pattern derived from tag into n bytes at p.
func Fill(p unsafe.Pointer, n int, tag byte) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = tag + byte(i)
	}
}

// Check reports whether the n bytes at p still hold the pattern written by
// Fill with the same tag.
func Check(p unsafe.Pointer, n int, tag byte) bool {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		if b[i] != tag+byte(i) {
			return false
		}
	}
	return true
}
