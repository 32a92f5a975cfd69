package rtree

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hupe1980/fastalloc/internal/blockpool"
	"github.com/hupe1980/fastalloc/internal/mem"
	"github.com/hupe1980/fastalloc/internal/mmap"
)

const (
	// Depth is the number of levels: one per byte of an address.
	Depth = int(unsafe.Sizeof(uintptr(0)))
	// FanOut is the number of entries per node.
	FanOut = 256

	// DefaultBlockSize is the first block size of the node and leaf pools.
	DefaultBlockSize = 1 << 20

	nodeSize = int(unsafe.Sizeof(node{}))
	leafSize = int(unsafe.Sizeof(uintptr(0)))
)

// node is one level of the tree. At the last level the entries point to
// leaf cells holding a size; above it they point to child nodes.
type node struct {
	count   uintptr
	entries [FanOut]unsafe.Pointer
}

func key(addr uintptr, level int) uint8 {
	return uint8(addr >> (8 * (Depth - 1 - level)))
}

// Config tunes the backing pools.
type Config struct {
	// BlockSize is the first block size of both pools.
	BlockSize int
	// MaxBlocks bounds each pool.
	MaxBlocks int
}

// Tree maps addresses to sizes. It is owned by a single heap and is not
// safe for concurrent use.
type Tree struct {
	root   *node
	nodes  *blockpool.Pool
	leaves *blockpool.Pool
	len    int
}

// New creates an empty tree whose nodes and leaves come from pools
// reserved through r.
func New(cfg Config, r mmap.Reserver) (*Tree, error) {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}

	nodes, err := blockpool.New(blockpool.Config{
		UnitSize:         nodeSize,
		InitialBlockSize: cfg.BlockSize,
		MaxBlocks:        cfg.MaxBlocks,
	}, r)
	if err != nil {
		return nil, fmt.Errorf("rtree: node pool: %w", err)
	}

	leaves, err := blockpool.New(blockpool.Config{
		UnitSize:         leafSize,
		InitialBlockSize: cfg.BlockSize,
		MaxBlocks:        cfg.MaxBlocks,
	}, r)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("rtree: leaf pool: %w", err), nodes.Close())
	}

	return &Tree{nodes: nodes, leaves: leaves}, nil
}

func (t *Tree) newNode() (*node, error) {
	p, err := t.nodes.Alloc()
	if err != nil {
		return nil, err
	}
	mem.Zero(p, nodeSize)
	return (*node)(p), nil
}

// path records the nodes visited on the way to a leaf.
type path [Depth]*node

// Push records size for addr. It panics if addr is already present.
func (t *Tree) Push(addr, size uintptr) error {
	if t.root == nil {
		root, err := t.newNode()
		if err != nil {
			return err
		}
		t.root = root
	}

	var p path
	n := t.root
	for level := 0; level < Depth-1; level++ {
		p[level] = n
		k := key(addr, level)
		if n.entries[k] == nil {
			child, err := t.newNode()
			if err != nil {
				t.prune(&p, addr, level)
				return err
			}
			n.entries[k] = unsafe.Pointer(child)
			n.count++
		}
		n = (*node)(n.entries[k])
	}
	p[Depth-1] = n

	k := key(addr, Depth-1)
	if n.entries[k] != nil {
		panic(fmt.Sprintf("rtree: address %#x already present", addr))
	}
	leaf, err := t.leaves.Alloc()
	if err != nil {
		t.prune(&p, addr, Depth-1)
		return err
	}
	*(*uintptr)(leaf) = size
	n.entries[k] = leaf
	n.count++
	t.len++
	return nil
}

// Remove deletes addr and returns its size. Nodes left empty are released,
// up to and including the root. It panics if addr is absent.
func (t *Tree) Remove(addr uintptr) uintptr {
	p, ok := t.descend(addr)
	if !ok {
		panic(fmt.Sprintf("rtree: address %#x not present", addr))
	}

	n := p[Depth-1]
	k := key(addr, Depth-1)
	leaf := n.entries[k]
	size := *(*uintptr)(leaf)
	t.leaves.Free(leaf)
	n.entries[k] = nil
	n.count--
	t.len--

	t.prune(&p, addr, Depth-1)
	return size
}

// prune releases empty nodes from p[level] upwards.
func (t *Tree) prune(p *path, addr uintptr, level int) {
	for ; level >= 0; level-- {
		n := p[level]
		if n.count != 0 {
			return
		}
		t.nodes.Free(unsafe.Pointer(n))
		if level == 0 {
			t.root = nil
			return
		}
		parent := p[level-1]
		parent.entries[key(addr, level-1)] = nil
		parent.count--
	}
}

// descend walks to addr's leaf without creating nodes.
func (t *Tree) descend(addr uintptr) (path, bool) {
	var p path
	n := t.root
	if n == nil {
		return p, false
	}
	for level := 0; level < Depth-1; level++ {
		p[level] = n
		next := n.entries[key(addr, level)]
		if next == nil {
			return p, false
		}
		n = (*node)(next)
	}
	p[Depth-1] = n
	return p, n.entries[key(addr, Depth-1)] != nil
}

// Contains reports whether addr is present.
func (t *Tree) Contains(addr uintptr) bool {
	_, ok := t.descend(addr)
	return ok
}

// Size returns the size recorded for addr.
func (t *Tree) Size(addr uintptr) (uintptr, bool) {
	p, ok := t.descend(addr)
	if !ok {
		return 0, false
	}
	return *(*uintptr)(p[Depth-1].entries[key(addr, Depth-1)]), true
}

// Update replaces the size recorded for addr. It panics if addr is absent.
func (t *Tree) Update(addr, size uintptr) {
	p, ok := t.descend(addr)
	if !ok {
		panic(fmt.Sprintf("rtree: address %#x not present", addr))
	}
	*(*uintptr)(p[Depth-1].entries[key(addr, Depth-1)]) = size
}

// Len returns the number of addresses stored.
func (t *Tree) Len() int {
	return t.len
}

// Nodes returns the number of live nodes.
func (t *Tree) Nodes() int {
	s := t.nodes.Stats()
	return s.Units - s.Free
}

// Empty reports whether the tree holds no nodes at all.
func (t *Tree) Empty() bool {
	return t.root == nil
}

// Close releases both pools.
func (t *Tree) Close() error {
	t.root = nil
	t.len = 0
	return errors.Join(t.nodes.Close(), t.leaves.Close())
}
