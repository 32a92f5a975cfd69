// Package rtree maps large-object addresses to their requested sizes.
//
// The tree has one level per address byte, most significant first, and
// 256 entries per node. Entries at the last level point to 8-byte leaf
// cells holding the size. Nodes and leaves come from two block pools, so
// the tree never touches the Go heap. Removing the last key below a node
// releases it, all the way up to the root.
package rtree
