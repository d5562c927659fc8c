// Package merkle builds binary hash trees over the audit log's event
// digests and produces O(log n) inclusion proofs. Odd levels are balanced
// by duplicating the last node before combining.
package merkle

import (
	"errors"

	"github.com/afr-project/afr/pkg/canonicalize"
)

// ErrLeafOutOfRange is returned when a proof is requested for a leaf index
// the tree does not contain.
var ErrLeafOutOfRange = errors.New("leaf index out of range")

// Tree is a merkle tree over an ordered list of hex digests.
type Tree struct {
	leaves []string
	levels [][]string // levels[0] = leaves, last level = [root]
}

// New builds a tree from the given leaf digests. A nil or empty slice
// yields an empty tree with root "".
func New(leaves []string) *Tree {
	t := &Tree{leaves: append([]string(nil), leaves...)}
	if len(t.leaves) == 0 {
		return t
	}

	level := t.leaves
	t.levels = append(t.levels, level)
	for len(level) > 1 {
		level = nextLevel(level)
		t.levels = append(t.levels, level)
	}
	return t
}

func nextLevel(level []string) []string {
	if len(level)%2 != 0 {
		level = append(level, level[len(level)-1])
	}
	next := make([]string, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		next = append(next, canonicalize.NodeHash(level[i], level[i+1]))
	}
	return next
}

// Root returns the root digest, or "" for an empty tree. A single-leaf
// tree's root is the leaf itself.
func (t *Tree) Root() string {
	if len(t.levels) == 0 {
		return ""
	}
	return t.levels[len(t.levels)-1][0]
}

// LeafCount returns the number of leaves.
func (t *Tree) LeafCount() int {
	return len(t.leaves)
}
