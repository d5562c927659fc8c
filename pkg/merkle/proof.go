package merkle

import "github.com/afr-project/afr/pkg/canonicalize"

// Position states on which side of the running hash a proof sibling sits.
type Position string

const (
	PositionLeft  Position = "left"
	PositionRight Position = "right"
)

// ProofStep is one sibling on the path from a leaf to the root.
type ProofStep struct {
	SiblingHash string   `json:"sibling_hash"`
	Position    Position `json:"position"`
}

// Prove returns the inclusion proof for the leaf at index, ordered leaf to
// root. A single-leaf tree has an empty proof.
func (t *Tree) Prove(index int) ([]ProofStep, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, ErrLeafOutOfRange
	}

	proof := []ProofStep{}
	for _, level := range t.levels[:len(t.levels)-1] {
		var step ProofStep
		if index%2 == 0 {
			sibling := index + 1
			if sibling >= len(level) {
				// Odd level: the node was paired with its own duplicate.
				sibling = index
			}
			step = ProofStep{SiblingHash: level[sibling], Position: PositionRight}
		} else {
			step = ProofStep{SiblingHash: level[index-1], Position: PositionLeft}
		}
		proof = append(proof, step)
		index /= 2
	}
	return proof, nil
}

// Verify folds proof over leafHash and reports whether the result equals
// root. Position refers to the sibling's side.
func Verify(leafHash string, proof []ProofStep, root string) bool {
	current := leafHash
	for _, step := range proof {
		if step.Position == PositionLeft {
			current = canonicalize.NodeHash(step.SiblingHash, current)
		} else {
			current = canonicalize.NodeHash(current, step.SiblingHash)
		}
	}
	return current == root
}
