package bitcoin

import "fmt"

// ProofStep is one sibling on a merkle inclusion path. Right reports
// whether the sibling sits to the right of the running hash.
type ProofStep struct {
	Hash  [32]byte
	Right bool
}

// HashPairs combines two nodes into their parent. Inputs and output are in
// little-endian display order; the byte reversal happens around the double
// SHA-256 exactly as in transaction trees.
func HashPairs(left, right [32]byte) [32]byte {
	combined := make([]byte, 0, 64)
	l := ToLittleEndian(left)
	r := ToLittleEndian(right)
	combined = append(combined, l[:]...)
	combined = append(combined, r[:]...)
	return DoubleSha256(combined)
}

// MerkleRoot folds the leaves into the tree root, duplicating the last
// node of any level with an odd number of nodes.
func MerkleRoot(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	level := leaves
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, HashPairs(left, right))
		}
		level = next
	}
	return level[0]
}

// GenerateMerkleProof builds the inclusion path for leaf and returns it
// together with the tree root. Leaves are expected in little-endian
// display order.
func GenerateMerkleProof(leaves [][32]byte, leaf [32]byte) ([]ProofStep, [32]byte, error) {
	index := -1
	for i, l := range leaves {
		if l == leaf {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, [32]byte{}, fmt.Errorf("leaf %x not found in the tree", leaf)
	}

	var proof []ProofStep
	level := leaves
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, HashPairs(left, right))

			if i == index || i+1 == index {
				if i == index {
					proof = append(proof, ProofStep{Hash: right, Right: true})
				} else {
					proof = append(proof, ProofStep{Hash: left, Right: false})
				}
				index /= 2
			}
		}
		level = next
	}
	return proof, level[0], nil
}

// VerifyMerkleProof replays the inclusion path from leaf and reports
// whether it reproduces root.
func VerifyMerkleProof(leaf [32]byte, proof []ProofStep, root [32]byte) bool {
	current := leaf
	for _, step := range proof {
		if step.Right {
			current = HashPairs(current, step.Hash)
		} else {
			current = HashPairs(step.Hash, current)
		}
	}
	return current == root
}
