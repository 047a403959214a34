package bitcoin

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// Mainnet block 170: the coinbase and the first bitcoin transfer, plus
// their tree root.
var block170TxIDs = []string{
	"b1fea52486ce0c62bb442b530a3f0132b826c74e473d1f2c220bfa78111c5082",
	"f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16",
}

const block170Root = "7dac2c5666815c17a3b36427de37bb9d2e2c5ccec3f8633eb91a4205cb4c10ff"

func mustHash32(t *testing.T, s string) [32]byte {
	t.Helper()
	raw, err := hex.DecodeString(s)
	require.NoError(t, err)
	require.Len(t, raw, 32)
	var out [32]byte
	copy(out[:], raw)
	return out
}

func testLeaves(n int) [][32]byte {
	leaves := make([][32]byte, n)
	for i := range leaves {
		leaves[i] = sha256.Sum256(binary.LittleEndian.AppendUint64([]byte("leaf/"), uint64(i)))
	}
	return leaves
}

// refRoot is an independent recursive rendition of the tree definition,
// used to cross-check the iterative fold.
func refRoot(level [][32]byte) [32]byte {
	if len(level) == 1 {
		return level[0]
	}
	if len(level)%2 == 1 {
		level = append(append([][32]byte{}, level...), level[len(level)-1])
	}
	next := make([][32]byte, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		next = append(next, HashPairs(level[i], level[i+1]))
	}
	return refRoot(next)
}

func TestMerkleRootMainnetBlock(t *testing.T) {
	leaves := make([][32]byte, len(block170TxIDs))
	for i, txid := range block170TxIDs {
		leaves[i] = mustHash32(t, txid)
	}
	root := MerkleRoot(leaves)
	require.Equal(t, block170Root, hex.EncodeToString(root[:]))
}

func TestMerkleRootShapes(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 16} {
		leaves := testLeaves(n)
		require.Equal(t, refRoot(leaves), MerkleRoot(leaves), "n=%d", n)
	}
	require.Equal(t, [32]byte{}, MerkleRoot(nil))

	// A single leaf is its own root.
	single := testLeaves(1)
	require.Equal(t, single[0], MerkleRoot(single))
}

func TestGenerateAndVerifyMerkleProof(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 16} {
		leaves := testLeaves(n)
		root := MerkleRoot(leaves)
		for _, leaf := range leaves {
			proof, gotRoot, err := GenerateMerkleProof(leaves, leaf)
			require.NoError(t, err)
			require.Equal(t, root, gotRoot)
			require.True(t, VerifyMerkleProof(leaf, proof, root), "n=%d", n)
		}
	}
}

func TestVerifyMerkleProofRejectsMutations(t *testing.T) {
	leaves := testLeaves(5)
	root := MerkleRoot(leaves)
	leaf := leaves[2]
	proof, _, err := GenerateMerkleProof(leaves, leaf)
	require.NoError(t, err)

	mutatedLeaf := leaf
	mutatedLeaf[0] ^= 0x01
	require.False(t, VerifyMerkleProof(mutatedLeaf, proof, root))

	mutatedRoot := root
	mutatedRoot[31] ^= 0x80
	require.False(t, VerifyMerkleProof(leaf, proof, mutatedRoot))

	mutatedProof := append([]ProofStep{}, proof...)
	mutatedProof[0].Hash[7] ^= 0x01
	require.False(t, VerifyMerkleProof(leaf, mutatedProof, root))

	flipped := append([]ProofStep{}, proof...)
	flipped[1].Right = !flipped[1].Right
	require.False(t, VerifyMerkleProof(leaf, flipped, root))
}

func TestGenerateMerkleProofUnknownLeaf(t *testing.T) {
	leaves := testLeaves(4)
	_, _, err := GenerateMerkleProof(leaves, sha256.Sum256([]byte("absent")))
	require.ErrorContains(t, err, "not found in the tree")
}
