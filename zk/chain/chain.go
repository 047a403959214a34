// Package chain implements the recursive proof-chain accumulator shared by
// both consensus programs. Each proving step folds the hash of its public
// output into a single 32-byte commitment, so verifying an arbitrarily long
// chain of blocks carries constant-size committed state.
package chain

import (
	"crypto/sha256"
	"fmt"

	"github.com/proofchain-labs/zk-light-client/zk"
)

// Accumulator is the folded commitment over all proven steps so far.
type Accumulator [32]byte

// Genesis starts a chain from its first step: acc = H(H(step)).
func Genesis(stepHash [32]byte) Accumulator {
	return Accumulator(sha256.Sum256(stepHash[:]))
}

// Fold extends a chain by one step: acc' = H(acc ‖ H(step)).
func Fold(parent Accumulator, stepHash [32]byte) Accumulator {
	buf := make([]byte, 0, 64)
	buf = append(buf, parent[:]...)
	buf = append(buf, stepHash[:]...)
	return Accumulator(sha256.Sum256(buf))
}

// Extend runs one step of the chaining protocol. Step 0 has no parent and
// starts a fresh accumulator. Every later step must first present a proof
// of its parent whose committed output hash equals parentHash; only after
// the backend accepts that proof is the new accumulator computed.
func Extend(
	index uint64,
	vkey zk.VKeyDigest,
	parent Accumulator,
	parentHash [32]byte,
	stepHash [32]byte,
	verifier zk.ProofVerifier,
) (Accumulator, error) {
	if index == 0 {
		return Genesis(stepHash), nil
	}
	if err := verifier.Verify(vkey, parentHash); err != nil {
		return Accumulator{}, fmt.Errorf("failed to verify parent proof at index %d: %w", index, err)
	}
	return Fold(parent, stepHash), nil
}
