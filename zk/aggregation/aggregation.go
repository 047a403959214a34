// Package aggregation merges a chain-consensus proof and a membership
// proof into one pairing-based proof, and verifies the result.
package aggregation

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/proofchain-labs/zk-light-client/zk"
	"github.com/proofchain-labs/zk-light-client/zk/membership"
	"github.com/proofchain-labs/zk-light-client/zk/tendermint"
)

// Program is the program identifier understood by the backend.
const Program = "aggregation"

// Input is the complete circuit input of the aggregation program: the
// verification-key digests and raw committed bytes of the two upstream
// proofs.
type Input struct {
	ConsensusVKey         zk.VKeyDigest `cbor:"consensus_vkey"`
	ConsensusPublicInput  []byte        `cbor:"consensus_public_input"`
	MembershipVKey        zk.VKeyDigest `cbor:"membership_vkey"`
	MembershipPublicInput []byte        `cbor:"membership_public_input"`
}

// CheckLink decodes both upstream outputs and asserts they carry the same
// application state root. This is the semantic link showing the queried
// keys exist under the state actually produced by the verified chain.
func CheckLink(consensusPublicInput, membershipPublicInput []byte) error {
	consensus, err := tendermint.DecodeOutput(consensusPublicInput)
	if err != nil {
		return fmt.Errorf("failed to decode consensus public input: %w", err)
	}
	member, err := membership.DecodeOutput(membershipPublicInput)
	if err != nil {
		return fmt.Errorf("failed to decode membership public input: %w", err)
	}
	if consensus.AppHash != member.AppHash {
		return fmt.Errorf(
			"app state root mismatch: consensus proof commits %x, membership proof commits %x",
			consensus.AppHash, member.AppHash,
		)
	}
	return nil
}

// Run is the aggregation program body. Both upstream proofs are checked
// against their verification keys and the hash of their committed bytes,
// then the state roots are linked and the two committed records are
// re-committed together.
func Run(rawInput []byte, verifier zk.ProofVerifier) ([]byte, error) {
	var input Input
	if err := cbor.Unmarshal(rawInput, &input); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation input: %w", err)
	}

	if err := verifier.Verify(input.ConsensusVKey, zk.Sha256(input.ConsensusPublicInput)); err != nil {
		return nil, fmt.Errorf("failed to verify consensus proof: %w", err)
	}
	if err := verifier.Verify(input.MembershipVKey, zk.Sha256(input.MembershipPublicInput)); err != nil {
		return nil, fmt.Errorf("failed to verify membership proof: %w", err)
	}

	if err := CheckLink(input.ConsensusPublicInput, input.MembershipPublicInput); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(input.ConsensusPublicInput)+len(input.MembershipPublicInput))
	out = append(out, input.ConsensusPublicInput...)
	out = append(out, input.MembershipPublicInput...)
	return out, nil
}
