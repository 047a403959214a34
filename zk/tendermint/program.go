package tendermint

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/proofchain-labs/zk-light-client/zk"
	"github.com/proofchain-labs/zk-light-client/zk/chain"
)

// ConsensusProgram is the program identifier understood by the backend.
const ConsensusProgram = "tendermint-consensus"

// RunConsensus is the consensus program body. It folds this step's public
// input into the recursive accumulator, checks the parent proof for every
// step after the first, verifies the header update and commits the
// 144-byte output record.
func RunConsensus(rawInput []byte, verifier zk.ProofVerifier) ([]byte, error) {
	var input ConsensusInput
	if err := cbor.Unmarshal(rawInput, &input); err != nil {
		return nil, fmt.Errorf("failed to decode consensus input: %w", err)
	}

	stepHash := input.Current.Hash()
	acc, err := chain.Extend(
		input.ProvingBlockIndex,
		input.VKey,
		chain.Accumulator(input.Parent.CompressedBlockPublicInput),
		input.Parent.Hash(),
		stepHash,
		verifier,
	)
	if err != nil {
		return nil, err
	}

	trusted := input.Witness.TrustedBlock
	untrusted := input.Witness.UntrustedBlock
	if err := VerifyHeader(trusted, untrusted); err != nil {
		return nil, err
	}

	// The header update is now proven, so its hashes and state root can be
	// committed verbatim.
	var trustedHash, targetHash, appHash [32]byte
	copy(trustedHash[:], trusted.SignedHeader.Header.Hash())
	copy(targetHash[:], untrusted.SignedHeader.Header.Hash())
	copy(appHash[:], untrusted.SignedHeader.Header.AppHash)

	output := Output{
		TrustedHeight:              uint64(trusted.SignedHeader.Header.Height),
		TargetHeight:               uint64(untrusted.SignedHeader.Header.Height),
		TrustedHeaderHash:          trustedHash,
		TargetHeaderHash:           targetHash,
		CompressedBlockPublicInput: acc,
		AppHash:                    appHash,
	}
	return output.Encode(), nil
}
