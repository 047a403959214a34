package bitcoin

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/proofchain-labs/zk-light-client/zk"
	"github.com/proofchain-labs/zk-light-client/zk/chain"
)

// Program identifiers understood by the proving backend.
const (
	ConsensusProgram = "bitcoin-consensus"
	InclusionProgram = "bitcoin-inclusion"
)

// RunConsensus is the consensus program body. It folds the block's public
// record into the recursive accumulator, checks the parent proof for every
// step after the first, validates the witnessed headers and commits the
// 72-byte verifier record.
func RunConsensus(rawInput []byte, verifier zk.ProofVerifier) ([]byte, error) {
	var input ConsensusInput
	if err := cbor.Unmarshal(rawInput, &input); err != nil {
		return nil, fmt.Errorf("failed to decode consensus input: %w", err)
	}

	stepHash := input.BlockPublicInput.Hash()
	acc, err := chain.Extend(
		input.Index,
		input.VKey,
		chain.Accumulator(input.Parent.CompressedBlockPublicInput),
		input.Parent.Hash(),
		stepHash,
		verifier,
	)
	if err != nil {
		return nil, err
	}

	if err := ValidateBlock(input.Witness.ProposedChain, input.Witness.RetargetBlock, input.BlockPublicInput); err != nil {
		return nil, err
	}

	output := VerifierPublicInput{
		CompressedBlockPublicInput: acc,
		DeepTxMerkleRoot:           input.BlockPublicInput.DeepTxMerkleRoot,
		CurrentHeight:              input.BlockPublicInput.ProposedHeight,
	}
	return output.Encode(), nil
}

// RunInclusion is the transaction inclusion program body. It recomputes
// the txid from the witnessed legacy transaction bytes, replays the merkle
// path against the committed root and commits the 64-byte public record.
func RunInclusion(rawInput []byte, _ zk.ProofVerifier) ([]byte, error) {
	var input InclusionInput
	if err := cbor.Unmarshal(rawInput, &input); err != nil {
		return nil, fmt.Errorf("failed to decode inclusion input: %w", err)
	}

	if len(input.Witness.LegacyTx) == 0 {
		return nil, fmt.Errorf("inclusion witness carries no transaction bytes")
	}
	if got := DoubleSha256(input.Witness.LegacyTx); got != input.PublicInput.TxID {
		return nil, fmt.Errorf("txid mismatch: committed %x, witness transaction hashes to %x", input.PublicInput.TxID, got)
	}
	if !VerifyMerkleProof(input.PublicInput.TxID, input.Witness.TxMerkleProof, input.PublicInput.TxMerkleRoot) {
		return nil, fmt.Errorf("merkle path does not reach the committed root %x", input.PublicInput.TxMerkleRoot)
	}

	return input.PublicInput.Encode(), nil
}
