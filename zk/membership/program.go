package membership

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/proofchain-labs/zk-light-client/zk"
)

// Program is the program identifier understood by the backend.
const Program = "tendermint-membership"

// Run is the membership program body: verify every proof against the
// state root, then commit the root and the proof-stripped records.
func Run(rawInput []byte, _ zk.ProofVerifier) ([]byte, error) {
	var input Input
	if err := cbor.Unmarshal(rawInput, &input); err != nil {
		return nil, fmt.Errorf("failed to decode membership input: %w", err)
	}

	if err := VerifyMembership(input.AppHash, input.Proofs); err != nil {
		return nil, err
	}

	output := Output{AppHash: input.AppHash}
	for _, pair := range input.Proofs {
		output.KVPairs = append(output.KVPairs, pair.KV)
	}
	return output.Encode(), nil
}
